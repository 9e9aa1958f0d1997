package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/client"
)

// streamHandler serves the given chunks on /api/chat, flushing between each
// so fragment boundaries and transport chunk boundaries do not line up.
func streamHandler(t *testing.T, chunks []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		for _, chunk := range chunks {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name        string
		chunks      []string
		wantText    string
		wantDropped int
	}{
		{
			name: "single chunk",
			chunks: []string{
				"{\"response\":\"Hello\"}\n{\"done\":true}\n",
			},
			wantText: "Hello",
		},
		{
			name: "fragment split across chunks",
			chunks: []string{
				"{\"response\":\"Hel\"}\n{\"respon",
				"se\":\"lo\"}\n{\"done\":true}\n",
			},
			wantText: "Hello",
		},
		{
			name: "byte at a time",
			chunks: strings.Split(
				"{\"response\":\"Hi\"}\n{\"response\":\" there\"}\n{\"done\":true}\n", ""),
			wantText: "Hi there",
		},
		{
			name: "malformed line skipped",
			chunks: []string{
				"not-json\n{\"response\":\"ok\"}\n{\"done\":true}\n",
			},
			wantText:    "ok",
			wantDropped: 1,
		},
		{
			name: "blank keep-alive lines skipped",
			chunks: []string{
				"\n\n{\"response\":\"ok\"}\n\n{\"done\":true}\n",
			},
			wantText: "ok",
		},
		{
			name: "empty stream",
			chunks: []string{
				"{\"done\":true}\n",
			},
			wantText: client.NoResponseText,
		},
		{
			name:     "stream without done",
			chunks:   []string{"{\"response\":\"partial\"}\n"},
			wantText: "partial",
		},
		{
			name:     "no body at all",
			chunks:   nil,
			wantText: client.NoResponseText,
		},
		{
			name: "trailing fragment without newline",
			chunks: []string{
				"{\"response\":\"a\"}\n{\"response\":\"b\"}",
			},
			wantText: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(streamHandler(t, tt.chunks))
			defer srv.Close()

			c := client.New(srv.URL)
			res := c.Generate(context.Background(), "test-model", "hi", nil)

			if res.Err != nil {
				t.Fatalf("Generate() error = %v", res.Err)
			}
			if res.Text != tt.wantText {
				t.Errorf("Generate() text = %q, want %q", res.Text, tt.wantText)
			}
			if res.Dropped != tt.wantDropped {
				t.Errorf("Generate() dropped = %d, want %d", res.Dropped, tt.wantDropped)
			}
		})
	}
}

func TestGenerateDeltas(t *testing.T) {
	srv := httptest.NewServer(streamHandler(t, []string{
		"{\"response\":\"one \"}\n",
		"{\"response\":\"two\"}\n{\"done\":true}\n",
	}))
	defer srv.Close()

	var deltas []string
	c := client.New(srv.URL)
	res := c.Generate(context.Background(), "test-model", "hi", func(d string) {
		deltas = append(deltas, d)
	})

	if res.Text != "one two" {
		t.Errorf("Generate() text = %q, want %q", res.Text, "one two")
	}
	if len(deltas) != 2 || deltas[0] != "one " || deltas[1] != "two" {
		t.Errorf("Generate() deltas = %v, want [one , two]", deltas)
	}
}

func TestGenerateBackendUnreachable(t *testing.T) {
	// A server that is immediately closed guarantees a refused connection.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := client.New(url)
	res := c.Generate(context.Background(), "test-model", "hi", nil)

	if res.Text != client.UnreachableText {
		t.Errorf("Generate() text = %q, want %q", res.Text, client.UnreachableText)
	}
	if res.Err == nil {
		t.Error("Generate() expected an error for unreachable relay")
	}
}

func TestGenerateRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"model runtime is down"}`))
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	res := c.Generate(context.Background(), "test-model", "hi", nil)

	if res.Text != client.UnreachableText {
		t.Errorf("Generate() text = %q, want %q", res.Text, client.UnreachableText)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "model runtime is down") {
		t.Errorf("Generate() err = %v, want relay error message", res.Err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if f, ok := w.(http.Flusher); ok {
			_, _ = w.Write([]byte("{\"response\":\"stuck\"}\n"))
			f.Flush()
		}
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithTimeout(100*time.Millisecond))

	done := make(chan client.Result, 1)
	go func() {
		done <- c.Generate(context.Background(), "test-model", "hi", nil)
	}()

	select {
	case res := <-done:
		// The partial text received before the deadline is still returned.
		if res.Text != "stuck" {
			t.Errorf("Generate() text = %q, want %q", res.Text, "stuck")
		}
		if res.Err == nil {
			t.Error("Generate() expected a deadline error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Generate() did not return after timeout")
	}
}
