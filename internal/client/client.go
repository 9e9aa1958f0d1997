// Package client implements the consuming side of the relay's streaming
// generation protocol: it issues a generation request, incrementally decodes
// the newline-delimited JSON response, and accumulates the assistant's text.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parley-chat/parley/internal/models"
)

// Fixed reply texts for turns that produced no usable model output. They are
// distinct so callers can tell "could not run" from "ran but produced
// nothing".
const (
	UnreachableText = "(Backend not reachable)"
	NoResponseText  = "(No response)"
)

const defaultTimeout = 5 * time.Minute

// Client talks to the relay's generation endpoint. The zero value is not
// usable; construct with New.
type Client struct {
	baseURL string
	timeout time.Duration

	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout caps the total duration of one generation call, reading
// included. The default of five minutes leaves room for slow local models
// while still guaranteeing an abandoned stream cannot hang a caller forever.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for per-turn diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With(slog.String("module", "client")) }
}

// New creates a Client for the relay at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) Client {
	c := Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Result is the outcome of one generation turn. Text is always set: the
// assistant's accumulated reply on success, or one of the fixed reply texts
// otherwise. Dropped counts stream lines that failed to decode and were
// skipped.
type Result struct {
	Text    string
	Dropped int
	Err     error
}

// Generate sends a streaming generation request for the given model and
// prompt and consumes the response until completion. Every text increment is
// passed to onDelta as it is decoded, so callers can render a live typing
// state; onDelta may be nil. The call never panics: any failure is folded
// into the returned Result.
//
// The context bounds the whole call in addition to the client's configured
// timeout; cancelling it aborts an in-flight stream.
func (c Client) Generate(ctx context.Context, model, prompt string, onDelta func(string)) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := true
	body, err := json.Marshal(models.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: &stream,
	})
	if err != nil {
		return Result{Text: UnreachableText, Err: fmt.Errorf("error marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Result{Text: UnreachableText, Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Text: UnreachableText, Err: fmt.Errorf("error sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Text: UnreachableText, Err: relayError(resp)}
	}

	text, dropped, err := consume(resp.Body, onDelta)
	if dropped > 0 {
		c.logger.Debug("Dropped undecodable stream lines",
			slog.Int("count", dropped),
			slog.String("model", model))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if text == "" {
			return Result{Text: UnreachableText, Dropped: dropped, Err: err}
		}
		// A stream that broke mid-way still yields the text received so far.
		return Result{Text: text, Dropped: dropped, Err: err}
	}
	if text == "" {
		return Result{Text: NoResponseText, Dropped: dropped}
	}
	return Result{Text: text, Dropped: dropped}
}

// relayError extracts the relay's {error} payload, falling back to the HTTP
// status when the body is not the expected shape.
func relayError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ge models.GenerateError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error != "" {
		return fmt.Errorf("relay error: %s", ge.Error)
	}
	return fmt.Errorf("relay returned status %d", resp.StatusCode)
}

// consume runs the decode/accumulate loop over a newline-delimited JSON
// stream. Transport chunk boundaries carry no meaning: a fragment may arrive
// split across any number of reads, so lines are reassembled before decoding
// and a trailing partial line is held back until its newline (or EOF)
// arrives. Lines that are blank or fail to decode are skipped; the skip
// count is returned alongside the accumulated text.
func consume(r io.Reader, onDelta func(string)) (string, int, error) {
	var acc strings.Builder
	dropped := 0

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')

		if len(bytes.TrimSpace(line)) > 0 {
			var frag models.Fragment
			if jsonErr := json.Unmarshal(line, &frag); jsonErr != nil {
				// Keep-alive and malformed lines are tolerated; the stream
				// as a whole stays alive.
				dropped++
			} else {
				if frag.Response != "" {
					acc.WriteString(frag.Response)
					if onDelta != nil {
						onDelta(frag.Response)
					}
				}
				if frag.Done {
					return acc.String(), dropped, nil
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return acc.String(), dropped, nil
			}
			return acc.String(), dropped, fmt.Errorf("error reading stream: %w", err)
		}
	}
}
