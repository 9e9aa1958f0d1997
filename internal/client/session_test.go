package client_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/parley-chat/parley/internal/client"
	"github.com/parley-chat/parley/internal/models"
)

type mockGenerator struct {
	mu      sync.Mutex
	calls   int
	lastCtx context.Context
	result  client.Result
	started chan struct{}
	release chan struct{}
}

func (g *mockGenerator) Generate(ctx context.Context, _, _ string, _ func(string)) client.Result {
	g.mu.Lock()
	g.calls++
	g.lastCtx = ctx
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
		}
	}
	return g.result
}

type mockSpeaker struct {
	spoken  []string
	stopped int
}

func (s *mockSpeaker) Speak(text string) bool {
	s.spoken = append(s.spoken, text)
	return true
}

func (s *mockSpeaker) Stop() { s.stopped++ }

type mockConvStore struct {
	saved map[string]models.Conversation
}

func (m *mockConvStore) Save(_ context.Context, conv models.Conversation) error {
	if m.saved == nil {
		m.saved = map[string]models.Conversation{}
	}
	m.saved[conv.Name] = conv
	return nil
}

func (m *mockConvStore) Load(_ context.Context, name string) (models.Conversation, error) {
	conv, ok := m.saved[name]
	if !ok {
		return models.Conversation{}, fmt.Errorf("conversation %q not found", name)
	}
	return conv, nil
}

func TestSessionSend(t *testing.T) {
	gen := &mockGenerator{result: client.Result{Text: "the answer"}}
	sess := client.NewSession(gen, nil, nil, "test-model")

	res, err := sess.Send(context.Background(), "the question", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.Text != "the answer" {
		t.Errorf("Send() text = %q, want %q", res.Text, "the answer")
	}

	history := sess.History()
	if len(history) != 2 {
		t.Fatalf("History() len = %d, want 2", len(history))
	}
	if !history[0].FromUser || history[0].Text != "the question" {
		t.Errorf("History()[0] = %+v, want user turn with prompt", history[0])
	}
	if history[1].FromUser || history[1].Text != "the answer" || history[1].Model != "test-model" {
		t.Errorf("History()[1] = %+v, want assistant turn with model", history[1])
	}
}

func TestSessionSingleFlight(t *testing.T) {
	gen := &mockGenerator{
		result:  client.Result{Text: "slow"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sess := client.NewSession(gen, nil, nil, "test-model")

	errs := make(chan error, 1)
	go func() {
		_, err := sess.Send(context.Background(), "first", nil)
		errs <- err
	}()
	<-gen.started

	if _, err := sess.Send(context.Background(), "second", nil); !errors.Is(err, client.ErrTurnInFlight) {
		t.Errorf("Send() while in flight error = %v, want ErrTurnInFlight", err)
	}

	close(gen.release)
	if err := <-errs; err != nil {
		t.Errorf("first Send() error = %v", err)
	}

	// With the first turn finished, the session accepts turns again.
	if _, err := sess.Send(context.Background(), "third", nil); err != nil {
		t.Errorf("Send() after completion error = %v", err)
	}
}

func TestSessionReleasesTurnContext(t *testing.T) {
	gen := &mockGenerator{result: client.Result{Text: "done"}}
	sess := client.NewSession(gen, nil, nil, "test-model")

	if _, err := sess.Send(context.Background(), "hello", nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// The per-turn context is derived from the caller's, which may live for
	// the whole session; a completed turn must not keep it registered there.
	gen.mu.Lock()
	turnCtx := gen.lastCtx
	gen.mu.Unlock()
	if !errors.Is(turnCtx.Err(), context.Canceled) {
		t.Errorf("turn context err = %v, want context.Canceled after Send returned", turnCtx.Err())
	}
}

func TestSessionAbort(t *testing.T) {
	gen := &mockGenerator{
		result:  client.Result{Text: client.UnreachableText, Err: context.Canceled},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	defer close(gen.release)
	sess := client.NewSession(gen, nil, nil, "test-model")

	done := make(chan struct{})
	go func() {
		_, _ = sess.Send(context.Background(), "first", nil)
		close(done)
	}()
	<-gen.started

	sess.Abort()
	<-done
}

func TestSessionAutoSpeak(t *testing.T) {
	gen := &mockGenerator{result: client.Result{Text: "speak me"}}
	speaker := &mockSpeaker{}
	sess := client.NewSession(gen, nil, speaker, "test-model")

	if _, err := sess.Send(context.Background(), "quiet turn", nil); err != nil {
		t.Fatal(err)
	}
	if len(speaker.spoken) != 0 {
		t.Errorf("speaker invoked with auto-speak off: %v", speaker.spoken)
	}

	sess.SetAutoSpeak(true)
	if _, err := sess.Send(context.Background(), "loud turn", nil); err != nil {
		t.Fatal(err)
	}
	if len(speaker.spoken) != 1 || speaker.spoken[0] != "speak me" {
		t.Errorf("speaker.spoken = %v, want [speak me]", speaker.spoken)
	}

	sess.SetAutoSpeak(false)
	if speaker.stopped != 1 {
		t.Errorf("speaker.stopped = %d, want 1 after disabling auto-speak", speaker.stopped)
	}
}

func TestSessionSaveLoad(t *testing.T) {
	gen := &mockGenerator{result: client.Result{Text: "reply"}}
	store := &mockConvStore{}
	sess := client.NewSession(gen, store, nil, "test-model")

	if err := sess.SaveAs(context.Background(), "empty"); !errors.Is(err, client.ErrNoConversation) {
		t.Errorf("SaveAs() on empty session error = %v, want ErrNoConversation", err)
	}

	if _, err := sess.Send(context.Background(), "hello", nil); err != nil {
		t.Fatal(err)
	}
	if err := sess.SaveAs(context.Background(), "greeting"); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}

	other := client.NewSession(gen, store, nil, "other-model")
	if err := other.Load(context.Background(), "greeting"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := other.Model(); got != "test-model" {
		t.Errorf("Model() after load = %q, want %q", got, "test-model")
	}
	history := other.History()
	if len(history) != 2 || history[0].Text != "hello" || history[1].Text != "reply" {
		t.Errorf("History() after load = %+v", history)
	}

	if err := other.Load(context.Background(), "missing"); err == nil {
		t.Error("Load() of unknown conversation should fail")
	}
}
