package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/models"
)

// ErrTurnInFlight is returned by Send when a previous turn is still
// streaming. Turns are strictly sequential: two concurrent turns would race
// on one history and one typing state.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// ErrNoConversation is returned when saving a session that has no turns yet.
var ErrNoConversation = errors.New("nothing to save")

// Generator produces an assistant reply for a prompt. Client implements it;
// tests substitute their own.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, onDelta func(string)) Result
}

// Speaker voices a finished reply. Speak reports whether the utterance was
// accepted (a speaker already mid-utterance ignores the request); Stop
// silences any active utterance.
type Speaker interface {
	Speak(text string) bool
	Stop()
}

// ConversationStore persists conversations under client-chosen names.
type ConversationStore interface {
	Save(ctx context.Context, conv models.Conversation) error
	Load(ctx context.Context, name string) (models.Conversation, error)
}

// Session owns the state one chat surface needs: the ordered turn history,
// the active model, and the handoffs to persistence and speech. It replaces
// the pile of page-level globals a browser client would use with a single
// explicit object, and it enforces the one-turn-at-a-time rule those globals
// silently assumed.
type Session struct {
	gen     Generator
	store   ConversationStore
	speaker Speaker

	mu        sync.Mutex
	model     string
	autoSpeak bool
	history   []models.Turn
	inFlight  bool
	cancel    context.CancelFunc
}

// NewSession creates a session around a generator. Store and speaker may be
// nil, disabling persistence and speech respectively.
func NewSession(gen Generator, store ConversationStore, speaker Speaker, model string) *Session {
	return &Session{
		gen:     gen,
		store:   store,
		speaker: speaker,
		model:   model,
	}
}

// Send runs one full turn: it appends the user's prompt to the history,
// streams the assistant's reply (forwarding increments to onDelta), appends
// the finished reply, and, when auto-speak is on, hands the text to the
// speech stage. A second Send while one is streaming fails with
// ErrTurnInFlight rather than racing the first.
func (s *Session) Send(ctx context.Context, prompt string, onDelta func(string)) (Result, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Result{}, ErrTurnInFlight
	}
	s.inFlight = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	model := s.model
	s.history = append(s.history, models.Turn{
		ID:        uuid.New().String(),
		Text:      prompt,
		FromUser:  true,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	// A finished turn must not stay registered on the parent context.
	defer cancel()

	res := s.gen.Generate(ctx, model, prompt, onDelta)

	s.mu.Lock()
	s.history = append(s.history, models.Turn{
		ID:        uuid.New().String(),
		Text:      res.Text,
		FromUser:  false,
		Model:     model,
		Timestamp: time.Now(),
	})
	speak := s.autoSpeak && s.speaker != nil && res.Err == nil
	s.inFlight = false
	s.cancel = nil
	s.mu.Unlock()

	if speak {
		s.speaker.Speak(res.Text)
	}
	return res, nil
}

// Abort cancels the in-flight turn, if any, so a fresh turn can start
// without waiting out a stale stream.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// SetModel switches the model used for subsequent turns.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Model returns the model used for subsequent turns.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetAutoSpeak toggles speaking finished replies aloud. Turning it off also
// silences any utterance already in progress.
func (s *Session) SetAutoSpeak(on bool) {
	s.mu.Lock()
	s.autoSpeak = on
	speaker := s.speaker
	s.mu.Unlock()
	if !on && speaker != nil {
		speaker.Stop()
	}
}

// StopSpeaking silences any active utterance without changing the
// auto-speak setting.
func (s *Session) StopSpeaking() {
	if s.speaker != nil {
		s.speaker.Stop()
	}
}

// History returns a copy of the turn history.
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Conversation snapshots the session as a named conversation record.
func (s *Session) Conversation(name string) models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]models.Turn, len(s.history))
	copy(msgs, s.history)
	return models.Conversation{
		Name:      name,
		Messages:  msgs,
		Model:     s.model,
		Timestamp: time.Now(),
	}
}

// SaveAs persists the current history under the given name.
func (s *Session) SaveAs(ctx context.Context, name string) error {
	if s.store == nil {
		return errors.New("no store configured")
	}
	conv := s.Conversation(name)
	if len(conv.Messages) == 0 {
		return ErrNoConversation
	}
	return s.store.Save(ctx, conv)
}

// Load replaces the session history with a stored conversation. Loading is
// refused while a turn is in flight.
func (s *Session) Load(ctx context.Context, name string) error {
	if s.store == nil {
		return errors.New("no store configured")
	}
	conv, err := s.store.Load(ctx, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrTurnInFlight
	}
	s.history = conv.Messages
	if conv.Model != "" {
		s.model = conv.Model
	}
	return nil
}
