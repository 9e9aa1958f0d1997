// Package speech voices finished assistant replies. Synthesis itself is an
// external capability behind the Synthesizer interface; this package owns
// only the start/stop lifecycle around it and guarantees that no two
// utterances ever overlap.
package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// Synthesizer converts text to audible speech, blocking until the utterance
// finishes or the context is cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// CommandSynthesizer speaks by running an external text-to-speech command
// (say on macOS, espeak on Linux) with the text as its final argument.
type CommandSynthesizer struct {
	name string
	args []string
}

// NewCommandSynthesizer creates a synthesizer around the given command and
// fixed leading arguments.
func NewCommandSynthesizer(name string, args ...string) CommandSynthesizer {
	return CommandSynthesizer{name: name, args: args}
}

// Speak runs the command once for the whole text. Cancelling the context
// kills the process mid-utterance.
func (c CommandSynthesizer) Speak(ctx context.Context, text string) error {
	args := append(append([]string{}, c.args...), text)
	return exec.CommandContext(ctx, c.name, args...).Run()
}

// Speaker serializes utterances over a Synthesizer. It holds a two-state
// machine, idle and speaking: Speak while idle starts an utterance and moves
// to speaking, Speak while speaking is ignored, and finishing, failing, or
// Stop all return it to idle.
type Speaker struct {
	synth  Synthesizer
	logger *slog.Logger

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSpeaker creates a Speaker over the given synthesizer. A nil logger
// discards diagnostics.
func NewSpeaker(synth Synthesizer, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Speaker{
		synth:  synth,
		logger: logger.With(slog.String("module", "speech")),
	}
}

// Speak starts voicing the text, stripped of markup, and returns immediately.
// It reports whether the utterance was accepted: a Speaker already mid-
// utterance ignores the request.
func (sp *Speaker) Speak(text string) bool {
	sp.mu.Lock()
	if sp.speaking {
		sp.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sp.speaking = true
	sp.cancel = cancel
	sp.done = done
	sp.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			sp.mu.Lock()
			sp.speaking = false
			sp.cancel = nil
			sp.done = nil
			sp.mu.Unlock()
			close(done)
		}()

		if err := sp.synth.Speak(ctx, StripMarkup(text)); err != nil && !errors.Is(err, context.Canceled) {
			sp.logger.Error("Synthesizer failed", slog.String("err", err.Error()))
		}
	}()
	return true
}

// Stop cancels the active utterance, if any, and forces the speaker idle.
func (sp *Speaker) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.cancel != nil {
		sp.cancel()
	}
}

// Wait blocks until the active utterance finishes. It returns immediately on
// an idle speaker.
func (sp *Speaker) Wait() {
	sp.mu.Lock()
	done := sp.done
	sp.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Speaking reports whether an utterance is currently active.
func (sp *Speaker) Speaking() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.speaking
}
