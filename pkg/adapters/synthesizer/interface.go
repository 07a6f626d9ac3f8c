package synthesizer

import (
	"context"

	"github.com/agrivaani/agrivaani/pkg/events"
)

// Synthesizer defines the contract for any speech-synthesis capability.
type Synthesizer interface {
	// Name returns the capability name for logging/metrics.
	Name() string
	// Start initializes the capability.
	Start(ctx context.Context) error
	// Close shuts the capability down.
	Close() error
	// Speak synthesizes one utterance. Implementations report progress
	// via speak_started/speak_ended/error events carrying the request's
	// utterance id.
	Speak(req Request) error
	// Cancel stops the current utterance, if any. No speak_ended event
	// is delivered for a cancelled utterance.
	Cancel()
	// Events returns the channel of control/error events.
	Events() <-chan events.Event
}

// Request is one discrete playback instance.
type Request struct {
	UtteranceID string
	Text        string
	Locale      string
	Rate        float64
	Pitch       float64
}

// Factory builds a synthesizer for a session. A factory error means the
// capability is unavailable on this host.
type Factory func(sessionID string) (Synthesizer, error)
