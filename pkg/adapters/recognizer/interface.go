package recognizer

import (
	"context"

	"github.com/agrivaani/agrivaani/pkg/events"
)

// Recognizer defines the contract for any speech-recognition capability.
// One Start opens one listening period; the capability reports interim
// and final transcripts, errors and the end of the period as events.
type Recognizer interface {
	// Name returns the capability name for logging/metrics.
	Name() string
	// Start opens a listening period with the given configuration.
	Start(ctx context.Context, cfg Config) error
	// Stop ends the current listening period gracefully, delivering any
	// pending final transcript first.
	Stop() error
	// Abort ends the current listening period immediately.
	Abort() error
	// Events returns the channel of transcript/control/error events.
	Events() <-chan events.Event
}

// Config contains vendor-agnostic recognizer configuration.
type Config struct {
	SessionID      string
	Locale         string
	Continuous     bool
	InterimResults bool
}

// Factory builds a recognizer for a session. A factory error means the
// capability is unavailable on this host; callers must surface that at
// construction time, not on first Start.
type Factory func(sessionID string) (Recognizer, error)
