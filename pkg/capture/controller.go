package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agrivaani/agrivaani/pkg/adapters/recognizer"
	"github.com/agrivaani/agrivaani/pkg/errorsx"
	"github.com/agrivaani/agrivaani/pkg/events"
	"github.com/agrivaani/agrivaani/pkg/locale"
	"github.com/agrivaani/agrivaani/pkg/settings"
)

// Error is a capture failure mapped onto the closed reason taxonomy.
// Raw keeps the capability's own code for logs; Error() is the stable
// user-presentable message.
type Error struct {
	Reason errorsx.ReasonCode
	Raw    string
}

func (e *Error) Error() string {
	return errorsx.UserMessage(e.Reason)
}

// Hooks is the subscription surface for capture events. Nil hooks are
// skipped. OnEnded fires exactly once per successful Start.
type Hooks struct {
	OnListeningStarted  func()
	OnInterimTranscript func(text string)
	OnFinalTranscript   func(text string)
	OnError             func(err *Error)
	OnEnded             func()
}

// Controller wraps a speech-recognition capability: it opens at most
// one listening period at a time and translates raw capability events
// into the hook surface.
type Controller struct {
	mu         sync.Mutex
	rec        recognizer.Recognizer
	voice      *settings.Voice
	hooks      Hooks
	sessionID  string
	listening  bool
	transcript string
	logger     *slog.Logger
}

// New builds a controller on the given recognizer factory. A factory
// error means the capability is unavailable on this host; that is
// reported here, never lazily on first Start.
func New(factory recognizer.Factory, sessionID string, voice *settings.Voice, hooks Hooks, logger *slog.Logger) (*Controller, error) {
	rec, err := factory(sessionID)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonCaptureUnsupported)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		rec:       rec,
		voice:     voice,
		hooks:     hooks,
		sessionID: sessionID,
		logger:    logger,
	}, nil
}

// Start opens a listening period using the locale resolved from the
// current language setting. A Start while already listening is a no-op,
// not a queued request.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.listening {
		c.mu.Unlock()
		return nil
	}
	loc := locale.Resolve(c.voice.Language())
	cfg := recognizer.Config{
		SessionID:      c.sessionID,
		Locale:         loc.RecognizerTag,
		Continuous:     c.voice.ContinuousCapture(),
		InterimResults: true,
	}
	c.transcript = ""
	c.listening = true
	c.mu.Unlock()

	if err := c.rec.Start(ctx, cfg); err != nil {
		c.mu.Lock()
		c.listening = false
		c.mu.Unlock()
		return errorsx.Wrap(err, errorsx.ReasonCaptureDevice)
	}
	c.logger.Debug("capture_started", "session_id", c.sessionID, "locale", cfg.Locale)
	go c.pump()
	return nil
}

// Stop ends the current listening period gracefully.
func (c *Controller) Stop() {
	c.mu.Lock()
	listening := c.listening
	c.mu.Unlock()
	if listening {
		_ = c.rec.Stop()
	}
}

// Abort ends the current listening period immediately.
func (c *Controller) Abort() {
	c.mu.Lock()
	listening := c.listening
	c.mu.Unlock()
	if listening {
		_ = c.rec.Abort()
	}
}

// Listening reports whether a listening period is open.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Transcript returns the latest partial-or-final text of the current
// listening period.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// pump drains capability events for one listening period. It exits on
// capture_ended (or channel close) after firing OnEnded exactly once.
func (c *Controller) pump() {
	defer c.ended()
	for ev := range c.rec.Events() {
		switch ev.Kind() {
		case events.KindControl:
			ce := ev.(events.ControlEvent)
			switch ce.Code() {
			case events.ControlListeningStarted:
				if c.hooks.OnListeningStarted != nil {
					c.hooks.OnListeningStarted()
				}
			case events.ControlCaptureEnded:
				return
			}
		case events.KindTranscript:
			te := ev.(events.TranscriptEvent)
			c.mu.Lock()
			c.transcript = te.Text()
			c.mu.Unlock()
			if te.Final() {
				if c.hooks.OnFinalTranscript != nil {
					c.hooks.OnFinalTranscript(te.Text())
				}
			} else if c.hooks.OnInterimTranscript != nil {
				c.hooks.OnInterimTranscript(te.Text())
			}
		case events.KindError:
			ee := ev.(events.ErrorEvent)
			mapped := &Error{Reason: MapRawCode(ee.RawCode()), Raw: ee.RawCode()}
			c.logger.Info("capture_error",
				"session_id", c.sessionID,
				"reason_code", string(mapped.Reason),
				"raw_code", ee.RawCode(),
			)
			if c.hooks.OnError != nil {
				c.hooks.OnError(mapped)
			}
		}
	}
}

// ended closes the listening period before notifying, so a new Start is
// legal from inside the OnEnded hook.
func (c *Controller) ended() {
	c.mu.Lock()
	c.listening = false
	c.mu.Unlock()
	if c.hooks.OnEnded != nil {
		c.hooks.OnEnded()
	}
}

// MapRawCode translates a capability's raw error vocabulary into the
// closed reason set.
func MapRawCode(raw string) errorsx.ReasonCode {
	switch raw {
	case "not-allowed", "service-not-allowed", "permission-denied":
		return errorsx.ReasonCapturePermission
	case "no-speech":
		return errorsx.ReasonCaptureNoSpeech
	case "network":
		return errorsx.ReasonCaptureNetwork
	case "audio-capture", "audio-hardware":
		return errorsx.ReasonCaptureDevice
	case "aborted":
		return errorsx.ReasonCaptureAborted
	default:
		return errorsx.ReasonUnknown
	}
}
