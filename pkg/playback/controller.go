package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/agrivaani/agrivaani/pkg/adapters/synthesizer"
	"github.com/agrivaani/agrivaani/pkg/errorsx"
	"github.com/agrivaani/agrivaani/pkg/events"
	"github.com/agrivaani/agrivaani/pkg/locale"
	"github.com/agrivaani/agrivaani/pkg/settings"
)

// Error is a playback failure mapped onto the closed reason taxonomy.
type Error struct {
	Reason errorsx.ReasonCode
	Raw    string
}

func (e *Error) Error() string {
	return errorsx.UserMessage(e.Reason)
}

// Hooks is the subscription surface for playback events. Events for a
// superseded utterance id are dropped before they reach the hooks.
type Hooks struct {
	OnSpeakStarted func(utteranceID string)
	OnSpeakEnded   func(utteranceID string)
	OnSpeakError   func(utteranceID string, err *Error)
}

// Controller wraps a speech-synthesis capability and guarantees at most
// one utterance in flight: Speak cancels any prior utterance before
// starting the new one.
type Controller struct {
	mu        sync.Mutex
	synth     synthesizer.Synthesizer
	voice     *settings.Voice
	hooks     Hooks
	sessionID string
	pending   string
	logger    *slog.Logger
}

// New builds a controller on the given synthesizer factory and starts
// its event pump. A factory error means synthesis is unavailable on
// this host.
func New(ctx context.Context, factory synthesizer.Factory, sessionID string, voice *settings.Voice, hooks Hooks, logger *slog.Logger) (*Controller, error) {
	synth, err := factory(sessionID)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonPlaybackUnavailable)
	}
	if err := synth.Start(ctx); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonPlaybackUnavailable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		synth:     synth,
		voice:     voice,
		hooks:     hooks,
		sessionID: sessionID,
		logger:    logger,
	}
	go c.pump()
	return c, nil
}

// Speak cancels any in-flight utterance, then synthesizes text with the
// prosody resolved from the given language. It returns the fresh
// utterance id; completion events carrying any other id are stale.
func (c *Controller) Speak(text, language string) (string, error) {
	loc := locale.Resolve(language)
	c.mu.Lock()
	if c.pending != "" {
		c.synth.Cancel()
	}
	id := uuid.NewString()
	c.pending = id
	c.mu.Unlock()

	req := synthesizer.Request{
		UtteranceID: id,
		Text:        text,
		Locale:      loc.SynthesizerTag,
		Rate:        loc.Prosody.Rate,
		Pitch:       loc.Prosody.Pitch,
	}
	if err := c.synth.Speak(req); err != nil {
		c.mu.Lock()
		if c.pending == id {
			c.pending = ""
		}
		c.mu.Unlock()
		return "", errorsx.Wrap(err, errorsx.ReasonPlaybackError)
	}
	c.logger.Debug("playback_started",
		"session_id", c.sessionID,
		"utterance_id", id,
		"locale", req.Locale,
	)
	return id, nil
}

// CancelAll cancels the in-flight utterance, if any.
func (c *Controller) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != "" {
		c.synth.Cancel()
		c.pending = ""
	}
}

// Speaking reports whether an utterance is in flight.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != ""
}

// Close shuts down the underlying capability; the pump exits when the
// capability closes its event channel.
func (c *Controller) Close() error {
	return c.synth.Close()
}

func (c *Controller) pump() {
	for ev := range c.synth.Events() {
		id := ev.Meta()[events.MetaUtteranceID]
		switch ev.Kind() {
		case events.KindControl:
			ce := ev.(events.ControlEvent)
			switch ce.Code() {
			case events.ControlSpeakStarted:
				if c.isPending(id) && c.hooks.OnSpeakStarted != nil {
					c.hooks.OnSpeakStarted(id)
				}
			case events.ControlSpeakEnded:
				if !c.clearPending(id) {
					continue
				}
				if c.hooks.OnSpeakEnded != nil {
					c.hooks.OnSpeakEnded(id)
				}
			}
		case events.KindError:
			ee := ev.(events.ErrorEvent)
			if !c.clearPending(id) {
				continue
			}
			mapped := &Error{Reason: errorsx.ReasonPlaybackError, Raw: ee.RawCode()}
			c.logger.Info("playback_error",
				"session_id", c.sessionID,
				"utterance_id", id,
				"raw_code", ee.RawCode(),
			)
			if c.hooks.OnSpeakError != nil {
				c.hooks.OnSpeakError(id, mapped)
			}
		}
	}
}

func (c *Controller) isPending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return id != "" && c.pending == id
}

// clearPending reports whether id was the in-flight utterance and marks
// it done. Stale ids leave state untouched.
func (c *Controller) clearPending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" || c.pending != id {
		return false
	}
	c.pending = ""
	return true
}
