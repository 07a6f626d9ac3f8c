package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/agrivaani/agrivaani/pkg/adapters/recognizer"
	"github.com/agrivaani/agrivaani/pkg/events"
)

// Recognizer is a scriptable speech-recognition capability. Tests and
// the console example drive it by hand: Hear emits an interim
// transcript, Finish a final one, Fail a raw capability error.
type Recognizer struct {
	mu     sync.Mutex
	cfg    recognizer.Config
	out    chan events.Event
	ctx    context.Context
	cancel context.CancelFunc
	active bool
}

func NewRecognizer() *Recognizer {
	return &Recognizer{out: make(chan events.Event, 16)}
}

func (r *Recognizer) Name() string { return "sim_recognizer" }

func (r *Recognizer) Start(ctx context.Context, cfg recognizer.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return errors.New("already listening")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.cfg = cfg
	r.active = true
	r.mu.Unlock()

	r.emit(events.NewControlEvent(cfg.SessionID, events.ControlListeningStarted, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaLocale: cfg.Locale,
	}))
	return nil
}

func (r *Recognizer) Stop() error {
	return r.end("stopped")
}

func (r *Recognizer) Abort() error {
	return r.end("aborted")
}

func (r *Recognizer) Events() <-chan events.Event { return r.out }

// Hear emits an interim transcript for the open listening period.
func (r *Recognizer) Hear(text string) {
	r.mu.Lock()
	cfg, active := r.cfg, r.active
	r.mu.Unlock()
	if !active || !cfg.InterimResults {
		return
	}
	r.emit(events.NewTranscriptEvent(cfg.SessionID, text, false, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaLocale: cfg.Locale,
	}))
}

// Finish emits a final transcript and closes the listening period.
func (r *Recognizer) Finish(text string) {
	r.mu.Lock()
	cfg, active := r.cfg, r.active
	r.active = false
	r.mu.Unlock()
	if !active {
		return
	}
	r.emit(events.NewTranscriptEvent(cfg.SessionID, text, true, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaLocale: cfg.Locale,
	}))
	r.emit(events.NewControlEvent(cfg.SessionID, events.ControlCaptureEnded, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaReason: "speech_final",
	}))
}

// Fail emits a raw capability error and closes the listening period.
func (r *Recognizer) Fail(rawCode string) {
	r.mu.Lock()
	cfg, active := r.cfg, r.active
	r.active = false
	r.mu.Unlock()
	if !active {
		return
	}
	r.emit(events.NewErrorEvent(cfg.SessionID, rawCode, "simulated recognizer failure", map[string]string{
		events.MetaSource: "recognizer",
	}))
	r.emit(events.NewControlEvent(cfg.SessionID, events.ControlCaptureEnded, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaReason: "error",
	}))
}

func (r *Recognizer) end(reason string) error {
	r.mu.Lock()
	cfg, active := r.cfg, r.active
	r.active = false
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	if !active {
		return nil
	}
	r.emit(events.NewControlEvent(cfg.SessionID, events.ControlCaptureEnded, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaReason: reason,
	}))
	return nil
}

func (r *Recognizer) emit(ev events.Event) {
	select {
	case r.out <- ev:
	default:
	}
}

var _ recognizer.Recognizer = (*Recognizer)(nil)
