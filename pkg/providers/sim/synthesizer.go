package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agrivaani/agrivaani/pkg/adapters/synthesizer"
	"github.com/agrivaani/agrivaani/pkg/events"
)

// SynthesizerConfig tunes the simulated synthesis capability. With
// AutoComplete set, each utterance ends on its own after Delay;
// otherwise the caller drives completion via FinishCurrent/FailCurrent.
type SynthesizerConfig struct {
	SessionID    string
	AutoComplete bool
	Delay        time.Duration
}

// Synthesizer is a simulated speech-synthesis capability.
type Synthesizer struct {
	cfg     SynthesizerConfig
	out     chan events.Event
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	current string
}

func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	return &Synthesizer{cfg: cfg, out: make(chan events.Event, 16)}
}

func (s *Synthesizer) Name() string { return "sim_synthesizer" }

func (s *Synthesizer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
	s.current = ""
	return nil
}

func (s *Synthesizer) Speak(req synthesizer.Request) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.New("not started")
	}
	s.current = req.UtteranceID
	s.mu.Unlock()

	s.emit(events.NewControlEvent(s.cfg.SessionID, events.ControlSpeakStarted, map[string]string{
		events.MetaSource:      "synthesizer",
		events.MetaUtteranceID: req.UtteranceID,
		events.MetaLocale:      req.Locale,
	}))

	if s.cfg.AutoComplete {
		id := req.UtteranceID
		time.AfterFunc(s.cfg.Delay, func() {
			s.finish(id)
		})
	}
	return nil
}

func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	id := s.current
	s.current = ""
	s.mu.Unlock()
	if id == "" {
		return
	}
	s.emit(events.NewControlEvent(s.cfg.SessionID, events.ControlCancelled, map[string]string{
		events.MetaSource:      "synthesizer",
		events.MetaUtteranceID: id,
	}))
}

func (s *Synthesizer) Events() <-chan events.Event { return s.out }

// FinishCurrent completes the in-flight utterance, if any.
func (s *Synthesizer) FinishCurrent() {
	s.mu.Lock()
	id := s.current
	s.mu.Unlock()
	s.finish(id)
}

// FailCurrent fails the in-flight utterance with a raw code.
func (s *Synthesizer) FailCurrent(rawCode string) {
	s.mu.Lock()
	id := s.current
	s.current = ""
	s.mu.Unlock()
	if id == "" {
		return
	}
	s.emit(events.NewErrorEvent(s.cfg.SessionID, rawCode, "simulated synthesis failure", map[string]string{
		events.MetaSource:      "synthesizer",
		events.MetaUtteranceID: id,
	}))
}

func (s *Synthesizer) finish(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	if s.current != id {
		s.mu.Unlock()
		return
	}
	s.current = ""
	s.mu.Unlock()
	s.emit(events.NewControlEvent(s.cfg.SessionID, events.ControlSpeakEnded, map[string]string{
		events.MetaSource:      "synthesizer",
		events.MetaUtteranceID: id,
	}))
}

func (s *Synthesizer) emit(ev events.Event) {
	select {
	case s.out <- ev:
	default:
	}
}

var _ synthesizer.Synthesizer = (*Synthesizer)(nil)
