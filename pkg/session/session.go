package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrivaani/agrivaani/pkg/adapters/recognizer"
	"github.com/agrivaani/agrivaani/pkg/adapters/synthesizer"
	"github.com/agrivaani/agrivaani/pkg/capture"
	"github.com/agrivaani/agrivaani/pkg/errorsx"
	"github.com/agrivaani/agrivaani/pkg/locale"
	"github.com/agrivaani/agrivaani/pkg/logging"
	"github.com/agrivaani/agrivaani/pkg/playback"
	"github.com/agrivaani/agrivaani/pkg/respond"
	"github.com/agrivaani/agrivaani/pkg/settings"
)

// SessionError is the user-facing record of the last surfaced failure.
type SessionError struct {
	Reason  errorsx.ReasonCode `json:"reason"`
	Message string             `json:"message"`
}

// Config wires one conversation session.
type Config struct {
	SessionID   string
	Recognizer  recognizer.Factory
	Synthesizer synthesizer.Factory
	Responder   respond.Engine
	Language    string
	Logger      *slog.Logger
}

// Session orchestrates the voice interaction pipeline: it owns the
// transcript log and the state machine, and wires capture output into
// the response engine and response output into playback.
//
// All state mutation happens on a single event-loop goroutine; the
// capability controllers post their callbacks onto that loop, so
// ordering from one source is preserved and re-entrancy rules are
// enforceable in one place.
type Session struct {
	id        string
	voice     *settings.Voice
	sm        *stateMachine
	capture   *capture.Controller
	playback  *playback.Controller
	responder respond.Engine
	logger    *slog.Logger

	queue  chan func()
	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.RWMutex
	messages          []Message
	currentTranscript string
	lastErr           *SessionError
	pendingUtterance  string
	generation        uint64
	seq               uint64
	turnLang          string
}

// New builds and starts a session. Capability availability is checked
// here: an unusable recognizer or synthesizer fails construction with
// the corresponding reason code.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	lang := cfg.Language
	if !locale.Supported(lang) {
		lang = locale.DefaultLanguage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewComponentLogger(slog.Default(), "session")
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:        cfg.SessionID,
		voice:     settings.NewVoice(lang),
		sm:        newStateMachine(),
		responder: cfg.Responder,
		logger:    logger,
		queue:     make(chan func(), 64),
		ctx:       sctx,
		cancel:    cancel,
	}

	capCtrl, err := capture.New(cfg.Recognizer, cfg.SessionID, s.voice, capture.Hooks{
		OnInterimTranscript: func(text string) {
			s.post(func() { s.setCurrentTranscript(text) })
		},
		OnFinalTranscript: func(text string) {
			s.post(func() { s.handleFinalTranscript(text) })
		},
		OnError: func(capErr *capture.Error) {
			s.post(func() { s.handleCaptureError(capErr) })
		},
		OnEnded: func() {
			s.post(func() { s.handleCaptureEnded() })
		},
	}, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	s.capture = capCtrl

	play, err := playback.New(sctx, cfg.Synthesizer, cfg.SessionID, s.voice, playback.Hooks{
		OnSpeakEnded: func(id string) {
			s.post(func() { s.handleSpeakEnded(id) })
		},
		OnSpeakError: func(id string, playErr *playback.Error) {
			s.post(func() { s.handleSpeakError(id, playErr) })
		},
	}, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	s.playback = play

	go s.loop()
	return s, nil
}

// loop is the session's single logical thread.
func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.queue:
			fn()
		}
	}
}

func (s *Session) post(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.ctx.Done():
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current pipeline state.
func (s *Session) State() State { return s.sm.State() }

// Settings returns the mutable voice settings shared with the
// controllers. Mutate them through the session methods only.
func (s *Session) Settings() *settings.Voice { return s.voice }

// AddListener registers a state change listener.
func (s *Session) AddListener(l StateListener) { s.sm.AddListener(l) }

// Transcript returns a copy of the ordered message log.
func (s *Session) Transcript() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// CurrentTranscript returns the latest partial-or-final capture text.
func (s *Session) CurrentTranscript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTranscript
}

// LastError returns the most recently surfaced error, if any.
func (s *Session) LastError() *SessionError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ToggleCapture starts listening from Idle and stops it while
// Listening. While Processing or Speaking the request is refused.
func (s *Session) ToggleCapture() {
	s.post(func() {
		switch s.sm.State() {
		case StateIdle:
			s.mu.Lock()
			s.currentTranscript = ""
			s.lastErr = nil
			s.turnLang = s.voice.Language()
			s.mu.Unlock()
			if err := s.sm.Transition(StateListening, "capture toggled on"); err != nil {
				return
			}
			if err := s.capture.Start(s.ctx); err != nil {
				s.surfaceError(errorsx.Reason(err))
			}
		case StateListening:
			if err := s.sm.Transition(StateIdle, "capture toggled off"); err != nil {
				return
			}
			s.capture.Stop()
		default:
			// Busy turn; the UI disables the control but the session
			// refuses anyway.
			s.logger.Debug("capture_toggle_refused", "session_id", s.id, "state", s.sm.State().String())
		}
	})
}

// SetLanguage updates the session language. It applies to the next
// capture/playback cycle; an in-flight cycle keeps the language it
// started with.
func (s *Session) SetLanguage(code string) {
	s.post(func() {
		if !locale.Supported(code) {
			s.logger.Warn("unsupported_language", "session_id", s.id, "language", code)
		}
		s.voice.SetLanguage(code)
	})
}

// SetContinuousCapture updates the capture mode for the next cycle.
func (s *Session) SetContinuousCapture(enabled bool) {
	s.post(func() { s.voice.SetContinuousCapture(enabled) })
}

// Clear wipes the transcript and returns to Idle, cancelling any
// in-flight capture and playback. A response still being generated is
// invalidated via the generation counter and dropped on arrival.
func (s *Session) Clear() {
	s.post(func() {
		s.mu.Lock()
		s.generation++
		s.messages = nil
		s.currentTranscript = ""
		s.lastErr = nil
		s.pendingUtterance = ""
		s.mu.Unlock()
		s.capture.Abort()
		s.playback.CancelAll()
		if s.sm.State() != StateIdle {
			_ = s.sm.Transition(StateIdle, "conversation cleared")
		}
		s.logger.Info("session_cleared", "session_id", s.id)
	})
}

// ReplayLast re-speaks the most recent assistant message without
// appending a new one. It is honored from Idle only.
func (s *Session) ReplayLast() {
	s.post(func() {
		if s.sm.State() != StateIdle {
			return
		}
		s.mu.RLock()
		var last *Message
		for i := len(s.messages) - 1; i >= 0; i-- {
			if s.messages[i].Role == RoleAssistant {
				last = &s.messages[i]
				break
			}
		}
		s.mu.RUnlock()
		if last == nil {
			return
		}
		if err := s.sm.Transition(StateSpeaking, "replay last response"); err != nil {
			return
		}
		s.speak(last.Text, last.Language)
	})
}

// Close tears the session down.
func (s *Session) Close() error {
	s.capture.Abort()
	s.playback.CancelAll()
	s.cancel()
	return s.playback.Close()
}

func (s *Session) setCurrentTranscript(text string) {
	if s.sm.State() != StateListening {
		return
	}
	s.mu.Lock()
	s.currentTranscript = text
	s.mu.Unlock()
}

func (s *Session) handleFinalTranscript(text string) {
	if s.sm.State() != StateListening {
		// The listening period was already closed; a late final
		// transcript is stale and appends nothing.
		return
	}
	s.mu.Lock()
	s.currentTranscript = text
	lang := s.turnLang
	gen := s.generation
	s.mu.Unlock()

	if err := s.sm.Transition(StateProcessing, "final transcript received"); err != nil {
		return
	}
	s.append(RoleUser, text, lang)

	go func() {
		response, err := s.responder.Generate(s.ctx, text, lang)
		s.post(func() { s.handleResponse(gen, response, err, lang) })
	}()
}

func (s *Session) handleResponse(gen uint64, response string, err error, lang string) {
	s.mu.RLock()
	current := s.generation
	s.mu.RUnlock()
	if gen != current || s.sm.State() != StateProcessing {
		s.logger.Debug("stale_response_dropped", "session_id", s.id, "state", s.sm.State().String())
		return
	}
	if err != nil {
		// The user's message stays in the transcript so they need not
		// re-speak it.
		s.surfaceError(errorsx.ReasonResponseFailed)
		return
	}
	if terr := s.sm.Transition(StateSpeaking, "response received"); terr != nil {
		return
	}
	s.append(RoleAssistant, response, lang)
	s.speak(response, lang)
}

func (s *Session) speak(text, lang string) {
	id, err := s.playback.Speak(text, lang)
	if err != nil {
		s.surfaceError(errorsx.Reason(err))
		return
	}
	s.mu.Lock()
	s.pendingUtterance = id
	s.mu.Unlock()
}

func (s *Session) handleSpeakEnded(id string) {
	if !s.takePendingUtterance(id) {
		return
	}
	if s.sm.State() == StateSpeaking {
		_ = s.sm.Transition(StateIdle, "playback ended")
	}
}

func (s *Session) handleSpeakError(id string, playErr *playback.Error) {
	if !s.takePendingUtterance(id) {
		return
	}
	if s.sm.State() == StateSpeaking {
		// The assistant message that was being spoken stays in the
		// transcript.
		s.surfaceError(playErr.Reason)
	}
}

func (s *Session) handleCaptureError(capErr *capture.Error) {
	if s.sm.State() != StateListening {
		return
	}
	s.surfaceError(capErr.Reason)
}

func (s *Session) handleCaptureEnded() {
	// A period that produced a final transcript has already moved to
	// Processing; a period closed by toggle or error has already left
	// Listening. Anything still Listening here ended naturally.
	if s.sm.State() == StateListening {
		_ = s.sm.Transition(StateIdle, "capture ended")
	}
}

// takePendingUtterance reports whether id is the in-flight utterance
// and clears it. Completions for superseded utterances are stale.
func (s *Session) takePendingUtterance(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.pendingUtterance != id {
		return false
	}
	s.pendingUtterance = ""
	return true
}

func (s *Session) append(role Role, text, lang string) {
	s.mu.Lock()
	s.seq++
	msg := Message{
		ID:        newMessageID(s.seq),
		Role:      role,
		Text:      text,
		Language:  lang,
		CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.logger.Debug("message_appended",
		"session_id", s.id,
		"message_id", msg.ID,
		"role", string(role),
		"language", lang,
	)
}

// surfaceError records the error, passes through the transient Error
// state so listeners observe it, then auto-clears to Idle.
func (s *Session) surfaceError(reason errorsx.ReasonCode) {
	s.mu.Lock()
	s.lastErr = &SessionError{Reason: reason, Message: errorsx.UserMessage(reason)}
	s.mu.Unlock()
	s.logger.Info("session_error",
		"session_id", s.id,
		"reason_code", string(reason),
	)
	if err := s.sm.Transition(StateError, string(reason)); err != nil {
		return
	}
	_ = s.sm.Transition(StateIdle, "error surfaced")
}
