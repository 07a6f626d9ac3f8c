package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/agrivaani/agrivaani/pkg/adapters/recognizer"
	"github.com/agrivaani/agrivaani/pkg/events"
	"github.com/agrivaani/agrivaani/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Config holds vendor settings for the Deepgram recognizer. AudioSource
// supplies raw audio for the listening period (a microphone stream on a
// real host); the capability itself stays injectable.
type Config struct {
	APIKey      string
	Model       string
	SampleRate  int
	Encoding    string
	AudioSource io.Reader
}

// Recognizer streams audio to Deepgram over its websocket SDK and
// translates SDK callbacks into capability events.
type Recognizer struct {
	cfg    Config
	out    chan events.Event
	logger *slog.Logger

	mu         sync.Mutex
	dgClient   *client.WSCallback
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	session    recognizer.Config
	active     bool
	ended      bool
	metaLogged bool
}

func New(cfg Config) *Recognizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	return &Recognizer{
		cfg:    cfg,
		out:    make(chan events.Event, 64),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_recognizer"),
	}
}

func (r *Recognizer) Name() string { return "deepgram_streaming" }

func (r *Recognizer) Start(ctx context.Context, cfg recognizer.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return fmt.Errorf("already listening")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.session = cfg
	r.active = true
	r.ended = false
	r.pipeReader, r.pipeWriter = io.Pipe()
	r.mu.Unlock()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          r.cfg.Model,
		Language:       cfg.Locale,
		Encoding:       r.cfg.Encoding,
		SampleRate:     r.cfg.SampleRate,
		InterimResults: cfg.InterimResults,
		VadEvents:      true,
		SmartFormat:    true,
	}

	r.logger.Info("initializing deepgram connection",
		slog.String("session_id", cfg.SessionID),
		slog.String("model", r.cfg.Model),
		slog.String("locale", cfg.Locale),
		slog.Int("sample_rate", r.cfg.SampleRate))

	cb := &callback{parent: r}
	dgClient, err := client.NewWSUsingCallback(r.ctx, r.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		r.failStart()
		return err
	}
	r.mu.Lock()
	r.dgClient = dgClient
	r.mu.Unlock()

	if connected := dgClient.Connect(); !connected {
		r.failStart()
		return fmt.Errorf("deepgram connection failed")
	}

	r.emit(events.NewControlEvent(cfg.SessionID, events.ControlListeningStarted, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaLocale: cfg.Locale,
	}))

	go func() {
		if r.cfg.AudioSource != nil {
			if _, err := io.Copy(r.pipeWriter, r.cfg.AudioSource); err != nil && r.ctx.Err() == nil {
				r.logger.Error("audio_source_error",
					slog.String("error", err.Error()),
					slog.String("session_id", cfg.SessionID))
			}
			_ = r.pipeWriter.Close()
		}
	}()
	go func() {
		if err := dgClient.Stream(r.pipeReader); err != nil && r.ctx.Err() == nil {
			r.logger.Error("deepgram_stream_error",
				slog.String("error", err.Error()),
				slog.String("session_id", cfg.SessionID))
			r.emit(events.NewErrorEvent(cfg.SessionID, "network", err.Error(), map[string]string{
				events.MetaSource: "recognizer",
			}))
			r.end("error")
		}
	}()
	return nil
}

func (r *Recognizer) Stop() error {
	return r.shutdown("stopped")
}

func (r *Recognizer) Abort() error {
	return r.shutdown("aborted")
}

func (r *Recognizer) Events() <-chan events.Event { return r.out }

func (r *Recognizer) shutdown(reason string) error {
	r.mu.Lock()
	active := r.active
	cancel := r.cancel
	pw := r.pipeWriter
	dgClient := r.dgClient
	r.mu.Unlock()
	if !active {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	if pw != nil {
		_ = pw.Close()
	}
	if dgClient != nil {
		dgClient.Stop()
	}
	r.end(reason)
	return nil
}

func (r *Recognizer) failStart() {
	r.mu.Lock()
	r.active = false
	if r.cancel != nil {
		r.cancel()
	}
	if r.pipeWriter != nil {
		_ = r.pipeWriter.Close()
	}
	r.mu.Unlock()
}

// end closes the listening period exactly once.
func (r *Recognizer) end(reason string) {
	r.mu.Lock()
	if !r.active || r.ended {
		r.mu.Unlock()
		return
	}
	r.active = false
	r.ended = true
	sessionID := r.session.SessionID
	r.mu.Unlock()
	r.emit(events.NewControlEvent(sessionID, events.ControlCaptureEnded, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaReason: reason,
	}))
}

func (r *Recognizer) emit(ev events.Event) {
	select {
	case r.out <- ev:
	default:
		r.logger.Warn("recognizer_event_dropped", slog.String("kind", string(ev.Kind())))
	}
}

// --- Callback Implementation ---

type callback struct {
	parent *Recognizer
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened",
		slog.String("session_id", c.parent.session.SessionID))
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal

	c.parent.mu.Lock()
	cfg := c.parent.session
	c.parent.mu.Unlock()

	c.parent.emit(events.NewTranscriptEvent(cfg.SessionID, transcript, isFinal, map[string]string{
		events.MetaSource: "recognizer",
		events.MetaLocale: cfg.Locale,
	}))

	// Single-shot mode: the first final transcript closes the period.
	if isFinal && !cfg.Continuous {
		c.parent.end("speech_final")
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram_metadata_received",
			slog.String("session_id", c.parent.session.SessionID),
			slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.mu.Lock()
	cfg := c.parent.session
	c.parent.mu.Unlock()
	// No transcript arrived before the utterance closed.
	if c.parent.isActive() {
		c.parent.emit(events.NewErrorEvent(cfg.SessionID, "no-speech", "utterance ended without transcript", map[string]string{
			events.MetaSource: "recognizer",
		}))
		c.parent.end("no_speech")
	}
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.end("closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.mu.Lock()
	cfg := c.parent.session
	c.parent.mu.Unlock()
	c.parent.emit(events.NewErrorEvent(cfg.SessionID, mapSDKError(er.ErrCode), er.ErrMsg, map[string]string{
		events.MetaSource: "recognizer",
	}))
	c.parent.end("error")
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event",
		slog.String("session_id", c.parent.session.SessionID))
	return nil
}

func (r *Recognizer) isActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// mapSDKError folds Deepgram error codes into the raw vocabulary the
// capture controller understands.
func mapSDKError(code string) string {
	switch code {
	case "401", "403", "INVALID_AUTH":
		return "not-allowed"
	case "1011", "NET0001":
		return "network"
	default:
		return code
	}
}

var _ recognizer.Recognizer = (*Recognizer)(nil)
