package agrivaani

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/agrivaani/agrivaani/pkg/bridge"
	"github.com/agrivaani/agrivaani/pkg/runner"
	"github.com/agrivaani/agrivaani/pkg/session"
)

// Engine wires one conversation session from config and providers and
// owns its lifecycle, including the optional presentation bridge.
type Engine struct {
	cfg       Config
	providers *ProviderRegistry
	sess      *session.Session
	bridge    *bridge.Server
	runner    *runner.Runner
	ctx       context.Context
	cancel    context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	SessionID string
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	SetDefaultLogger(cfg.LogLevel)

	slog.Info("agrivaani_init",
		"environment", cfg.Environment,
		"language", cfg.Language,
		"recognizer_provider", cfg.Vendors.Recognizer.Provider,
		"synthesizer_provider", cfg.Vendors.Synthesizer.Provider,
		"responder_provider", cfg.Vendors.Responder.Provider,
	)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	recFactory, err := providers.BuildRecognizerFactory(cfg.Vendors.Recognizer.Provider, cfg)
	if err != nil {
		return nil, err
	}
	synthFactory, err := providers.BuildSynthesizerFactory(cfg.Vendors.Synthesizer.Provider, cfg)
	if err != nil {
		return nil, err
	}
	responder, err := providers.BuildResponder(cfg.Vendors.Responder.Provider, cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := session.New(ctx, session.Config{
		SessionID:   opts.SessionID,
		Recognizer:  recFactory,
		Synthesizer: synthFactory,
		Responder:   responder,
		Language:    cfg.Language,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	sess.SetContinuousCapture(cfg.ContinuousCapture)

	e := &Engine{
		cfg:       cfg,
		providers: providers,
		sess:      sess,
		ctx:       ctx,
		cancel:    cancel,
	}
	if strings.TrimSpace(cfg.Bridge.Addr) != "" {
		e.bridge = bridge.NewServer(cfg.Bridge.Addr, sess, nil)
	}

	e.runner = runner.New(runner.Hooks{
		OnStart: func() {
			slog.Info("engine_ready", "session_id", sess.ID())
		},
		OnStop: func() {
			slog.Info("shutdown", "session_id", sess.ID())
		},
	})
	return e, nil
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.bridge != nil {
		if err := e.bridge.Start(ctx); err != nil {
			return err
		}
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.bridge != nil {
		_ = e.bridge.Stop()
	}
	_ = e.sess.Close()
	e.cancel()
	return e.runner.Stop()
}

func (e *Engine) Session() *session.Session { return e.sess }

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

func (e *Engine) Config() Config { return e.cfg }

func SetDefaultLogger(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
