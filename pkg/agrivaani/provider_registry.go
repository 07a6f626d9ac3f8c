package agrivaani

import (
	"fmt"
	"sync"
	"time"

	"github.com/agrivaani/agrivaani/pkg/adapters/recognizer"
	"github.com/agrivaani/agrivaani/pkg/adapters/synthesizer"
	"github.com/agrivaani/agrivaani/pkg/configutil"
	"github.com/agrivaani/agrivaani/pkg/providers/deepgram"
	"github.com/agrivaani/agrivaani/pkg/providers/sim"
	"github.com/agrivaani/agrivaani/pkg/respond"
)

type RecognizerBuilder func(cfg Config) (recognizer.Factory, error)
type SynthesizerBuilder func(cfg Config) (synthesizer.Factory, error)
type ResponderBuilder func(cfg Config) (respond.Engine, error)

// ProviderRegistry maps vendor names to capability builders. Built-in
// providers are registered up front; embedders can override or add
// their own (e.g., a remote responder) before engine construction.
type ProviderRegistry struct {
	mu           sync.RWMutex
	recognizers  map[string]RecognizerBuilder
	synthesizers map[string]SynthesizerBuilder
	responders   map[string]ResponderBuilder
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		recognizers:  make(map[string]RecognizerBuilder),
		synthesizers: make(map[string]SynthesizerBuilder),
		responders:   make(map[string]ResponderBuilder),
	}
	r.RegisterRecognizer("sim", buildSimRecognizer)
	r.RegisterRecognizer("deepgram", buildDeepgramRecognizer)
	r.RegisterSynthesizer("sim", buildSimSynthesizer)
	r.RegisterResponder("local", buildLocalResponder)
	return r
}

func (r *ProviderRegistry) RegisterRecognizer(name string, b RecognizerBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = b
}

func (r *ProviderRegistry) RegisterSynthesizer(name string, b SynthesizerBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synthesizers[name] = b
}

func (r *ProviderRegistry) RegisterResponder(name string, b ResponderBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responders[name] = b
}

func (r *ProviderRegistry) BuildRecognizerFactory(name string, cfg Config) (recognizer.Factory, error) {
	r.mu.RLock()
	b, ok := r.recognizers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown recognizer provider: %s", name)
	}
	return b(cfg)
}

func (r *ProviderRegistry) BuildSynthesizerFactory(name string, cfg Config) (synthesizer.Factory, error) {
	r.mu.RLock()
	b, ok := r.synthesizers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown synthesizer provider: %s", name)
	}
	return b(cfg)
}

func (r *ProviderRegistry) BuildResponder(name string, cfg Config) (respond.Engine, error) {
	r.mu.RLock()
	b, ok := r.responders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown responder provider: %s", name)
	}
	return b(cfg)
}

func buildSimRecognizer(cfg Config) (recognizer.Factory, error) {
	return func(sessionID string) (recognizer.Recognizer, error) {
		return sim.NewRecognizer(), nil
	}, nil
}

func buildSimSynthesizer(cfg Config) (synthesizer.Factory, error) {
	var settings struct {
		AutoComplete *bool
		DelayMS      int
	}
	if err := configutil.DecodeSettings(cfg.Vendors.Synthesizer.Settings, &settings); err != nil {
		return nil, err
	}
	auto := true
	if settings.AutoComplete != nil {
		auto = *settings.AutoComplete
	}
	return func(sessionID string) (synthesizer.Synthesizer, error) {
		return sim.NewSynthesizer(sim.SynthesizerConfig{
			SessionID:    sessionID,
			AutoComplete: auto,
			Delay:        time.Duration(settings.DelayMS) * time.Millisecond,
		}), nil
	}, nil
}

// buildDeepgramRecognizer wires the Deepgram capability from vendor
// settings. The audio source is host-specific; embedders that need one
// register a wrapping builder that sets it.
func buildDeepgramRecognizer(cfg Config) (recognizer.Factory, error) {
	var settings struct {
		APIKey     string
		Model      string
		SampleRate int
		Encoding   string
	}
	if err := configutil.DecodeSettings(cfg.Vendors.Recognizer.Settings, &settings); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(settings.APIKey, "vendors.recognizer.settings.api_key"); err != nil {
		return nil, err
	}
	return func(sessionID string) (recognizer.Recognizer, error) {
		return deepgram.New(deepgram.Config{
			APIKey:     settings.APIKey,
			Model:      settings.Model,
			SampleRate: settings.SampleRate,
			Encoding:   settings.Encoding,
		}), nil
	}, nil
}

func buildLocalResponder(cfg Config) (respond.Engine, error) {
	return respond.NewLocalEngine(respond.Config{
		MinDelay: time.Duration(cfg.Response.MinDelayMS) * time.Millisecond,
		MaxDelay: time.Duration(cfg.Response.MaxDelayMS) * time.Millisecond,
	}), nil
}
