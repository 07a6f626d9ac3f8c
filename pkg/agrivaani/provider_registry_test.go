package agrivaani

import (
	"context"
	"testing"

	"github.com/agrivaani/agrivaani/pkg/respond"
)

func TestBuiltinProviders(t *testing.T) {
	reg := NewProviderRegistry()
	cfg := Config{
		Response: ResponseConfig{MinDelayMS: 10, MaxDelayMS: 20},
	}

	recFactory, err := reg.BuildRecognizerFactory("sim", cfg)
	if err != nil {
		t.Fatalf("build sim recognizer: %v", err)
	}
	if rec, err := recFactory("sess-1"); err != nil || rec == nil {
		t.Fatalf("sim recognizer factory failed: %v", err)
	}

	synthFactory, err := reg.BuildSynthesizerFactory("sim", cfg)
	if err != nil {
		t.Fatalf("build sim synthesizer: %v", err)
	}
	if synth, err := synthFactory("sess-1"); err != nil || synth == nil {
		t.Fatalf("sim synthesizer factory failed: %v", err)
	}

	responder, err := reg.BuildResponder("local", cfg)
	if err != nil {
		t.Fatalf("build local responder: %v", err)
	}
	if responder.Name() != "local" {
		t.Fatalf("unexpected responder %s", responder.Name())
	}
}

func TestUnknownProvidersAreRejected(t *testing.T) {
	reg := NewProviderRegistry()
	if _, err := reg.BuildRecognizerFactory("whisper", Config{}); err == nil {
		t.Fatalf("expected unknown recognizer to be rejected")
	}
	if _, err := reg.BuildSynthesizerFactory("polly", Config{}); err == nil {
		t.Fatalf("expected unknown synthesizer to be rejected")
	}
	if _, err := reg.BuildResponder("remote", Config{}); err == nil {
		t.Fatalf("expected unknown responder to be rejected")
	}
}

func TestDeepgramBuilderRequiresAPIKey(t *testing.T) {
	reg := NewProviderRegistry()
	cfg := Config{}
	cfg.Vendors.Recognizer.Settings = map[string]any{"model": "nova-2"}
	if _, err := reg.BuildRecognizerFactory("deepgram", cfg); err == nil {
		t.Fatalf("expected missing api key to fail")
	}

	cfg.Vendors.Recognizer.Settings["api_key"] = "dg-secret"
	factory, err := reg.BuildRecognizerFactory("deepgram", cfg)
	if err != nil {
		t.Fatalf("build deepgram recognizer: %v", err)
	}
	if rec, err := factory("sess-1"); err != nil || rec == nil {
		t.Fatalf("deepgram factory failed: %v", err)
	}
}

func TestRegisterOverridesResponder(t *testing.T) {
	reg := NewProviderRegistry()
	reg.RegisterResponder("local", func(cfg Config) (respond.Engine, error) {
		return &staticResponder{}, nil
	})
	responder, err := reg.BuildResponder("local", Config{})
	if err != nil {
		t.Fatalf("build responder: %v", err)
	}
	if responder.Name() != "static" {
		t.Fatalf("expected the override to win, got %s", responder.Name())
	}
}

type staticResponder struct{}

func (staticResponder) Name() string { return "static" }

func (staticResponder) Generate(ctx context.Context, text, language string) (string, error) {
	return "static answer", nil
}
