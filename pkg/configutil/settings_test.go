package configutil

import "testing"

func TestDecodeSettingsNormalizesKeys(t *testing.T) {
	var out struct {
		APIKey     string
		SampleRate int
	}
	input := map[string]any{
		"api_key":     "secret",
		"sample-rate": "16000",
	}
	if err := DecodeSettings(input, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.APIKey != "secret" {
		t.Fatalf("expected api_key to match APIKey, got %q", out.APIKey)
	}
	if out.SampleRate != 16000 {
		t.Fatalf("expected weakly typed int, got %d", out.SampleRate)
	}
}

func TestDecodeSettingsEmptyInput(t *testing.T) {
	var out struct{ APIKey string }
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if out.APIKey != "" {
		t.Fatalf("nil input must leave the struct zeroed")
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("value", "some.path"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RequireString("  ", "some.path"); err == nil {
		t.Fatalf("expected whitespace-only value to be rejected")
	}
}
