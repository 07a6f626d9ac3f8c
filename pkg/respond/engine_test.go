package respond

import (
	"context"
	"testing"
	"time"
)

func pinnedEngine(pick int) *LocalEngine {
	return NewLocalEngine(Config{
		MinDelay: time.Millisecond,
		MaxDelay: time.Millisecond,
		Rand: func(n int) int {
			if pick >= n {
				return n - 1
			}
			return pick
		},
	})
}

func TestClassifyPriorityOrder(t *testing.T) {
	cases := []struct {
		text string
		want Category
	}{
		{"What is the weather today", CategoryWeather},
		{"will the rain change the market price", CategoryWeather},
		{"tomato price in the mandi", CategoryPrices},
		{"which seed should I sow", CategoryCrops},
		{"how do I get the crop insurance subsidy", CategoryCrops},
		{"tell me about the kisan scheme", CategorySchemes},
		{"hello there", CategoryGeneral},
		{"ధర ఎంత", CategoryPrices},
		{"వాతావరణం ఎలా ఉంది", CategoryWeather},
		{"मौसम कैसा है", CategoryWeather},
		{"योजना के बारे में बताओ", CategorySchemes},
	}
	for _, tc := range cases {
		if got := Classify(tc.text); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestGenerateEnglishWeatherPool(t *testing.T) {
	engine := pinnedEngine(0)
	got, err := engine.Generate(context.Background(), "What is the weather today", "en")
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	pool := responsePools["en"][CategoryWeather]
	if len(pool) != 3 {
		t.Fatalf("expected 3 english weather responses, got %d", len(pool))
	}
	var member bool
	for _, candidate := range pool {
		if candidate == got {
			member = true
		}
	}
	if !member {
		t.Fatalf("response %q is not in the english weather pool", got)
	}
}

func TestGenerateTeluguPricesPool(t *testing.T) {
	engine := pinnedEngine(1)
	got, err := engine.Generate(context.Background(), "ధర ఎంత", "te")
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	var member bool
	for _, candidate := range responsePools["te"][CategoryPrices] {
		if candidate == got {
			member = true
		}
	}
	if !member {
		t.Fatalf("response %q is not in the telugu prices pool", got)
	}
}

func TestGenerateDeterministicWithPinnedRand(t *testing.T) {
	engine := pinnedEngine(2)
	first, err := engine.Generate(context.Background(), "mandi rate", "hi")
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := engine.Generate(context.Background(), "mandi rate", "hi")
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		if again != first {
			t.Fatalf("expected pinned responses to repeat, got %q then %q", first, again)
		}
	}
}

func TestGenerateUnknownLanguageUsesDefaultPools(t *testing.T) {
	engine := pinnedEngine(0)
	got, err := engine.Generate(context.Background(), "crop advice", "fr")
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	var member bool
	for _, candidate := range responsePools["en"][CategoryCrops] {
		if candidate == got {
			member = true
		}
	}
	if !member {
		t.Fatalf("expected english crops response for unknown language, got %q", got)
	}
}

func TestGenerateHonorsCancellation(t *testing.T) {
	engine := NewLocalEngine(Config{
		MinDelay: time.Second,
		MaxDelay: time.Second,
		Rand:     func(n int) int { return 0 },
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Generate(ctx, "weather", "en"); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
