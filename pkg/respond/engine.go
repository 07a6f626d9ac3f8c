package respond

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/agrivaani/agrivaani/pkg/locale"
)

// Category is an intent bucket for a user utterance.
type Category string

const (
	CategoryWeather Category = "weather"
	CategoryPrices  Category = "prices"
	CategoryCrops   Category = "crops"
	CategorySchemes Category = "schemes"
	CategoryGeneral Category = "general"
)

// Engine produces assistant text for a user utterance. Implementations
// may be local or remote; callers only depend on the latency and error
// profile of Generate.
type Engine interface {
	Name() string
	Generate(ctx context.Context, text, language string) (string, error)
}

// Config tunes the local engine. Rand is the randomness source used to
// pick within a response pool; tests pin it for determinism.
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Rand     func(n int) int
}

// LocalEngine classifies by keyword family and answers from fixed
// per-language response pools. It stands in for a real inference call:
// only its input/output shape and latency characteristic are contract.
type LocalEngine struct {
	minDelay time.Duration
	maxDelay time.Duration
	randFn   func(n int) int
}

func NewLocalEngine(cfg Config) *LocalEngine {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 1 * time.Second
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = 3 * time.Second
	}
	randFn := cfg.Rand
	if randFn == nil {
		randFn = rand.Intn
	}
	return &LocalEngine{
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
		randFn:   randFn,
	}
}

func (e *LocalEngine) Name() string { return "local" }

// Generate classifies the utterance, waits a simulated processing
// delay, then returns one response from the (language, category) pool.
func (e *LocalEngine) Generate(ctx context.Context, text, language string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	category := Classify(text)

	delay := e.minDelay
	if spread := e.maxDelay - e.minDelay; spread > 0 {
		delay += time.Duration(e.randFn(int(spread) + 1))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	pool := poolFor(language, category)
	response := pool[e.randFn(len(pool))]
	slog.Debug("response_generated",
		"category", string(category),
		"language", language,
		"delay_ms", delay.Milliseconds(),
	)
	return response, nil
}

// keywordFamilies is evaluated in priority order; the first family with
// a hit wins. Each family carries Latin-script terms alongside the
// local-script equivalents.
var keywordFamilies = []struct {
	category Category
	terms    []string
}{
	{CategoryWeather, []string{
		"weather", "rain", "temperature", "climate", "forecast",
		"వాతావరణం", "వర్షం", "ఎండ",
		"मौसम", "बारिश", "तापमान",
	}},
	{CategoryPrices, []string{
		"price", "rate", "cost", "market", "mandi", "sell",
		"ధర", "రేటు", "మార్కెట్",
		"भाव", "कीमत", "दाम", "मंडी",
	}},
	{CategoryCrops, []string{
		"crop", "seed", "fertilizer", "pest", "sow", "harvest",
		"పంట", "విత్తనం", "ఎరువు", "పురుగు",
		"फसल", "बीज", "खाद", "कीट",
	}},
	{CategorySchemes, []string{
		"scheme", "subsidy", "loan", "insurance", "yojana", "kisan",
		"పథకం", "రుణం", "బీమా", "రాయితీ",
		"योजना", "सब्सिडी", "बीमा", "ऋण",
	}},
}

// Classify lower-cases the input and tests keyword families in fixed
// priority order: weather, prices, crops, schemes, then general.
func Classify(text string) Category {
	lowered := strings.ToLower(text)
	for _, family := range keywordFamilies {
		for _, term := range family.terms {
			if strings.Contains(lowered, term) {
				return family.category
			}
		}
	}
	return CategoryGeneral
}

func poolFor(language string, category Category) []string {
	langPools, ok := responsePools[language]
	if !ok {
		langPools = responsePools[locale.DefaultLanguage]
	}
	pool, ok := langPools[category]
	if !ok || len(pool) == 0 {
		pool = langPools[CategoryGeneral]
	}
	return pool
}

var responsePools = map[string]map[Category][]string{
	"en": {
		CategoryWeather: {
			"Today looks partly cloudy with a chance of light rain in the evening. Plan field work for the morning.",
			"The forecast shows clear skies for the next two days, good conditions for spraying and harvesting.",
			"Expect scattered showers this week. Keep harvested produce covered and drains clear.",
		},
		CategoryPrices: {
			"Tomato is trading around 25 rupees per kilo at the nearest mandi today, slightly up from yesterday.",
			"Paddy prices are steady this week. Holding for a few more days may fetch a better rate.",
			"Cotton rates dipped a little today. Check the mandi board tomorrow before you sell.",
		},
		CategoryCrops: {
			"For this season, make sure to irrigate early in the morning and watch for leaf spot on young plants.",
			"A balanced dose of nitrogen now will help tillering. Avoid overwatering in the next week.",
			"Check the underside of leaves for pest eggs and use neem spray before it spreads.",
		},
		CategorySchemes: {
			"You may be eligible for the PM-Kisan support scheme. Your nearest agriculture office can enroll you.",
			"Crop insurance enrollment is open this month. Keep your land records and bank passbook ready.",
			"There is a subsidy on drip irrigation equipment right now. Ask at the block agriculture office.",
		},
		CategoryGeneral: {
			"I can help with weather, market prices, crop care and government schemes. What would you like to know?",
			"Please ask me about the weather, mandi prices, your crops or available schemes.",
			"I did not fully catch that. Try asking about prices, weather or crop advice.",
		},
	},
	"te": {
		CategoryWeather: {
			"ఈ రోజు పాక్షికంగా మేఘావృతం, సాయంత్రం తేలికపాటి వర్షం పడవచ్చు. పొలం పనులు ఉదయం పూర్తి చేసుకోండి.",
			"రాబోయే రెండు రోజులు ఆకాశం నిర్మలంగా ఉంటుంది. పిచికారీకి, కోతకు మంచి సమయం.",
			"ఈ వారం అక్కడక్కడా జల్లులు పడే అవకాశం ఉంది. పంటను కప్పి ఉంచండి.",
		},
		CategoryPrices: {
			"ఈ రోజు దగ్గరి మార్కెట్‌లో టమాటా కిలో సుమారు 25 రూపాయలుగా ఉంది, నిన్నటి కంటే కొంచెం పెరిగింది.",
			"వరి ధరలు ఈ వారం స్థిరంగా ఉన్నాయి. మరికొన్ని రోజులు ఆగితే మంచి ధర రావచ్చు.",
			"పత్తి ధర ఈ రోజు కొంచెం తగ్గింది. అమ్మే ముందు రేపు మార్కెట్ బోర్డు చూడండి.",
		},
		CategoryCrops: {
			"ఈ సీజన్‌లో ఉదయం పూటే నీరు పెట్టండి, లేత మొక్కలపై ఆకు మచ్చ తెగులును గమనించండి.",
			"ఇప్పుడు సమతుల్యంగా నత్రజని వేస్తే పిలకలు బాగా వస్తాయి. వచ్చే వారం ఎక్కువ నీరు పెట్టవద్దు.",
			"ఆకుల కింది భాగంలో పురుగు గుడ్లు ఉన్నాయో చూసి, వ్యాపించక ముందే వేప ద్రావణం పిచికారీ చేయండి.",
		},
		CategorySchemes: {
			"మీరు పీఎం-కిసాన్ పథకానికి అర్హులు కావచ్చు. దగ్గరి వ్యవసాయ కార్యాలయంలో నమోదు చేసుకోండి.",
			"ఈ నెల పంట బీమా నమోదు జరుగుతోంది. భూమి పత్రాలు, బ్యాంకు పాస్‌బుక్ సిద్ధంగా ఉంచుకోండి.",
			"డ్రిప్ పరికరాలపై ప్రస్తుతం రాయితీ ఉంది. మండల వ్యవసాయ కార్యాలయంలో అడగండి.",
		},
		CategoryGeneral: {
			"వాతావరణం, మార్కెట్ ధరలు, పంట సంరక్షణ, ప్రభుత్వ పథకాల గురించి సహాయం చేయగలను. ఏమి తెలుసుకోవాలి?",
			"వాతావరణం, మండి ధరలు, మీ పంటలు లేదా పథకాల గురించి అడగండి.",
			"సరిగా అర్థం కాలేదు. ధరలు, వాతావరణం లేదా పంట సలహా గురించి అడగండి.",
		},
	},
	"hi": {
		CategoryWeather: {
			"आज आंशिक बादल रहेंगे, शाम को हल्की बारिश हो सकती है। खेत का काम सुबह निपटा लें।",
			"अगले दो दिन आसमान साफ रहेगा, छिड़काव और कटाई के लिए अच्छा समय है।",
			"इस हफ्ते छिटपुट बौछारें संभव हैं। कटी फसल को ढककर रखें।",
		},
		CategoryPrices: {
			"आज नजदीकी मंडी में टमाटर करीब 25 रुपये किलो बिक रहा है, कल से थोड़ा ऊपर।",
			"धान के भाव इस हफ्ते स्थिर हैं। कुछ दिन रुकने पर बेहतर दाम मिल सकता है।",
			"कपास के दाम आज थोड़े गिरे हैं। बेचने से पहले कल मंडी बोर्ड देख लें।",
		},
		CategoryCrops: {
			"इस मौसम में सुबह-सुबह सिंचाई करें और नई पौध पर पत्ती धब्बा रोग पर नजर रखें।",
			"अभी संतुलित मात्रा में नाइट्रोजन देने से कल्ले अच्छे निकलेंगे। अगले हफ्ते ज्यादा पानी न दें।",
			"पत्तियों के नीचे कीट के अंडे जांचें और फैलने से पहले नीम का छिड़काव करें।",
		},
		CategorySchemes: {
			"आप पीएम-किसान योजना के पात्र हो सकते हैं। नजदीकी कृषि कार्यालय में पंजीकरण कराएं।",
			"इस महीने फसल बीमा पंजीकरण चल रहा है। जमीन के कागज और बैंक पासबुक तैयार रखें।",
			"ड्रिप सिंचाई उपकरण पर अभी सब्सिडी मिल रही है। ब्लॉक कृषि कार्यालय में पूछें।",
		},
		CategoryGeneral: {
			"मैं मौसम, मंडी भाव, फसल देखभाल और सरकारी योजनाओं में मदद कर सकता हूं। क्या जानना चाहेंगे?",
			"मौसम, मंडी के दाम, अपनी फसल या योजनाओं के बारे में पूछें।",
			"मैं ठीक से समझ नहीं पाया। दाम, मौसम या फसल सलाह के बारे में पूछें।",
		},
	},
}

var _ Engine = (*LocalEngine)(nil)
