package locale

// Prosody carries synthesizer tuning for one language.
type Prosody struct {
	Rate  float64
	Pitch float64
}

// Locale is the concrete recognizer/synthesizer configuration resolved
// from a logical language code.
type Locale struct {
	Language       string
	RecognizerTag  string
	SynthesizerTag string
	Prosody        Prosody
}

const DefaultLanguage = "en"

// Non-English speech is rendered slightly slower for intelligibility.
var locales = map[string]Locale{
	"en": {
		Language:       "en",
		RecognizerTag:  "en-IN",
		SynthesizerTag: "en-IN",
		Prosody:        Prosody{Rate: 1.0, Pitch: 1.0},
	},
	"te": {
		Language:       "te",
		RecognizerTag:  "te-IN",
		SynthesizerTag: "te-IN",
		Prosody:        Prosody{Rate: 0.9, Pitch: 1.0},
	},
	"hi": {
		Language:       "hi",
		RecognizerTag:  "hi-IN",
		SynthesizerTag: "hi-IN",
		Prosody:        Prosody{Rate: 0.9, Pitch: 1.0},
	},
}

// Resolve maps a logical language code to its locale configuration.
// Unrecognized codes fall back to the default locale; voice UX must not
// break on a localization gap.
func Resolve(code string) Locale {
	if loc, ok := locales[code]; ok {
		return loc
	}
	return locales[DefaultLanguage]
}

// Supported reports whether a logical language code has a locale entry.
func Supported(code string) bool {
	_, ok := locales[code]
	return ok
}

// Languages returns the supported logical language codes.
func Languages() []string {
	out := make([]string, 0, len(locales))
	for code := range locales {
		out = append(out, code)
	}
	return out
}
