package settings

import "sync"

// ResponseMode selects how assistant responses are produced.
type ResponseMode string

const (
	ResponseModeLocal  ResponseMode = "local"
	ResponseModeRemote ResponseMode = "remote"
)

// Voice holds the mutable per-session voice preferences. One instance
// is shared by reference between the capture and playback controllers;
// changes apply to the next capture/playback cycle, never to one in
// flight.
type Voice struct {
	mu                sync.RWMutex
	language          string
	continuousCapture bool
	responseMode      ResponseMode
}

func NewVoice(language string) *Voice {
	return &Voice{
		language:     language,
		responseMode: ResponseModeLocal,
	}
}

func (v *Voice) Language() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.language
}

func (v *Voice) SetLanguage(code string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.language = code
}

func (v *Voice) ContinuousCapture() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.continuousCapture
}

func (v *Voice) SetContinuousCapture(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.continuousCapture = enabled
}

func (v *Voice) ResponseMode() ResponseMode {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.responseMode
}

func (v *Voice) SetResponseMode(mode ResponseMode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.responseMode = mode
}
