package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonCaptureUnsupported ReasonCode = "capture_unsupported"
	ReasonCapturePermission  ReasonCode = "capture_permission_denied"
	ReasonCaptureNoSpeech    ReasonCode = "capture_no_speech"
	ReasonCaptureNetwork     ReasonCode = "capture_network_unavailable"
	ReasonCaptureDevice      ReasonCode = "capture_device_failure"
	ReasonCaptureAborted     ReasonCode = "capture_aborted"

	ReasonResponseFailed ReasonCode = "response_generation_failed"

	ReasonPlaybackUnavailable ReasonCode = "playback_unavailable"
	ReasonPlaybackError       ReasonCode = "playback_error"
)

// userMessages holds the stable, user-presentable text for each reason.
// Raw capability error codes are never surfaced directly.
var userMessages = map[ReasonCode]string{
	ReasonCaptureUnsupported:  "Voice input is not supported on this device.",
	ReasonCapturePermission:   "Microphone access was denied. Please allow microphone use and try again.",
	ReasonCaptureNoSpeech:     "No speech was detected. Please try again.",
	ReasonCaptureNetwork:      "Voice recognition needs a network connection. Please check yours and retry.",
	ReasonCaptureDevice:       "The microphone could not be used. Please check your audio device.",
	ReasonCaptureAborted:      "Voice input was cancelled.",
	ReasonResponseFailed:      "Could not prepare a response. Please try again.",
	ReasonPlaybackUnavailable: "Voice playback is not available on this device.",
	ReasonPlaybackError:       "The response could not be spoken aloud.",
	ReasonUnknown:             "Something went wrong with voice input. Please try again.",
}

// UserMessage returns the stable human-readable message for a reason.
func UserMessage(reason ReasonCode) string {
	if msg, ok := userMessages[reason]; ok {
		return msg
	}
	return userMessages[ReasonUnknown]
}
