package events

import "time"

type Kind string

const (
	KindTranscript Kind = "transcript"
	KindControl    Kind = "control"
	KindError      Kind = "error"
)

type ControlCode string

const (
	ControlListeningStarted ControlCode = "listening_started"
	ControlCaptureEnded     ControlCode = "capture_ended"
	ControlSpeakStarted     ControlCode = "speak_started"
	ControlSpeakEnded       ControlCode = "speak_ended"
	ControlCancelled        ControlCode = "cancelled"
)

// Meta keys shared across capability providers and controllers.
const (
	MetaSessionID   = "session_id"
	MetaUtteranceID = "utterance_id"
	MetaLanguage    = "language"
	MetaLocale      = "locale"
	MetaSource      = "source"
	MetaIsFinal     = "is_final"
	MetaReason      = "reason"
	MetaRawCode     = "raw_code"
)

// Event is the unit of communication between capability providers and
// the controllers that own them.
type Event interface {
	Kind() Kind
	At() time.Time
	Meta() map[string]string
}

type TranscriptEvent struct {
	at    time.Time
	text  string
	final bool
	meta  map[string]string
}

func NewTranscriptEvent(sessionID string, text string, final bool, meta map[string]string) TranscriptEvent {
	m := mergeMeta(sessionID, meta)
	if final {
		m[MetaIsFinal] = "true"
	} else {
		m[MetaIsFinal] = "false"
	}
	return TranscriptEvent{at: time.Now(), text: text, final: final, meta: m}
}

func (t TranscriptEvent) Kind() Kind              { return KindTranscript }
func (t TranscriptEvent) At() time.Time           { return t.at }
func (t TranscriptEvent) Meta() map[string]string { return cloneMeta(t.meta) }
func (t TranscriptEvent) Text() string            { return t.text }
func (t TranscriptEvent) Final() bool             { return t.final }

type ControlEvent struct {
	at   time.Time
	code ControlCode
	meta map[string]string
}

func NewControlEvent(sessionID string, code ControlCode, meta map[string]string) ControlEvent {
	return ControlEvent{at: time.Now(), code: code, meta: mergeMeta(sessionID, meta)}
}

func (c ControlEvent) Kind() Kind              { return KindControl }
func (c ControlEvent) At() time.Time           { return c.at }
func (c ControlEvent) Meta() map[string]string { return cloneMeta(c.meta) }
func (c ControlEvent) Code() ControlCode       { return c.code }

// ErrorEvent carries a raw capability error code. Controllers map raw
// codes onto the closed reason taxonomy; raw codes never reach users.
type ErrorEvent struct {
	at      time.Time
	rawCode string
	message string
	meta    map[string]string
}

func NewErrorEvent(sessionID string, rawCode, message string, meta map[string]string) ErrorEvent {
	m := mergeMeta(sessionID, meta)
	m[MetaRawCode] = rawCode
	return ErrorEvent{at: time.Now(), rawCode: rawCode, message: message, meta: m}
}

func (e ErrorEvent) Kind() Kind              { return KindError }
func (e ErrorEvent) At() time.Time           { return e.at }
func (e ErrorEvent) Meta() map[string]string { return cloneMeta(e.meta) }
func (e ErrorEvent) RawCode() string         { return e.rawCode }
func (e ErrorEvent) Message() string         { return e.message }

func mergeMeta(sessionID string, meta map[string]string) map[string]string {
	out := make(map[string]string, 2+len(meta))
	if sessionID != "" {
		out[MetaSessionID] = sessionID
	}
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
