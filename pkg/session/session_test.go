package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agrivaani/agrivaani/pkg/adapters/recognizer"
	"github.com/agrivaani/agrivaani/pkg/adapters/synthesizer"
	"github.com/agrivaani/agrivaani/pkg/errorsx"
	"github.com/agrivaani/agrivaani/pkg/events"
	"github.com/agrivaani/agrivaani/pkg/providers/sim"
)

// fakeEngine answers with a fixed response (or error). A non-nil gate
// holds Generate until the test releases it, pinning the session in
// PROCESSING.
type fakeEngine struct {
	mu       sync.Mutex
	langs    []string
	texts    []string
	response string
	err      error
	gate     chan struct{}
}

func (e *fakeEngine) Name() string { return "fake_engine" }

func (e *fakeEngine) Generate(ctx context.Context, text, language string) (string, error) {
	e.mu.Lock()
	e.langs = append(e.langs, language)
	e.texts = append(e.texts, text)
	gate := e.gate
	response, err := e.response, e.err
	e.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return response, nil
}

func (e *fakeEngine) lastLang(t *testing.T) string {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.langs) == 0 {
		t.Fatalf("engine was never called")
	}
	return e.langs[len(e.langs)-1]
}

func (e *fakeEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.langs)
}

// speechSynth records synthesis requests and lets tests complete or
// fail them by hand, including with stale utterance ids.
type speechSynth struct {
	mu   sync.Mutex
	out  chan events.Event
	reqs []synthesizer.Request
}

func newSpeechSynth() *speechSynth {
	return &speechSynth{out: make(chan events.Event, 16)}
}

func (f *speechSynth) Name() string { return "speech_synth" }

func (f *speechSynth) Start(ctx context.Context) error { return nil }

func (f *speechSynth) Close() error { close(f.out); return nil }

func (f *speechSynth) Cancel() {}

func (f *speechSynth) Events() <-chan events.Event { return f.out }

func (f *speechSynth) Speak(req synthesizer.Request) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	f.out <- events.NewControlEvent("sess-1", events.ControlSpeakStarted, map[string]string{
		events.MetaUtteranceID: req.UtteranceID,
	})
	return nil
}

func (f *speechSynth) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

// waitLastReq polls for the most recent synthesis request; the SPEAKING
// transition happens just before the request reaches the capability.
func (f *speechSynth) waitLastReq(t *testing.T) synthesizer.Request {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.reqs) > 0 {
			req := f.reqs[len(f.reqs)-1]
			f.mu.Unlock()
			return req
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for a synthesis request")
	return synthesizer.Request{}
}

func (f *speechSynth) finish(id string) {
	f.out <- events.NewControlEvent("sess-1", events.ControlSpeakEnded, map[string]string{
		events.MetaUtteranceID: id,
	})
}

func (f *speechSynth) fail(id, rawCode string) {
	f.out <- events.NewErrorEvent("sess-1", rawCode, "synthesis failure", map[string]string{
		events.MetaUtteranceID: id,
	})
}

func newTestSession(t *testing.T, engine *fakeEngine) (*Session, *sim.Recognizer, *speechSynth) {
	t.Helper()
	mic := sim.NewRecognizer()
	synth := newSpeechSynth()
	sess, err := New(context.Background(), Config{
		SessionID:   "sess-1",
		Recognizer:  func(string) (recognizer.Recognizer, error) { return mic, nil },
		Synthesizer: func(string) (synthesizer.Synthesizer, error) { return synth, nil },
		Responder:   engine,
		Language:    "en",
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess, mic, synth
}

func waitState(t *testing.T, sess *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, stuck in %s", want, sess.State())
}

func TestRoundTrip(t *testing.T) {
	engine := &fakeEngine{response: "partly cloudy today"}
	sess, mic, synth := newTestSession(t, engine)
	rec := &stateRecorder{}
	sess.AddListener(rec)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Hear("what is the")
	mic.Finish("what is the weather")
	waitState(t, sess, StateSpeaking)

	req := synth.waitLastReq(t)
	if req.Text != "partly cloudy today" {
		t.Fatalf("expected response to be spoken, got %q", req.Text)
	}
	synth.finish(req.UtteranceID)
	waitState(t, sess, StateIdle)

	msgs := sess.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Text != "what is the weather" {
		t.Fatalf("unexpected user message %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Text != "partly cloudy today" {
		t.Fatalf("unexpected assistant message %+v", msgs[1])
	}
	if msgs[0].Language != "en" || msgs[1].Language != "en" {
		t.Fatalf("expected both messages in en")
	}
	if msgs[0].ID >= msgs[1].ID {
		t.Fatalf("message ids must sort in creation order")
	}
	if got := sess.CurrentTranscript(); got != "what is the weather" {
		t.Fatalf("unexpected current transcript %q", got)
	}
	for _, leg := range []struct{ from, to State }{
		{StateIdle, StateListening},
		{StateListening, StateProcessing},
		{StateProcessing, StateSpeaking},
		{StateSpeaking, StateIdle},
	} {
		if !rec.saw(leg.from, leg.to) {
			t.Fatalf("missing transition %s -> %s", leg.from, leg.to)
		}
	}
	if sess.LastError() != nil {
		t.Fatalf("round trip must not surface an error")
	}
}

func TestCaptureFailureSurfacesUserMessage(t *testing.T) {
	engine := &fakeEngine{response: "unused"}
	sess, mic, _ := newTestSession(t, engine)
	rec := &stateRecorder{}
	sess.AddListener(rec)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Fail("no-speech")
	waitState(t, sess, StateIdle)

	lastErr := sess.LastError()
	if lastErr == nil {
		t.Fatalf("expected a surfaced error")
	}
	if lastErr.Reason != errorsx.ReasonCaptureNoSpeech {
		t.Fatalf("expected capture_no_speech, got %s", lastErr.Reason)
	}
	if lastErr.Message != errorsx.UserMessage(errorsx.ReasonCaptureNoSpeech) {
		t.Fatalf("error message must be the stable user text, got %q", lastErr.Message)
	}
	if !rec.saw(StateListening, StateError) || !rec.saw(StateError, StateIdle) {
		t.Fatalf("error must pass through the transient ERROR state")
	}
	if len(sess.Transcript()) != 0 {
		t.Fatalf("failed capture must append nothing")
	}
}

func TestToggleOffWhileListening(t *testing.T) {
	engine := &fakeEngine{response: "unused"}
	sess, _, _ := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	sess.ToggleCapture()
	waitState(t, sess, StateIdle)

	if engine.calls() != 0 {
		t.Fatalf("toggling off must not trigger a response")
	}
	if len(sess.Transcript()) != 0 {
		t.Fatalf("toggling off must append nothing")
	}

	// A final transcript that races past the toggle is stale.
	sess.post(func() { sess.handleFinalTranscript("late words") })
	time.Sleep(50 * time.Millisecond)
	if len(sess.Transcript()) != 0 {
		t.Fatalf("a late final transcript must be dropped")
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", sess.State())
	}
}

func TestClearWhileSpeaking(t *testing.T) {
	engine := &fakeEngine{response: "long answer"}
	sess, mic, synth := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Finish("price of paddy")
	waitState(t, sess, StateSpeaking)
	req := synth.waitLastReq(t)

	sess.Clear()
	waitState(t, sess, StateIdle)
	if len(sess.Transcript()) != 0 {
		t.Fatalf("clear must wipe the transcript")
	}

	// The capability may still report the cancelled utterance done.
	synth.finish(req.UtteranceID)
	time.Sleep(50 * time.Millisecond)
	if sess.State() != StateIdle {
		t.Fatalf("late completion must not move the session, got %s", sess.State())
	}
	if len(sess.Transcript()) != 0 {
		t.Fatalf("late completion must append nothing")
	}
}

func TestClearDuringProcessingDropsResponse(t *testing.T) {
	gate := make(chan struct{})
	engine := &fakeEngine{response: "stale answer", gate: gate}
	sess, mic, synth := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Finish("weather tomorrow")
	waitState(t, sess, StateProcessing)

	sess.Clear()
	waitState(t, sess, StateIdle)
	close(gate)
	time.Sleep(100 * time.Millisecond)

	if len(sess.Transcript()) != 0 {
		t.Fatalf("a response from before the clear must be dropped")
	}
	if synth.requests() != 0 {
		t.Fatalf("a dropped response must not be spoken")
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", sess.State())
	}
}

func TestLanguageFrozenForInFlightTurn(t *testing.T) {
	engine := &fakeEngine{response: "answer"}
	sess, mic, synth := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	sess.SetLanguage("te")
	mic.Finish("market price")
	waitState(t, sess, StateSpeaking)
	if got := engine.lastLang(t); got != "en" {
		t.Fatalf("in-flight turn must keep its language, got %s", got)
	}
	req := synth.waitLastReq(t)
	synth.finish(req.UtteranceID)
	waitState(t, sess, StateIdle)

	msgs := sess.Transcript()
	if msgs[0].Language != "en" || msgs[1].Language != "en" {
		t.Fatalf("messages of the first turn must stay en")
	}

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Finish("ధర ఎంత")
	waitState(t, sess, StateSpeaking)
	if got := engine.lastLang(t); got != "te" {
		t.Fatalf("next turn must use the new language, got %s", got)
	}
	req = synth.waitLastReq(t)
	if req.Locale != "te-IN" {
		t.Fatalf("expected te-IN synthesis locale, got %s", req.Locale)
	}
	synth.finish(req.UtteranceID)
	waitState(t, sess, StateIdle)
	msgs = sess.Transcript()
	if msgs[2].Language != "te" || msgs[3].Language != "te" {
		t.Fatalf("messages of the second turn must be te")
	}
}

func TestToggleRefusedWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	engine := &fakeEngine{response: "answer", gate: gate}
	sess, mic, synth := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Finish("weather")
	waitState(t, sess, StateProcessing)

	sess.ToggleCapture()
	time.Sleep(50 * time.Millisecond)
	if sess.State() != StateProcessing {
		t.Fatalf("toggle while busy must be refused, got %s", sess.State())
	}

	close(gate)
	waitState(t, sess, StateSpeaking)
	req := synth.waitLastReq(t)
	synth.finish(req.UtteranceID)
	waitState(t, sess, StateIdle)
	if len(sess.Transcript()) != 2 {
		t.Fatalf("the refused toggle must not disturb the turn")
	}
}

func TestResponderFailureKeepsUserMessage(t *testing.T) {
	engine := &fakeEngine{err: errors.New("inference backend down")}
	sess, mic, _ := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Finish("crop advice")
	waitState(t, sess, StateIdle)

	lastErr := sess.LastError()
	if lastErr == nil || lastErr.Reason != errorsx.ReasonResponseFailed {
		t.Fatalf("expected response_generation_failed, got %+v", lastErr)
	}
	msgs := sess.Transcript()
	if len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Fatalf("the user message must survive a failed response, got %d messages", len(msgs))
	}
}

func TestPlaybackFailureKeepsAssistantMessage(t *testing.T) {
	engine := &fakeEngine{response: "answer"}
	sess, mic, synth := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Finish("weather")
	waitState(t, sess, StateSpeaking)
	req := synth.waitLastReq(t)

	synth.fail(req.UtteranceID, "synthesis-failed")
	waitState(t, sess, StateIdle)

	lastErr := sess.LastError()
	if lastErr == nil || lastErr.Reason != errorsx.ReasonPlaybackError {
		t.Fatalf("expected playback_error, got %+v", lastErr)
	}
	if len(sess.Transcript()) != 2 {
		t.Fatalf("the assistant message must survive a playback failure")
	}
}

func TestReplayLast(t *testing.T) {
	engine := &fakeEngine{response: "stored answer"}
	sess, mic, synth := newTestSession(t, engine)

	sess.ToggleCapture()
	waitState(t, sess, StateListening)
	mic.Finish("weather")
	waitState(t, sess, StateSpeaking)
	req := synth.waitLastReq(t)
	synth.finish(req.UtteranceID)
	waitState(t, sess, StateIdle)

	sess.ReplayLast()
	waitState(t, sess, StateSpeaking)
	req = synth.waitLastReq(t)
	if req.Text != "stored answer" {
		t.Fatalf("replay must speak the last assistant message, got %q", req.Text)
	}
	synth.finish(req.UtteranceID)
	waitState(t, sess, StateIdle)

	if len(sess.Transcript()) != 2 {
		t.Fatalf("replay must not append messages, got %d", len(sess.Transcript()))
	}
	if engine.calls() != 1 {
		t.Fatalf("replay must not call the responder")
	}
}

func TestReplayWithoutAssistantMessageIsNoOp(t *testing.T) {
	engine := &fakeEngine{response: "unused"}
	sess, _, synth := newTestSession(t, engine)

	sess.ReplayLast()
	time.Sleep(50 * time.Millisecond)
	if sess.State() != StateIdle {
		t.Fatalf("replay with an empty transcript must stay IDLE, got %s", sess.State())
	}
	if synth.requests() != 0 {
		t.Fatalf("nothing must be spoken")
	}
}

func TestUnsupportedConfigLanguageFallsBack(t *testing.T) {
	engine := &fakeEngine{response: "unused"}
	mic := sim.NewRecognizer()
	synth := newSpeechSynth()
	sess, err := New(context.Background(), Config{
		Recognizer:  func(string) (recognizer.Recognizer, error) { return mic, nil },
		Synthesizer: func(string) (synthesizer.Synthesizer, error) { return synth, nil },
		Responder:   engine,
		Language:    "xx",
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	if got := sess.Settings().Language(); got != "en" {
		t.Fatalf("expected fallback to en, got %s", got)
	}
}

var _ StateListener = (*stateRecorder)(nil)
