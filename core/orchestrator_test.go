package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/voxturn/voxturn-core/core/audio"
	"github.com/voxturn/voxturn-core/core/llms"
)

type fakeTranscriber struct {
	transcript string
	err        error
	calls      int
}

func (f *fakeTranscriber) TranscribeSegment(ctx context.Context, pcm []byte, info audio.EncodingInfo) (string, error) {
	f.calls++
	return f.transcript, f.err
}

// fakeLLM replays scripted responses; the last one repeats if the turn asks
// for more.
type fakeLLM struct {
	responses []*llms.Response
	err       error
	requests  [][]llms.Message
}

func (f *fakeLLM) Chat(ctx context.Context, instructions string, conversation []llms.Message, tools []llms.Tool) (*llms.Response, error) {
	f.requests = append(f.requests, conversation)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llms.Response{Content: "ok"}, nil
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return response, nil
}

type fakeSynthesizer struct {
	spoken []string
	err    error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.spoken = append(f.spoken, text)
	return nil
}

type fakeAudioInput struct {
	streamErr error
}

func (f *fakeAudioInput) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }
func (f *fakeAudioInput) StopCapture() error               { return nil }

func (f *fakeAudioInput) Stream(ctx context.Context, onFrame func(frame []byte)) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	<-ctx.Done()
	return nil
}

type fakeAudioOutput struct {
	drains int
}

func (f *fakeAudioOutput) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }
func (f *fakeAudioOutput) Play(pcm []byte) error            { return nil }

func (f *fakeAudioOutput) Drain(ctx context.Context) error {
	f.drains++
	return nil
}

func newTestOrchestrator(t *testing.T, llm LLM, transcriber Transcriber, synthesizer SpeechSynthesizer, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()

	base := []OrchestratorOption{
		WithLLM(llm),
		WithTranscriber(transcriber),
		WithSynthesizer(synthesizer),
		WithAudioInput(&fakeAudioInput{}),
		WithAudioOutput(&fakeAudioOutput{}),
	}
	o, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	// Tests drive runTurn directly instead of going through Run.
	o.segmenter = newSegmenter(o.config, audio.GetDefaultEncodingInfo())
	return o
}

func testSegment() Segment {
	encoding := audio.GetDefaultEncodingInfo()
	return Segment{PCM: make([]byte, encoding.Bytes(time.Second)), Encoding: encoding}
}

func TestTurnAppendsExactlyOneExchange(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.Response{{Content: "It is 4."}}}
	synthesizer := &fakeSynthesizer{}
	o := newTestOrchestrator(t, llm, &fakeTranscriber{transcript: "what is 2 plus 2"}, synthesizer)

	o.runTurn(context.Background(), testSegment())

	history := o.History()
	if len(history) != 2 {
		t.Fatalf("expected exactly one user and one agent utterance, got %d utterances", len(history))
	}
	if history[0].Speaker != SpeakerUser || history[0].Text != "what is 2 plus 2" {
		t.Fatalf("unexpected user utterance: %+v", history[0])
	}
	if history[1].Speaker != SpeakerAgent || history[1].Text != "It is 4." {
		t.Fatalf("unexpected agent utterance: %+v", history[1])
	}

	if len(synthesizer.spoken) != 1 || synthesizer.spoken[0] != "It is 4." {
		t.Fatalf("expected the reply to be spoken once, got %v", synthesizer.spoken)
	}

	if len(llm.requests) != 1 {
		t.Fatalf("expected a single model request, got %d", len(llm.requests))
	}
	request := llm.requests[0]
	if request[len(request)-1].Content != "what is 2 plus 2" {
		t.Fatalf("expected the transcript in the model request, got %+v", request)
	}

	if o.State() != TurnStateListening {
		t.Fatalf("expected to end the turn listening, got %q", o.State())
	}
}

func TestTurnStateSequence(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeLLM{responses: []*llms.Response{{Content: "hello"}}},
		&fakeTranscriber{transcript: "hi"},
		&fakeSynthesizer{})

	var states []TurnState
	o.runOptions.onStateChange = func(state TurnState) { states = append(states, state) }

	o.runTurn(context.Background(), testSegment())

	want := []TurnState{TurnStateTranscribing, TurnStateInferring, TurnStateSpeaking, TurnStateListening}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, states)
		}
	}
}

func TestTurnResolvesToolCalls(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.Response{
		{ToolCalls: []llms.ToolCall{{ID: "call-1", Name: "adder", Arguments: `{"a": 2, "b": 2}`}}},
		{Content: "The answer is 4."},
	}}
	o := newTestOrchestrator(t, llm, &fakeTranscriber{transcript: "add two and two"}, &fakeSynthesizer{},
		WithTools(adderTool(t)))

	var results []ToolCallResult
	o.runOptions.onToolCall = func(request ToolCallRequest, result ToolCallResult) {
		results = append(results, result)
	}

	o.runTurn(context.Background(), testSegment())

	if len(results) != 1 {
		t.Fatalf("expected one tool execution, got %d", len(results))
	}
	if !results[0].Success || results[0].Payload != "4" {
		t.Fatalf("expected a successful tool result, got %+v", results[0])
	}

	if len(llm.requests) != 2 {
		t.Fatalf("expected two model requests, got %d", len(llm.requests))
	}
	followup := llm.requests[1]
	last := followup[len(followup)-1]
	if last.Role != llms.MessageRoleTool || last.Content != "4" || last.ToolCallID != "call-1" {
		t.Fatalf("expected the tool result in the follow-up request, got %+v", last)
	}

	history := o.History()
	if len(history) != 2 {
		t.Fatalf("expected tool exchanges to stay out of history, got %d utterances", len(history))
	}
	if history[1].Text != "The answer is 4." {
		t.Fatalf("unexpected agent utterance: %q", history[1].Text)
	}
}

func TestTurnReportsToolFailuresToModel(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.Response{
		{ToolCalls: []llms.ToolCall{{ID: "call-1", Name: "no_such_tool", Arguments: "{}"}}},
		{Content: "I can't do that."},
	}}
	o := newTestOrchestrator(t, llm, &fakeTranscriber{transcript: "do the thing"}, &fakeSynthesizer{})

	var results []ToolCallResult
	o.runOptions.onToolCall = func(request ToolCallRequest, result ToolCallResult) {
		results = append(results, result)
	}

	o.runTurn(context.Background(), testSegment())

	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected one failed tool result, got %+v", results)
	}

	followup := llm.requests[1]
	last := followup[len(followup)-1]
	if last.Role != llms.MessageRoleTool || !strings.Contains(last.Content, "tool not found") {
		t.Fatalf("expected the failure diagnostic in the follow-up request, got %+v", last)
	}

	history := o.History()
	if len(history) != 2 || history[1].Text != "I can't do that." {
		t.Fatalf("expected the turn to complete despite the failed tool, got %v", history)
	}
}

func TestTurnStopsAtToolIterationBudget(t *testing.T) {
	config := DefaultConfig()
	config.MaxToolIterations = 2

	llm := &fakeLLM{responses: []*llms.Response{
		{ToolCalls: []llms.ToolCall{{ID: "call-1", Name: "adder", Arguments: `{"a": 2, "b": 2}`}}},
	}}
	o := newTestOrchestrator(t, llm, &fakeTranscriber{transcript: "keep adding"}, &fakeSynthesizer{},
		WithConfig(config), WithTools(adderTool(t)))

	o.runTurn(context.Background(), testSegment())

	if len(llm.requests) != 2 {
		t.Fatalf("expected the loop to stop after %d requests, got %d", 2, len(llm.requests))
	}

	history := o.History()
	if len(history) != 2 {
		t.Fatalf("expected the turn to end with a spoken response, got %d utterances", len(history))
	}
	if history[1].Text != exhaustedToolLoopResponse {
		t.Fatalf("expected the exhausted-loop response, got %q", history[1].Text)
	}
}

func TestTurnDiscardsFailedTranscription(t *testing.T) {
	llm := &fakeLLM{}
	o := newTestOrchestrator(t, llm, &fakeTranscriber{err: fmt.Errorf("connection reset")}, &fakeSynthesizer{})

	var notices []error
	o.runOptions.onNotice = func(err error) { notices = append(notices, err) }

	o.runTurn(context.Background(), testSegment())

	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}
	var transcriptionErr *TranscriptionError
	if !errors.As(notices[0], &transcriptionErr) {
		t.Fatalf("expected a transcription error, got %T", notices[0])
	}
	if len(o.History()) != 0 {
		t.Fatal("expected a failed transcription to leave history untouched")
	}
	if len(llm.requests) != 0 {
		t.Fatal("expected no model request after a failed transcription")
	}
	if o.State() != TurnStateListening {
		t.Fatalf("expected to return to listening, got %q", o.State())
	}
}

func TestTurnDiscardsEmptyTranscript(t *testing.T) {
	llm := &fakeLLM{}
	o := newTestOrchestrator(t, llm, &fakeTranscriber{transcript: "   "}, &fakeSynthesizer{})

	o.runTurn(context.Background(), testSegment())

	if len(o.History()) != 0 || len(llm.requests) != 0 {
		t.Fatal("expected an empty transcript to be discarded before inference")
	}
}

func TestTurnKeepsUserUtteranceOnInferenceFailure(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeLLM{err: fmt.Errorf("model unavailable")},
		&fakeTranscriber{transcript: "hello"},
		&fakeSynthesizer{})

	var notices []error
	o.runOptions.onNotice = func(err error) { notices = append(notices, err) }

	o.runTurn(context.Background(), testSegment())

	var inferenceErr *InferenceError
	if len(notices) != 1 || !errors.As(notices[0], &inferenceErr) {
		t.Fatalf("expected an inference error notice, got %v", notices)
	}

	history := o.History()
	if len(history) != 1 || history[0].Speaker != SpeakerUser {
		t.Fatalf("expected the user utterance to survive the failure, got %v", history)
	}
}

func TestTurnKeepsAgentUtteranceOnSynthesisFailure(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeLLM{responses: []*llms.Response{{Content: "hello back"}}},
		&fakeTranscriber{transcript: "hello"},
		&fakeSynthesizer{err: fmt.Errorf("socket closed")})

	var notices []error
	o.runOptions.onNotice = func(err error) { notices = append(notices, err) }

	o.runTurn(context.Background(), testSegment())

	var synthesisErr *SynthesisError
	if len(notices) != 1 || !errors.As(notices[0], &synthesisErr) {
		t.Fatalf("expected a synthesis error notice, got %v", notices)
	}

	history := o.History()
	if len(history) != 2 || history[1].Text != "hello back" {
		t.Fatalf("expected the reply to stay in history, got %v", history)
	}
}

func TestSnoozeDiscardsUntilWakeWord(t *testing.T) {
	llm := &fakeLLM{responses: []*llms.Response{{Content: "I'm back."}}}
	transcriber := &fakeTranscriber{transcript: "are you there"}
	o := newTestOrchestrator(t, llm, transcriber, &fakeSynthesizer{})

	o.snooze(time.Minute)

	o.runTurn(context.Background(), testSegment())
	if len(o.History()) != 0 {
		t.Fatal("expected transcripts without the wake word to be discarded while snoozed")
	}

	transcriber.transcript = "hey cat, are you there"
	o.runTurn(context.Background(), testSegment())

	history := o.History()
	if len(history) != 2 {
		t.Fatalf("expected the wake word to break the snooze, got %d utterances", len(history))
	}
	if o.snoozed() {
		t.Fatal("expected the snooze to be cleared after waking")
	}
}

// stalledLLM never answers; it only returns once its call context expires.
type stalledLLM struct{}

func (s *stalledLLM) Chat(ctx context.Context, instructions string, conversation []llms.Message, tools []llms.Tool) (*llms.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCallTimeoutAbortsStalledInference(t *testing.T) {
	config := DefaultConfig()
	config.CallTimeout = 50 * time.Millisecond

	o := newTestOrchestrator(t, &stalledLLM{}, &fakeTranscriber{transcript: "hello"}, &fakeSynthesizer{},
		WithConfig(config))

	var notices []error
	o.runOptions.onNotice = func(err error) { notices = append(notices, err) }

	o.runTurn(context.Background(), testSegment())

	var inferenceErr *InferenceError
	if len(notices) != 1 || !errors.As(notices[0], &inferenceErr) {
		t.Fatalf("expected a stalled model call to surface as an inference error, got %v", notices)
	}
	if !errors.Is(notices[0], context.DeadlineExceeded) {
		t.Fatalf("expected the notice to carry the deadline error, got %v", notices[0])
	}

	history := o.History()
	if len(history) != 1 || history[0].Speaker != SpeakerUser {
		t.Fatalf("expected only the user utterance to survive, got %v", history)
	}
	if o.State() != TurnStateListening {
		t.Fatalf("expected to return to listening after the timeout, got %q", o.State())
	}
}

func TestTurnSkipsToolsWhenDisabled(t *testing.T) {
	config := DefaultConfig()
	config.UseTools = false

	llm := &fakeLLM{responses: []*llms.Response{{Content: "sure"}}}
	o := newTestOrchestrator(t, llm, &fakeTranscriber{transcript: "hello"}, &fakeSynthesizer{},
		WithConfig(config))

	o.runTurn(context.Background(), testSegment())

	if len(llm.requests) != 1 {
		t.Fatalf("expected one model request, got %d", len(llm.requests))
	}
}

func TestRunReturnsDeviceError(t *testing.T) {
	o, err := New(
		WithLLM(&fakeLLM{}),
		WithTranscriber(&fakeTranscriber{}),
		WithSynthesizer(&fakeSynthesizer{}),
		WithAudioInput(&fakeAudioInput{streamErr: fmt.Errorf("device unplugged")}),
		WithAudioOutput(&fakeAudioOutput{}),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	err = o.Run(context.Background())
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) {
		t.Fatalf("expected a device error, got %v", err)
	}

	if err := o.Run(context.Background()); err == nil {
		t.Fatal("expected a second Run to be refused")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	o, err := New(
		WithLLM(&fakeLLM{}),
		WithTranscriber(&fakeTranscriber{}),
		WithSynthesizer(&fakeSynthesizer{}),
		WithAudioInput(&fakeAudioInput{}),
		WithAudioOutput(&fakeAudioOutput{}),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after cancellation")
	}
}

func TestNewRequiresAdapters(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected construction without adapters to fail")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.SilenceThreshold = 2

	_, err := New(
		WithConfig(config),
		WithLLM(&fakeLLM{}),
		WithTranscriber(&fakeTranscriber{}),
		WithSynthesizer(&fakeSynthesizer{}),
		WithAudioInput(&fakeAudioInput{}),
		WithAudioOutput(&fakeAudioOutput{}),
	)
	if err == nil {
		t.Fatal("expected an invalid config to be rejected")
	}
}
