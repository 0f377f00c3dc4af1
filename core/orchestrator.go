package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxturn/voxturn-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// exhaustedToolLoopResponse is spoken when a turn burns through its tool
// iteration budget without the model producing a final answer.
const exhaustedToolLoopResponse = "I wasn't able to complete that request, let's try something else."

// Orchestrator drives the listen, transcribe, infer, speak cycle over the
// configured adapters. One instance runs one session.
type Orchestrator struct {
	config Config

	transcriber Transcriber
	llm         LLM
	synthesizer SpeechSynthesizer
	audioInput  AudioInput
	audioOutput AudioOutput

	registry     *ToolRegistry
	pendingTools []llms.Tool

	history   *conversationHistory
	segmenter *segmenter

	stateMu sync.RWMutex
	state   TurnState

	snoozeMu    sync.Mutex
	snoozeUntil time.Time

	started    atomic.Bool
	runOptions RunOptions
}

func New(opts ...OrchestratorOption) (*Orchestrator, error) {
	o := &Orchestrator{
		config:   DefaultConfig(),
		registry: NewToolRegistry(),
		history:  newConversationHistory(),
		state:    TurnStateIdle,
	}

	for _, opt := range opts {
		opt(o)
	}

	if err := o.config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if o.transcriber == nil {
		return nil, fmt.Errorf("a transcriber is required")
	}
	if o.llm == nil {
		return nil, fmt.Errorf("an LLM is required")
	}
	if o.synthesizer == nil {
		return nil, fmt.Errorf("a speech synthesizer is required")
	}
	if o.audioInput == nil {
		return nil, fmt.Errorf("an audio input is required")
	}
	if o.audioOutput == nil {
		return nil, fmt.Errorf("an audio output is required")
	}

	if err := o.registry.Register(builtinTools(o)...); err != nil {
		return nil, fmt.Errorf("failed to register built-in tools: %w", err)
	}
	if err := o.registry.Register(o.pendingTools...); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	o.pendingTools = nil

	return o, nil
}

// RegisterTools adds capabilities the model may invoke. Must be called before
// Run; afterwards the registry is sealed.
func (o *Orchestrator) RegisterTools(tools ...llms.Tool) error {
	return o.registry.Register(tools...)
}

// State returns the current turn state.
func (o *Orchestrator) State() TurnState {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

// History returns a point-in-time copy of the conversation so far.
func (o *Orchestrator) History() []Utterance {
	return o.history.Snapshot()
}

// Run starts the session and blocks until ctx is cancelled or the audio
// device fails. A cancelled context is a clean shutdown and returns nil; a
// device failure returns a *DeviceError.
//
// Run may be called at most once per orchestrator.
func (o *Orchestrator) Run(ctx context.Context, opts ...RunOption) error {
	if !o.started.CompareAndSwap(false, true) {
		return fmt.Errorf("orchestrator is already running or finished")
	}

	o.runOptions = RunOptions{}
	for _, opt := range opts {
		opt(&o.runOptions)
	}

	o.registry.seal()
	o.segmenter = newSegmenter(o.config, o.audioInput.EncodingInfo())

	deviceErrs := make(chan error, 1)
	go func() {
		if err := o.audioInput.Stream(ctx, o.segmenter.ProcessFrame); err != nil {
			select {
			case deviceErrs <- err:
			default:
			}
		}
	}()
	defer func() {
		if err := o.audioInput.StopCapture(); err != nil {
			logger.Warn("Failed to stop audio capture", "error", err)
		}
	}()

	o.setState(TurnStateListening)
	defer o.setState(TurnStateIdle)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-deviceErrs:
			return &DeviceError{Err: err}
		case segment := <-o.segmenter.Segments():
			o.runTurn(ctx, segment)
		}
	}
}

func (o *Orchestrator) setState(state TurnState) {
	o.stateMu.Lock()
	o.state = state
	o.stateMu.Unlock()

	o.segmenter.SetAccepting(state == TurnStateListening)

	if o.runOptions.onStateChange != nil {
		o.runOptions.onStateChange(state)
	}
}

func (o *Orchestrator) notice(err error) {
	logger.Warn("Recoverable turn error", "error", err)
	if o.runOptions.onNotice != nil {
		o.runOptions.onNotice(err)
	}
}

// snooze silences the session for the given duration and returns when it
// ends. Segments transcribed while snoozed are discarded unless they contain
// the wake word.
func (o *Orchestrator) snooze(duration time.Duration) time.Time {
	until := time.Now().Add(duration)

	o.snoozeMu.Lock()
	o.snoozeUntil = until
	o.snoozeMu.Unlock()

	return until
}

func (o *Orchestrator) snoozed() bool {
	o.snoozeMu.Lock()
	defer o.snoozeMu.Unlock()
	return time.Now().Before(o.snoozeUntil)
}

func (o *Orchestrator) wake() {
	o.snoozeMu.Lock()
	o.snoozeUntil = time.Time{}
	o.snoozeMu.Unlock()
}

// callContext bounds a single adapter call when a call timeout is configured.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.CallTimeout > 0 {
		return context.WithTimeout(ctx, o.config.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// runTurn processes one completed speech segment through the full cycle.
// Every exit path returns the session to listening; only the audio device can
// end the session.
func (o *Orchestrator) runTurn(ctx context.Context, segment Segment) {
	ctx, span := tracer.Start(ctx, "process turn")
	defer span.End()
	span.SetAttributes(attribute.Float64("segment.duration_seconds", segment.Duration().Seconds()))

	defer o.setState(TurnStateListening)

	transcript, err := o.transcribe(ctx, segment)
	if err != nil {
		recordedErr := &TranscriptionError{Err: err}
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		o.notice(recordedErr)
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Debug("Discarding segment with empty transcript")
		return
	}

	if o.snoozed() {
		if o.config.WakeWord == "" || !strings.Contains(strings.ToLower(transcript), strings.ToLower(o.config.WakeWord)) {
			logger.Debug("Discarding transcript while snoozed", "transcript", transcript)
			return
		}
		o.wake()
	}

	userUtterance := o.history.Append(SpeakerUser, transcript)
	if o.runOptions.onUserUtterance != nil {
		o.runOptions.onUserUtterance(userUtterance)
	}

	response, err := o.infer(ctx)
	if err != nil {
		recordedErr := &InferenceError{Err: err}
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		o.notice(recordedErr)
		return
	}

	response = sanitizeSpokenText(response)
	if response == "" {
		logger.Debug("Model produced nothing speakable, returning to listening")
		return
	}

	agentUtterance := o.history.Append(SpeakerAgent, response)
	if o.runOptions.onAgentUtterance != nil {
		o.runOptions.onAgentUtterance(agentUtterance)
	}

	if err := o.speak(ctx, response); err != nil {
		recordedErr := &SynthesisError{Err: err}
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		o.notice(recordedErr)
	}
}

func (o *Orchestrator) transcribe(ctx context.Context, segment Segment) (string, error) {
	o.setState(TurnStateTranscribing)

	ctx, cancel := o.callContext(ctx)
	defer cancel()

	return o.transcriber.TranscribeSegment(ctx, segment.PCM, segment.Encoding)
}

// infer runs the inference/tool-execution loop for the current turn. Tool
// exchanges live only in this turn's request context; the durable history
// records utterances alone.
func (o *Orchestrator) infer(ctx context.Context) (string, error) {
	o.setState(TurnStateInferring)

	var tools []llms.Tool
	if o.config.UseTools {
		tools = o.registry.Tools()
	}

	conversation := o.history.Messages()

	for iteration := 0; iteration < o.config.MaxToolIterations; iteration++ {
		response, err := o.chat(ctx, conversation, tools)
		if err != nil {
			return "", err
		}

		if len(response.ToolCalls) == 0 {
			return response.Content, nil
		}

		o.setState(TurnStateExecutingTools)
		conversation = append(conversation, llms.Message{
			Role:      llms.MessageRoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, toolCall := range response.ToolCalls {
			request := ToolCallRequest{
				ID:        toolCall.ID,
				Name:      toolCall.Name,
				Arguments: toolCall.Arguments,
			}
			result := o.registry.Execute(ctx, request)
			if o.runOptions.onToolCall != nil {
				o.runOptions.onToolCall(request, result)
			}

			content := result.Payload
			if !result.Success {
				content = result.Error
			}
			conversation = append(conversation, llms.Message{
				Role:       llms.MessageRoleTool,
				Content:    content,
				ToolCallID: result.ID,
			})
		}

		o.setState(TurnStateInferring)
	}

	logger.Warn("Tool iteration budget exhausted", "iterations", o.config.MaxToolIterations)
	return exhaustedToolLoopResponse, nil
}

func (o *Orchestrator) chat(ctx context.Context, conversation []llms.Message, tools []llms.Tool) (*llms.Response, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()

	return o.llm.Chat(ctx, o.config.Instructions, conversation, tools)
}

// speak synthesizes the reply and waits for playback to finish. The reply is
// already in history by the time this runs, so a synthesis failure loses
// audio, not conversation.
func (o *Orchestrator) speak(ctx context.Context, text string) error {
	o.setState(TurnStateSpeaking)

	synthesisCtx, cancel := o.callContext(ctx)
	defer cancel()

	if err := o.synthesizer.Synthesize(synthesisCtx, text); err != nil {
		return fmt.Errorf("failed to synthesize speech: %w", err)
	}

	if err := o.audioOutput.Drain(ctx); err != nil {
		return fmt.Errorf("failed to drain playback: %w", err)
	}

	return nil
}
