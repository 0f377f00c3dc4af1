package orchestration

import (
	"context"

	"github.com/voxturn/voxturn-core/core/audio"
	"github.com/voxturn/voxturn-core/core/llms"
)

type OrchestratorOption func(*Orchestrator)

// Transcriber turns one complete audio segment into text.
type Transcriber interface {
	TranscribeSegment(ctx context.Context, pcm []byte, info audio.EncodingInfo) (string, error)
}

func WithTranscriber(client Transcriber) OrchestratorOption {
	return func(o *Orchestrator) { o.transcriber = client }
}

// LLM produces one model response for the given conversation, possibly
// containing tool calls to resolve before the next request.
type LLM interface {
	Chat(ctx context.Context, instructions string, conversation []llms.Message, tools []llms.Tool) (*llms.Response, error)
}

func WithLLM(client LLM) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

// SpeechSynthesizer renders text to audio, delivering it through whatever
// callback the client was constructed with.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) error
}

// WithSynthesizer sets the speech synthesizer. The orchestrator never routes
// synthesized audio itself: the synthesizer must be built to deliver audio to
// the configured output, typically with
// texttospeech.WithSpeechAudioCallback(output.Play).
func WithSynthesizer(client SpeechSynthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = client }
}

type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onFrame func(frame []byte)) error
	StopCapture() error
}

func WithAudioInput(client AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput = client }
}

type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	Play(pcm []byte) error
	Drain(ctx context.Context) error
}

// WithAudioOutput sets the playback device. Audio reaches it through the
// synthesizer's audio callback (see [WithSynthesizer]); the orchestrator only
// calls Drain after synthesis to wait for playback to finish.
func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput = client }
}

func WithConfig(config Config) OrchestratorOption {
	return func(o *Orchestrator) { o.config = config }
}

func WithTools(tools ...llms.Tool) OrchestratorOption {
	return func(o *Orchestrator) { o.pendingTools = append(o.pendingTools, tools...) }
}

type RunOptions struct {
	onStateChange    func(state TurnState)
	onUserUtterance  func(utterance Utterance)
	onAgentUtterance func(utterance Utterance)
	onToolCall       func(request ToolCallRequest, result ToolCallResult)
	onNotice         func(err error)
}

type RunOption func(*RunOptions)

// WithStateChangeCallback registers a callback for every turn-state
// transition, including the initial move to listening.
func WithStateChangeCallback(callback func(state TurnState)) RunOption {
	return func(o *RunOptions) { o.onStateChange = callback }
}

func WithUserUtteranceCallback(callback func(utterance Utterance)) RunOption {
	return func(o *RunOptions) { o.onUserUtterance = callback }
}

func WithAgentUtteranceCallback(callback func(utterance Utterance)) RunOption {
	return func(o *RunOptions) { o.onAgentUtterance = callback }
}

// WithToolCallCallback registers a callback invoked after each tool
// execution, successful or not.
func WithToolCallCallback(callback func(request ToolCallRequest, result ToolCallResult)) RunOption {
	return func(o *RunOptions) { o.onToolCall = callback }
}

// WithNoticeCallback registers a callback for recoverable errors: the turn
// they occurred in is abandoned but the session keeps running.
func WithNoticeCallback(callback func(err error)) RunOption {
	return func(o *RunOptions) { o.onNotice = callback }
}
