package orchestration

// TurnState is where the session currently is in the listen → transcribe →
// infer → execute tools → speak cycle. Exactly one state is active at a time.
type TurnState string

const (
	TurnStateIdle           TurnState = "idle"
	TurnStateListening      TurnState = "listening"
	TurnStateTranscribing   TurnState = "transcribing"
	TurnStateInferring      TurnState = "inferring"
	TurnStateExecutingTools TurnState = "executing_tools"
	TurnStateSpeaking       TurnState = "speaking"
)
