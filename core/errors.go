package orchestration

import "fmt"

// DeviceError means the audio device is gone; the session cannot continue.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("audio device failed: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// TranscriptionError means the current segment could not be transcribed; the
// turn is discarded and the session returns to listening.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription failed: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// InferenceError means the language model call failed; the turn is aborted
// with a notice and history is preserved.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return fmt.Sprintf("inference failed: %v", e.Err) }
func (e *InferenceError) Unwrap() error { return e.Err }

// SynthesisError means the reply could not be spoken; the reply still stays
// in history.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("speech synthesis failed: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

// ToolValidationError means a requested tool call never ran: the tool is
// unknown or its arguments do not satisfy the declared schema.
type ToolValidationError struct {
	Tool string
	Err  error
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("invalid tool call %q: %v", e.Tool, e.Err)
}
func (e *ToolValidationError) Unwrap() error { return e.Err }

// ToolExecutionError means a tool handler ran and failed. The diagnostic goes
// back to the model as a failed result.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("failed to execute tool %q: %v", e.Tool, e.Err)
}
func (e *ToolExecutionError) Unwrap() error { return e.Err }
