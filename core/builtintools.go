package orchestration

import (
	"fmt"
	"time"

	"github.com/voxturn/voxturn-core/core/llms"
)

func builtinTools(o *Orchestrator) []llms.Tool {
	return []llms.Tool{
		llms.NewTool("current_time", "Get the current local time, might be referred to as 'the clock'",
			map[string]llms.ParameterBase{},
			func(parameters struct{}) (string, error) {
				return time.Now().Format("Monday, January 2 2006, 15:04:05"), nil
			}),
		llms.NewTool("snooze", "Stop responding for a while. The wake word still gets through",
			map[string]llms.ParameterBase{
				"seconds": {Type: "number", Description: "How long to stay quiet, in seconds", Required: true},
			},
			func(parameters struct {
				Seconds float64 `json:"seconds"`
			}) (string, error) {
				if parameters.Seconds <= 0 {
					return "", fmt.Errorf("snooze duration must be positive, got %f", parameters.Seconds)
				}
				until := o.snooze(time.Duration(parameters.Seconds * float64(time.Second)))
				return fmt.Sprintf("Snoozing until %s. Respond with a very short phrase", until.Format("15:04:05")), nil
			}),
	}
}
