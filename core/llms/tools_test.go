package llms

import (
	"strings"
	"testing"
)

func TestNewToolExecutesWithTypedArguments(t *testing.T) {
	tool := NewTool("echo", "Echoes back the given text",
		map[string]ParameterBase{
			"text": {Type: "string", Description: "Text to echo", Required: true},
		},
		func(parameters struct {
			Text string `json:"text"`
		}) (string, error) {
			return parameters.Text, nil
		})

	got, err := tool.Execute(`{"text":"hello"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected handler to receive unmarshalled text, got %q", got)
	}
}

func TestNewToolCollectsRequiredParameters(t *testing.T) {
	tool := NewTool("set_timer", "Sets a timer",
		map[string]ParameterBase{
			"seconds": {Type: "number", Required: true},
			"label":   {Type: "string"},
		},
		func(struct{}) (string, error) { return "", nil })

	required := tool.Function.Parameters.Required
	if len(required) != 1 || required[0] != "seconds" {
		t.Fatalf("expected only seconds to be required, got %v", required)
	}
}

func TestNewToolReflectsSchemaFromParameterStruct(t *testing.T) {
	tool := NewTool("lookup", "Looks something up", nil,
		func(parameters struct {
			Query string `json:"query" jsonschema:"description=The search query"`
			Limit int    `json:"limit,omitempty"`
		}) (string, error) {
			return "", nil
		})

	properties := tool.Function.Parameters.Properties
	if properties["query"].Type != "string" {
		t.Fatalf("expected query to reflect as string, got %q", properties["query"].Type)
	}
	if properties["limit"].Type != "integer" {
		t.Fatalf("expected limit to reflect as integer, got %q", properties["limit"].Type)
	}
	if !properties["query"].Required {
		t.Fatal("expected query to be required")
	}
}

func TestExecuteRejectsMalformedArguments(t *testing.T) {
	tool := NewTool("noop", "Does nothing", map[string]ParameterBase{},
		func(struct{}) (string, error) { return "ok", nil })

	if _, err := tool.Execute(`{not json`); err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}

func TestValidateArgumentsMissingRequired(t *testing.T) {
	parameters := ToolParameters{
		Type:       "object",
		Properties: map[string]ParameterBase{"seconds": {Type: "number", Required: true}},
		Required:   []string{"seconds"},
	}

	err := parameters.ValidateArguments(`{}`)
	if err == nil || !strings.Contains(err.Error(), "seconds") {
		t.Fatalf("expected missing-parameter error naming seconds, got %v", err)
	}
}

func TestValidateArgumentsTypeMismatch(t *testing.T) {
	parameters := ToolParameters{
		Type:       "object",
		Properties: map[string]ParameterBase{"seconds": {Type: "number"}},
	}

	if err := parameters.ValidateArguments(`{"seconds":"ten"}`); err == nil {
		t.Fatal("expected type-mismatch error")
	}
	if err := parameters.ValidateArguments(`{"seconds":10}`); err != nil {
		t.Fatalf("unexpected error for valid arguments: %v", err)
	}
}

func TestValidateArgumentsUnknownParameter(t *testing.T) {
	parameters := ToolParameters{Type: "object", Properties: map[string]ParameterBase{}}

	if err := parameters.ValidateArguments(`{"bogus":true}`); err == nil {
		t.Fatal("expected unknown-parameter error")
	}
}
