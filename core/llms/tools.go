package llms

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/invopop/jsonschema"
)

// ParameterBase describes a single tool parameter in the subset of JSON
// schema the providers understand.
type ParameterBase struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"-"`
}

// Tool is a named capability the model may invoke mid-turn.
type Tool struct {
	Type     string
	Function ToolFunction

	execute func(arguments string) (string, error)
}

type ToolFunction struct {
	Name        string
	Description string
	Parameters  ToolParameters
}

type ToolParameters struct {
	Type       string
	Properties map[string]ParameterBase
	Required   []string
}

// NewTool builds a Tool from a typed handler. parameters declares the wire
// schema; when nil it is reflected from P instead. Arguments are unmarshalled
// into P before the handler runs, so a handler never sees raw JSON.
func NewTool[P any](name, description string, parameters map[string]ParameterBase, handler func(parameters P) (string, error)) Tool {
	toolParameters := ToolParameters{Type: "object", Properties: parameters}
	if parameters == nil {
		toolParameters = reflectParameters[P]()
	} else {
		for parameterName, parameter := range parameters {
			if parameter.Required {
				toolParameters.Required = append(toolParameters.Required, parameterName)
			}
		}
		slices.Sort(toolParameters.Required)
	}

	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  toolParameters,
		},
		execute: func(arguments string) (string, error) {
			var params P
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &params); err != nil {
					return "", fmt.Errorf("failed to unmarshal tool arguments: %w", err)
				}
			}
			return handler(params)
		},
	}
}

// Execute runs the tool handler with the given JSON arguments.
func (t Tool) Execute(arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("tool %q has no handler", t.Function.Name)
	}
	return t.execute(arguments)
}

// ValidateArguments checks the given JSON arguments against the declared
// parameter schema: required fields must be present and primitive types must
// match.
func (p ToolParameters) ValidateArguments(arguments string) error {
	parsed := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &parsed); err != nil {
			return fmt.Errorf("arguments are not a JSON object: %w", err)
		}
	}

	for _, required := range p.Required {
		if _, ok := parsed[required]; !ok {
			return fmt.Errorf("missing required parameter %q", required)
		}
	}

	for name, value := range parsed {
		parameter, ok := p.Properties[name]
		if !ok {
			return fmt.Errorf("unknown parameter %q", name)
		}
		if !matchesType(value, parameter.Type) {
			return fmt.Errorf("parameter %q is not of type %s", name, parameter.Type)
		}
	}

	return nil
}

func matchesType(value any, schemaType string) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	}
	return true
}

func reflectParameters[P any]() ToolParameters {
	reflector := jsonschema.Reflector{DoNotReference: true}

	var params P
	var schema *jsonschema.Schema
	if reflect.TypeOf(params) != nil && reflect.TypeOf(params).Kind() == reflect.Ptr {
		schema = reflector.ReflectFromType(reflect.TypeOf(params).Elem())
	} else {
		schema = reflector.Reflect(params)
	}

	parameters := ToolParameters{Type: "object", Properties: map[string]ParameterBase{}}
	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			parameters.Properties[pair.Key] = ParameterBase{
				Type:        pair.Value.Type,
				Description: pair.Value.Description,
				Required:    slices.Contains(schema.Required, pair.Key),
			}
		}
	}
	parameters.Required = append(parameters.Required, schema.Required...)
	slices.Sort(parameters.Required)

	return parameters
}
