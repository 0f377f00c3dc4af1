package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/voxturn/voxturn-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ToolSpec describes a registered capability as exposed to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  llms.ToolParameters
}

// ToolCallRequest is a tool invocation the model asked for.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string
}

// ToolCallResult is the outcome of executing one request, correlated back by
// ID. Failures are results, not errors: the model gets to see them and
// recover.
type ToolCallResult struct {
	ID      string
	Success bool
	Payload string
	Error   string
}

// ToolRegistry maps tool names to capabilities. Registration happens before
// the session starts; once the orchestrator runs, the registry is read-only.
type ToolRegistry struct {
	mu     sync.Mutex
	tools  map[string]llms.Tool
	order  []string
	sealed atomic.Bool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]llms.Tool{}}
}

func (r *ToolRegistry) Register(tools ...llms.Tool) error {
	if r.sealed.Load() {
		return fmt.Errorf("registry is sealed, tools must be registered before the session starts")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range tools {
		name := tool.Function.Name
		if name == "" {
			return fmt.Errorf("tool has no name")
		}
		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool %q is already registered", name)
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}

	return nil
}

func (r *ToolRegistry) seal() { r.sealed.Store(true) }

// Tools returns the registered capabilities in registration order.
func (r *ToolRegistry) Tools() []llms.Tool {
	r.mu.Lock()
	defer r.mu.Unlock()

	tools := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

func (r *ToolRegistry) Specs() []ToolSpec {
	r.mu.Lock()
	defer r.mu.Unlock()

	specs := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		specs = append(specs, ToolSpec{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}
	return specs
}

// Execute runs one request: the name must be registered and the arguments
// must satisfy the declared schema. Handler failures are captured into the
// result rather than propagated, so a broken tool cannot take the turn down.
func (r *ToolRegistry) Execute(ctx context.Context, request ToolCallRequest) ToolCallResult {
	_, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", request.Name))

	r.mu.Lock()
	tool, ok := r.tools[request.Name]
	r.mu.Unlock()

	if !ok {
		err := &ToolValidationError{Tool: request.Name, Err: fmt.Errorf("tool not found")}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ToolCallResult{ID: request.ID, Success: false, Error: err.Error()}
	}

	if err := tool.Function.Parameters.ValidateArguments(request.Arguments); err != nil {
		validationErr := &ToolValidationError{Tool: request.Name, Err: err}
		span.RecordError(validationErr)
		span.SetStatus(codes.Error, validationErr.Error())
		return ToolCallResult{ID: request.ID, Success: false, Error: validationErr.Error()}
	}

	payload, err := safeExecute(tool, request.Arguments)
	if err != nil {
		executionErr := &ToolExecutionError{Tool: request.Name, Err: err}
		span.RecordError(executionErr)
		span.SetStatus(codes.Error, executionErr.Error())
		return ToolCallResult{ID: request.ID, Success: false, Error: executionErr.Error()}
	}

	return ToolCallResult{ID: request.ID, Success: true, Payload: payload}
}

func safeExecute(tool llms.Tool, arguments string) (payload string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("tool panicked: %v", recovered)
		}
	}()

	return tool.Execute(arguments)
}
