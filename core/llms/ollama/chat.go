package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/voxturn/voxturn-core/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultBaseURL = "http://localhost:11434"

// Client talks to a local Ollama server's /api/chat endpoint.
type Client struct {
	baseURL string
	model   string

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithBaseURL overrides the default localhost Ollama address.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(model string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		model:      model,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Chat sends the conversation and tool specs to the model and returns either
// final content or the batch of tool calls the model requested.
func (c *Client) Chat(ctx context.Context, instructions string, conversation []llms.Message, baseTools []llms.Tool) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	var toolNames []string
	for _, tool := range baseTools {
		toolNames = append(toolNames, tool.Function.Name)
	}
	span.SetAttributes(attribute.StringSlice("request.available_tools", toolNames))

	var tools []Tool
	if baseTools != nil {
		if err := copier.Copy(&tools, baseTools); err != nil {
			err = fmt.Errorf("error copying tools: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	reqBody := requestBody{
		Model:    c.model,
		Messages: toMessages(instructions, conversation),
		Stream:   false,
		Tools:    tools,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if parsed.Error != "" {
		err = fmt.Errorf("ollama error: %s", parsed.Error)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	response := llms.Response{Content: parsed.Message.Content}
	for _, tCall := range parsed.Message.ToolCalls {
		id := tCall.ID
		if id == "" {
			// Ollama does not assign call ids; results are correlated by
			// id downstream so mint one here.
			id = uuid.NewString()
		}
		response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
			ID:        id,
			Name:      tCall.Function.Name,
			Arguments: string(tCall.Function.Arguments),
		})
	}

	// A model that calls tools has not produced its final answer yet.
	if len(response.ToolCalls) > 0 {
		response.Content = ""
	}

	span.SetAttributes(attribute.Int("response.tool_calls", len(response.ToolCalls)))
	return &response, nil
}
