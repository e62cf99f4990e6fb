// Package llm talks to an Ollama server for chat completions, schema-bound
// JSON answers and embeddings.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/ollama/ollama/api"
)

const defaultServerURL = "http://localhost:11434"

// ErrInvalidOutput means the model answered with JSON that does not satisfy
// the requested schema.
var ErrInvalidOutput = errors.New("model output does not match schema")

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// System and User build chat turns.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Client is an Ollama-backed model client. Every call is bounded by the
// configured timeout.
type Client struct {
	client     *api.Client
	chatModel  string
	embedModel string
	timeout    time.Duration
}

// NewClient creates a Client for serverURL. A missing scheme defaults to http.
func NewClient(serverURL, chatModel, embedModel string, timeout time.Duration) (*Client, error) {
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		serverURL = "http://" + serverURL
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}
	if chatModel == "" {
		return nil, errors.New("chat model must be set")
	}

	return &Client{
		client:     api.NewClient(u, &http.Client{}),
		chatModel:  chatModel,
		embedModel: embedModel,
		timeout:    timeout,
	}, nil
}

// Chat returns the complete assistant reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	return c.chat(ctx, messages, nil)
}

// Structured asks for a JSON reply constrained by schema, validates it and
// decodes it into out.
func (c *Client) Structured(ctx context.Context, messages []Message, schema *jsonschema.Schema, out any) error {
	format, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("json.Marshal schema failed: %w", err)
	}

	text, err := c.chat(ctx, messages, format)
	if err != nil {
		return err
	}

	return DecodeJSON(text, schema, out)
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.embedModel == "" {
		return nil, errors.New("embedding model must be set")
	}
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.client.Embed(ctx, &api.EmbedRequest{Model: c.embedModel, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("client.Embed failed: %w", err)
	}
	if len(res.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("client.Embed returned %d vectors for %d inputs", len(res.Embeddings), len(inputs))
	}

	return res.Embeddings, nil
}

func (c *Client) chat(ctx context.Context, messages []Message, format json.RawMessage) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model:    c.chatModel,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
		Format:   format,
	}

	var sb strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("client.Chat failed: %w", err)
	}

	return sb.String(), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.timeout)
}

func toOllamaMessages(msgs []Message) []api.Message {
	out := make([]api.Message, len(msgs))
	for i, m := range msgs {
		out[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// DecodeJSON validates text against schema and unmarshals it into out.
// Markdown code fences around the JSON are tolerated.
func DecodeJSON(text string, schema *jsonschema.Schema, out any) error {
	text = stripFences(text)

	var instance any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return fmt.Errorf("%w: json.Unmarshal failed: %w", ErrInvalidOutput, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("schema.Resolve failed: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %w", err)
	}

	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}
