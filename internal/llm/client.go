package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/samber/lo"
)

var ErrNoChoices = errors.New("llm: response has no choices")

// APIError is a non-2xx answer from the model endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
	Key     string
}

func (c *Client) Complete(ctx context.Context, params ChatRequest) (*ChatResponse, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("llm").With("model", params.Model, "messages", len(params.Messages))
	log.Info("requesting chat completion")

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Key != "" {
		req.Header.Set("Authorization", "Bearer "+c.Key)
	}

	resp, err := lo.Ternary(c.HTTP != nil, c.HTTP, http.DefaultClient).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out ChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	log.Info("received chat completion", "id", out.ID, "tokens", out.Usage.TotalTokens)
	return &out, nil
}

// Model binds a Completer to one API model identifier.
type Model struct {
	ID        string
	completer Completer
}

func (c *Client) Model(id string) Model {
	return Model{ID: id, completer: c}
}

// Chat sends messages to the model and returns the first choice's content.
func (m Model) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := m.completer.Complete(ctx, ChatRequest{Model: m.ID, Messages: messages})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
