package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Terpedia/functional-flavors/internal/storage"
)

// Client is a client for the external answer generation endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewClient creates a new generation client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  http.DefaultClient,
	}
}

// GenerateRequest carries a query plus its grounding context to the endpoint.
type GenerateRequest struct {
	Message string          `json:"message"`
	Context GenerateContext `json:"context"`
}

// GenerateContext is the grounding payload sent alongside the message.
type GenerateContext struct {
	ConversationHistory []storage.Message `json:"conversationHistory"`
	RAGContext          string            `json:"ragContext,omitempty"`
	PageURL             string            `json:"pageUrl,omitempty"`
	PageTitle           string            `json:"pageTitle,omitempty"`
}

// Generate sends the query and its retrieved context to the generation
// endpoint and returns the normalized answer string.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	answer, err := NormalizeResponse(raw)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// The endpoint has been observed to answer in several shapes. Each is tried
// in turn; an unrecognized payload is stringified rather than rejected.
type responseShapeA struct {
	Response string `json:"response"`
}

type responseShapeB struct {
	Message string `json:"message"`
}

type responseShapeC struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NormalizeResponse resolves the endpoint's heterogeneous response shapes to
// a single answer string. Only a body that is not valid JSON at all is an error.
func NormalizeResponse(raw []byte) (string, error) {
	var a responseShapeA
	if err := json.Unmarshal(raw, &a); err == nil && strings.TrimSpace(a.Response) != "" {
		return a.Response, nil
	}

	var b responseShapeB
	if err := json.Unmarshal(raw, &b); err == nil && strings.TrimSpace(b.Message) != "" {
		return b.Message, nil
	}

	var c responseShapeC
	if err := json.Unmarshal(raw, &c); err == nil && len(c.Choices) > 0 &&
		strings.TrimSpace(c.Choices[0].Message.Content) != "" {
		return c.Choices[0].Message.Content, nil
	}

	var any json.RawMessage
	if err := json.Unmarshal(raw, &any); err != nil {
		return "", fmt.Errorf("malformed response body: %w", err)
	}
	return string(raw), nil
}
