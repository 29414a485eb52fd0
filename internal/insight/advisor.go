// ABOUTME: Advisor client that turns prompts into natural-language health insights.
// ABOUTME: Speaks the OpenAI-compatible chat completions API (OpenAI, Ollama, vLLM).
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNoAdvisor is returned when insight generation is requested without an
// advisor endpoint configured.
var ErrNoAdvisor = errors.New("no advisor configured")

// Advisor generates text for a prompt.
type Advisor interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AdvisorConfig configures a ChatAdvisor.
type AdvisorConfig struct {
	// BaseURL is the API root, e.g. http://localhost:11434/v1 for Ollama.
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration

	// KeepHistory sends earlier turns with each prompt.
	KeepHistory bool
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatAdvisor calls a chat completions endpoint.
type ChatAdvisor struct {
	config  AdvisorConfig
	client  *http.Client
	mu      sync.Mutex
	history []Message
}

// NewChatAdvisor creates an advisor for config.
func NewChatAdvisor(config AdvisorConfig) (*ChatAdvisor, error) {
	if config.BaseURL == "" {
		return nil, ErrNoAdvisor
	}
	if config.Model == "" {
		return nil, fmt.Errorf("advisor model is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &ChatAdvisor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// History returns a copy of the conversation so far.
func (a *ChatAdvisor) History() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.history...)
}

// Reset clears the conversation history.
func (a *ChatAdvisor) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Generate sends prompt and returns the assistant's reply.
func (a *ChatAdvisor) Generate(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	messages := make([]Message, 0, len(a.history)+1)
	if a.config.KeepHistory {
		messages = append(messages, a.history...)
	}
	a.mu.Unlock()
	messages = append(messages, Message{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: a.config.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(a.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("advisor returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("advisor error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("advisor returned no choices")
	}

	reply := chatResp.Choices[0].Message.Content
	if a.config.KeepHistory {
		a.mu.Lock()
		a.history = append(a.history,
			Message{Role: "user", Content: prompt},
			Message{Role: "assistant", Content: reply},
		)
		a.mu.Unlock()
	}
	return reply, nil
}
