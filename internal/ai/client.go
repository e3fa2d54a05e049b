// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ai holds the language-model judge contract used by the matcher,
// resolver, appropriateness checker, and graph engine: a JSON-returning chat
// call, the error taxonomy for its output, and the per-run call budgets.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/citeguard/internal/httputil"
	"github.com/pdiddy/citeguard/pkg/types"
)

// ErrInvalidOutput marks model output that is not the JSON the caller asked
// for. Call sites treat it as recoverable: they fall back to a heuristic or
// a manual-review issue, never crash.
var ErrInvalidOutput = errors.New("model output invalid")

// Client abstracts the JSON-returning chat capability so tests can supply a
// mock. Implementations must return ErrInvalidOutput (wrapped) when the
// model's reply is not valid JSON.
type Client interface {
	ChatJSON(ctx context.Context, system, user string) (json.RawMessage, error)
}

// OpenRouterBaseURL is the chat-completions endpoint. Tests substitute an
// httptest server URL.
var OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter implements Client against the OpenRouter chat-completions API.
type OpenRouter struct {
	cfg    types.AIConfig
	client *http.Client
	log    *zap.Logger
}

// NewOpenRouter builds a client. A nil logger disables diagnostics.
func NewOpenRouter(cfg types.AIConfig, httpClient *http.Client, log *zap.Logger) *OpenRouter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenRouter{cfg: cfg, client: httpClient, log: log}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse covers the shapes the API is known to produce. Every field is
// optional; extraction is defensive.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content    json.RawMessage `json:"content"`
			OutputText string          `json:"output_text"`
			Text       string          `json:"text"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatJSON sends a system+user prompt pair and returns the model's reply
// parsed as JSON. Code fences around the reply are stripped before parsing.
func (c *OpenRouter) ChatJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("openrouter API key is required")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, OpenRouterBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.client, req, nil, c.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chat request returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}

	content := extractContent(parsed)
	if content == "" {
		return nil, fmt.Errorf("%w: response carried no message content", ErrInvalidOutput)
	}

	payload := StripCodeFence(content)
	if !json.Valid([]byte(payload)) {
		snippet := payload
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		c.log.Debug("model returned non-JSON content", zap.String("snippet", snippet))
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidOutput)
	}
	return json.RawMessage(payload), nil
}

// extractContent digs the reply text out of whichever response shape the API
// used: a plain content string, a typed content-part list, output_text, or a
// bare choice text.
func extractContent(resp chatResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	choice := resp.Choices[0]

	if msg := choice.Message; msg != nil {
		if len(msg.Content) > 0 {
			var s string
			if err := json.Unmarshal(msg.Content, &s); err == nil && s != "" {
				return s
			}
			var parts []struct {
				Text    string `json:"text"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(msg.Content, &parts); err == nil {
				var joined []string
				for _, p := range parts {
					if p.Text != "" {
						joined = append(joined, p.Text)
					} else if p.Content != "" {
						joined = append(joined, p.Content)
					}
				}
				if len(joined) > 0 {
					return strings.Join(joined, "\n")
				}
			}
		}
		if msg.OutputText != "" {
			return msg.OutputText
		}
		if msg.Text != "" {
			return msg.Text
		}
	}
	return choice.Text
}

// StripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// from model output. Text without a fence is returned unchanged.
func StripCodeFence(text string) string {
	stripped := strings.TrimSpace(text)
	if !strings.HasPrefix(stripped, "```") {
		return text
	}
	lines := strings.Split(stripped, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
