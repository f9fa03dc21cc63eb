package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"

	maxRetries           = 2
	initialBackoff       = 2 * time.Second
	defaultClientTimeout = 2 * time.Minute

	analysisMaxTokens = 1000
)

// AnthropicAnalyzer implements RoomAnalyzer against Anthropic's messages
// API. Models are tried in order; the first one that answers wins.
type AnthropicAnalyzer struct {
	apiKey  string
	models  []string
	baseURL string
	client  *http.Client
}

// NewAnthropicAnalyzer creates an analyzer using the default API endpoint.
// timeout is optional - pass 0 to use the default 2 minute timeout
func NewAnthropicAnalyzer(apiKey string, models []string, timeout time.Duration) *AnthropicAnalyzer {
	return NewAnthropicAnalyzerWithBaseURL(apiKey, models, anthropicAPIURL, timeout)
}

// NewAnthropicAnalyzerWithBaseURL creates an analyzer against a custom
// messages endpoint. Useful for testing and proxy deployments.
func NewAnthropicAnalyzerWithBaseURL(apiKey string, models []string, baseURL string, timeout time.Duration) *AnthropicAnalyzer {
	if baseURL == "" {
		baseURL = anthropicAPIURL
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &AnthropicAnalyzer{
		apiKey:  apiKey,
		models:  models,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"` // "image" or "text"
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeRoom sends the room photos to the model and parses the structured
// assessment out of its reply. Model failures degrade rather than fail: the
// caller always gets an Assessment it can render.
func (a *AnthropicAnalyzer) AnalyzeRoom(ctx context.Context, roomName string, photos [][]byte, reportType string) *Assessment {
	content := make([]anthropicContent, 0, len(photos)+1)
	for _, photo := range photos {
		content = append(content, anthropicContent{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: detectMediaType(photo),
				Data:      base64.StdEncoding.EncodeToString(photo),
			},
		})
	}
	content = append(content, anthropicContent{
		Type: "text",
		Text: analysisPrompt(roomName, reportType),
	})

	var raw string
	var lastErr error
	for _, model := range a.models {
		log.Info().Str("room", roomName).Str("model", model).Msg("analyzing room photos")
		text, err := a.send(ctx, anthropicRequest{
			Model:     model,
			MaxTokens: analysisMaxTokens,
			Messages:  []anthropicMessage{{Role: "user", Content: content}},
		})
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("room", roomName).Str("model", model).Msg("model failed, trying next")
			continue
		}
		raw = strings.TrimSpace(text)
		break
	}

	if raw == "" {
		log.Error().Err(lastErr).Str("room", roomName).Msg("all vision models failed")
		msg := "Analysis failed"
		if lastErr != nil {
			msg = fmt.Sprintf("Analysis failed: %.100s", lastErr.Error())
		}
		return &Assessment{
			OverallRating: "N/A",
			Items:         []Item{{Name: "Error", Rating: "N/A", Notes: msg}},
			Summary:       "Analysis could not be completed. Please try again.",
			Flags:         []string{"Analysis error — please retry"},
		}
	}

	return parseAssessment(raw)
}

// send posts one messages request, retrying transient errors (429, 529,
// 5xx) with exponential backoff.
func (a *AnthropicAnalyzer) send(ctx context.Context, req anthropicRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var respBody []byte
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

		resp, err := a.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode == 529 || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErrorMessage(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErrorMessage(respBody))
		}

		lastErr = nil
		break
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	var text strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return text.String(), nil
}

func apiErrorMessage(body []byte) string {
	var e anthropicError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}

// parseAssessment strips markdown code fences and decodes the model's JSON.
// Unparseable output is wrapped in a minimal assessment so the report still
// renders.
func parseAssessment(raw string) *Assessment {
	if strings.HasPrefix(raw, "```") {
		if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
			raw = raw[idx+1:]
		} else {
			raw = raw[3:]
		}
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var a Assessment
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		notes := raw
		if len(notes) > 500 {
			notes = notes[:500]
		}
		return &Assessment{
			OverallRating: "Fair",
			Items:         []Item{{Name: "General Condition", Rating: "Fair", Notes: notes}},
			Summary:       "AI analysis completed. See item details above.",
			Flags:         []string{},
		}
	}
	if a.Flags == nil {
		a.Flags = []string{}
	}
	return &a
}

func detectMediaType(photo []byte) string {
	switch ct := http.DetectContentType(photo); ct {
	case "image/png", "image/webp", "image/gif":
		return ct
	default:
		return "image/jpeg"
	}
}
