package augment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pfrederiksen/hh-events/internal/config"
	"github.com/pfrederiksen/hh-events/internal/event"
	"github.com/pfrederiksen/hh-events/internal/logger"
	"github.com/pfrederiksen/hh-events/internal/validation"
)

// maxResponseSize caps how much of a completion response is read
const maxResponseSize = 4 << 20

const patchSystemPrompt = `Return JSON only. No markdown fences. Use German.`

const summarySystemPrompt = `You are a friendly guide that provides helpful event suggestions in German.`

// OpenAI talks to an OpenAI-compatible chat completions API
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
}

// NewOpenAI creates a client from the augmentation config
func NewOpenAI(cfg config.AugmentConfig) *OpenAI {
	name := "augment-openai"
	return &OpenAI{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cb: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     time.Minute,
			// Opens after 5 consecutive transport failures
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Only an unreachable service counts against the breaker
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, ErrUnreachable)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("Circuit breaker state transition", logger.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				})
			},
		}),
	}
}

// Name returns "openai"
func (c *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// patchReply is the JSON object the model must return
type patchReply struct {
	Patches []event.Patch `json:"patches" validate:"required,dive"`
}

// Patches requests a patch list for records
func (c *OpenAI) Patches(ctx context.Context, records []event.Record) ([]event.Patch, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}

	content, err := c.complete(ctx, patchSystemPrompt, patchPrompt()+"\n\nContext:\n"+string(payload), true)
	if err != nil {
		return nil, err
	}
	return decodePatches(content)
}

// Summarize asks the model to present records as prose
func (c *OpenAI) Summarize(ctx context.Context, date time.Time, records []event.Record) (string, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encoding records: %w", err)
	}

	prompt := fmt.Sprintf(`Given the input provided as context, produce a text that presents the
events on %s in the list with as much information as possible.
If there are no events in the list, only state kindly that there are no
suitable events (without offering any further assistance).

Context:
%s`, date.Format(event.DateLayout), payload)

	content, err := c.complete(ctx, summarySystemPrompt, prompt, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func patchPrompt() string {
	return `Given the events provided as context, assign each event exactly one category
from this list: "` + strings.Join(event.Categories, `", "`) + `".
If an event has no description, write a short one (one sentence).
Never change any other field. Return a JSON object with one key:
    {"patches": [{"id": "…", "category": "…", "description": "…"}]}
Leave out "category" or "description" when you have nothing to add.`
}

// decodePatches parses and validates a model reply
func decodePatches(content string) ([]event.Patch, error) {
	var reply patchReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("%w: decoding reply: %w", ErrInvalidPatches, err)
	}
	if err := validation.ValidateStruct(&reply); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatches, err)
	}
	return reply.Patches, nil
}

// complete sends one chat completion and returns the first choice's content
func (c *OpenAI) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrInvalidPatches, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrInvalidPatches)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAI) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: making request: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: API returned status %d", ErrUnreachable, resp.StatusCode)
	}
	return data, nil
}
