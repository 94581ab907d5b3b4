package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/infra/httpclient"

	"github.com/sony/gobreaker"
)

const (
	generationTemperature = 0.2
	providerName          = "generator"
)

// AdviceFormat is the JSON schema sent as Ollama's structured-output
// format when generating recommendations. The output validator enforces
// the same contract locally, so providers that ignore format still get
// checked.
var AdviceFormat = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"recommendations": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":  map[string]interface{}{"type": "string"},
					"action": map[string]interface{}{"type": "string"},
					"reason": map[string]interface{}{"type": "string"},
					"priority": map[string]interface{}{
						"type": "string",
						"enum": []string{"critical", "high", "medium", "low"},
					},
					"timing": map[string]interface{}{
						"type": "string",
						"enum": []string{"immediate", "today", "within_2_hours", "this_week", "next_week"},
					},
					"resources_needed": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"title", "action", "reason", "priority", "timing"},
			},
		},
		"note": map[string]interface{}{"type": "string"},
	},
	"required": []string{"recommendations"},
}

// SummaryFormat is the structured-output schema for narrative summary
// generation.
var SummaryFormat = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary": map[string]interface{}{"type": "string"},
	},
	"required": []string{"summary"},
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string                 `json:"model"`
	Messages  []chatMessage          `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive int                    `json:"keep_alive"`
	Format    map[string]interface{} `json:"format,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Generator sends chat prompts to an Ollama-compatible /api/chat
// endpoint with a fixed structured-output format. Build one instance
// per output contract.
type Generator struct {
	BaseURL string
	Model   string
	Format  map[string]interface{}
	Client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewGenerator constructs a generator for one output format on the
// shared connection pool.
func NewGenerator(baseURL, model string, format map[string]interface{}, timeout time.Duration, logger *slog.Logger) *Generator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    providerName,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("breaker_state_changed",
				slog.String("client", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &Generator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Format:  format,
		Client:  httpclient.NewPooledClient(timeout),
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Generate sends the messages and returns the assistant content.
// Transport failures and bad statuses surface as
// ProviderUnavailableError so callers can apply the retry policy.
func (g *Generator) Generate(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.LLMResponse, error) {
	start := time.Now()

	chatMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, chatMessage{Role: m.Role, Content: m.Content})
	}

	reqBody := chatRequest{
		Model:     g.Model,
		Messages:  chatMessages,
		Stream:    false,
		KeepAlive: -1,
		Format:    g.Format,
		Options: map[string]interface{}{
			"temperature": generationTemperature,
		},
	}
	if maxTokens > 0 {
		reqBody.Options["num_predict"] = maxTokens
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.doChat(ctx, jsonPayload)
	})
	if err != nil {
		g.logger.Warn("generation_failed",
			slog.String("model", g.Model),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, &domain.ProviderUnavailableError{Provider: providerName, Cause: err}
	}

	chatResp := result.(*chatResponse)
	content := strings.TrimSpace(chatResp.Message.Content)
	if content == "" {
		return nil, &domain.ProviderUnavailableError{
			Provider: providerName,
			Cause:    fmt.Errorf("empty generation response"),
		}
	}

	g.logger.Debug("generation_completed",
		slog.String("model", g.Model),
		slog.Bool("done", chatResp.Done),
		slog.Duration("elapsed", time.Since(start)))

	return &domain.LLMResponse{Text: content, Done: chatResp.Done}, nil
}

func (g *Generator) doChat(ctx context.Context, payload []byte) (*chatResponse, error) {
	url := g.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call generation endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	return &chatResp, nil
}

// Ping verifies the endpoint is reachable without generating.
func (g *Generator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (g *Generator) Version() string {
	return g.Model
}

var _ domain.LLMClient = (*Generator)(nil)
