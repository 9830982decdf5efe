// Package openai is an alternative embeddings provider speaking the
// OpenAI-compatible /embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/metrics"
)

const metricsOp = "openai_embeddings"

// Embedder implements domain.Embedder on an OpenAI-compatible endpoint.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	// HTTPClient overrides the default client, e.g. with a retrying transport.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	metrics.AIRequestDuration.WithLabelValues(metricsOp).Observe(time.Since(start).Seconds())

	if err != nil {
		apiErr := parseAPIError(err)
		metrics.AIRequestsTotal.WithLabelValues(metricsOp, statusLabel(apiErr)).Inc()
		e.logger.Warn("Embedding request failed", zap.String("model", string(e.model)), zap.Error(apiErr))
		return domain.EmbeddingResult{}, apiErr
	}

	if len(resp.Data) == 0 {
		metrics.AIRequestsTotal.WithLabelValues(metricsOp, "empty").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrUpstream)
	}

	metrics.AIRequestsTotal.WithLabelValues(metricsOp, "200").Inc()
	return domain.EmbeddingResult{
		Embedding:   resp.Data[0].Embedding,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError converts go-openai errors into *domain.UpstreamError.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return &domain.UpstreamError{Service: "openai", Status: reqErr.HTTPStatusCode, Message: msg}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		details := ""
		if apiErr.Type != "" {
			details = apiErr.Type
		}
		return &domain.UpstreamError{
			Service: "openai",
			Status:  apiErr.HTTPStatusCode,
			Message: apiErr.Message,
			Details: details,
		}
	}

	return fmt.Errorf("embedding request failed: %w", err)
}

func statusLabel(err error) string {
	var up *domain.UpstreamError
	if errors.As(err, &up) {
		return strconv.Itoa(up.Status)
	}
	return "transport_error"
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
