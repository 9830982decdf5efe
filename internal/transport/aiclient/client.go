// Package aiclient calls the external classification/embeddings service.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/metrics"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

const (
	classifyPath   = "/api/v2/classify"
	embeddingsPath = "/api/v2/embeddings"
	serviceName    = "ai"
	maxErrorBody   = 64 << 10
)

// ConfigSource provides the current settings snapshot.
type ConfigSource interface {
	Get(ctx context.Context) (*settings.Snapshot, error)
}

// Embedding is a vector produced by the service.
type Embedding struct {
	Vector []float32
	Dim    int
}

// Client is the AI service client. Host and token are read from the settings
// cache on every call, so changes take effect without a restart. Responses are never cached.
type Client struct {
	http   *http.Client
	config ConfigSource
	logger *zap.Logger
}

// New creates a Client. httpClient should carry the retrying transport.
func New(httpClient *http.Client, config ConfigSource, logger *zap.Logger) *Client {
	return &Client{http: httpClient, config: config, logger: logger}
}

type classifyRequest struct {
	Text         string   `json:"text"`
	Labels       []string `json:"labels"`
	UseInference bool     `json:"use_inference"`
}

type classifyResponse struct {
	Result struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	} `json:"result"`
}

type embeddingsRequest struct {
	Text         string `json:"text"`
	UseInference bool   `json:"use_inference"`
}

type embeddingsResponse struct {
	Result struct {
		Embedding []float32 `json:"embedding"`
		Dim       int       `json:"dim"`
	} `json:"result"`
}

type errorResponse struct {
	Error struct {
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// Classify scores candidate labels against text.
func (c *Client) Classify(ctx context.Context, text string, labels []string, useInference bool) (domain.Classification, error) {
	var resp classifyResponse
	err := c.post(ctx, "classify", classifyPath, classifyRequest{
		Text:         text,
		Labels:       labels,
		UseInference: useInference,
	}, &resp)
	if err != nil {
		return domain.Classification{}, err
	}

	if len(resp.Result.Labels) != len(resp.Result.Scores) {
		return domain.Classification{}, fmt.Errorf("classify: %d labels but %d scores: %w",
			len(resp.Result.Labels), len(resp.Result.Scores), domain.ErrUpstream)
	}
	c.logger.Debug("Classification received",
		zap.Strings("labels", resp.Result.Labels),
		zap.Float64s("scores", resp.Result.Scores),
	)
	return domain.Classification{Labels: resp.Result.Labels, Scores: resp.Result.Scores}, nil
}

// Embeddings returns the embedding vector of text.
func (c *Client) Embeddings(ctx context.Context, text string, useInference bool) (Embedding, error) {
	var resp embeddingsResponse
	err := c.post(ctx, "embeddings", embeddingsPath, embeddingsRequest{
		Text:         text,
		UseInference: useInference,
	}, &resp)
	if err != nil {
		return Embedding{}, err
	}

	if len(resp.Result.Embedding) == 0 {
		return Embedding{}, fmt.Errorf("embeddings: empty vector: %w", domain.ErrUpstream)
	}
	dim := resp.Result.Dim
	if dim == 0 {
		dim = len(resp.Result.Embedding)
	}
	return Embedding{Vector: resp.Result.Embedding, Dim: dim}, nil
}

// Embed implements domain.Embedder, honouring the tagger:inference:enable setting.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	snap, err := c.config.Get(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("load settings: %w", err)
	}
	emb, err := c.Embeddings(ctx, text, snap.TaggerInference)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: emb.Vector}, nil
}

// HealthCheck reports whether the service host is configured and answers HTTP.
// Any HTTP answer counts as reachable; only transport failures are errors.
func (c *Client) HealthCheck(ctx context.Context) error {
	host, _, err := c.endpoint(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, host, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ai service unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) endpoint(ctx context.Context) (host, token string, err error) {
	snap, err := c.config.Get(ctx)
	if err != nil {
		return "", "", fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(snap.AIHost) == "" {
		return "", "", domain.NewConfigurationError(settings.KeyAIHost, "AI host not configured")
	}
	return snap.AIHost, snap.AIToken, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	host, token, err := c.endpoint(ctx)
	if err != nil {
		c.logger.Warn("AI host not configured, ignoring request", zap.String("op", op))
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.AIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.AIRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upErr := parseError(resp)
		c.logger.Warn("AI service returned an error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", upErr.Message),
		)
		return upErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// parseError builds an UpstreamError from an {error:{message,details}} body,
// falling back to the raw body text.
func parseError(resp *http.Response) *domain.UpstreamError {
	upErr := &domain.UpstreamError{Service: serviceName, Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && !errors.Is(err, io.EOF) {
		upErr.Message = http.StatusText(resp.StatusCode)
		return upErr
	}

	var parsed errorResponse
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		upErr.Message = parsed.Error.Message
		if d := strings.TrimSpace(string(parsed.Error.Details)); d != "" && d != "null" {
			upErr.Details = strings.Trim(d, `"`)
		}
		return upErr
	}

	upErr.Message = strings.TrimSpace(string(data))
	if upErr.Message == "" {
		upErr.Message = http.StatusText(resp.StatusCode)
	}
	return upErr
}
