package httpretry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/metrics"
)

// Transport is an http.RoundTripper that retries requests per Policy.
// When retries are exhausted the last response is returned as-is, so callers
// handle the original failing status themselves.
type Transport struct {
	base   http.RoundTripper
	policy Policy
	logger *zap.Logger

	// newBackOff is replaced in tests.
	newBackOff func(Policy) backoff.BackOff
}

// New wraps base (http.DefaultTransport when nil) with retry behaviour.
func New(base http.RoundTripper, policy Policy, logger *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		base:   base,
		policy: policy.WithDefaults(),
		logger: logger,
		newBackOff: func(p Policy) backoff.BackOff {
			return newExponentialBackOff(p)
		},
	}
}

// NewClient returns an *http.Client whose transport retries per policy.
// timeout bounds each whole call, retries included (0 disables).
func NewClient(policy Policy, timeout time.Duration, logger *zap.Logger) *http.Client {
	return &http.Client{
		Transport: New(nil, policy, logger),
		Timeout:   timeout,
	}
}

// statusError marks a response whose status is in the retry list.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return "retryable status " + strconv.Itoa(e.status)
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody, err := bodyFactory(req)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	attempt := 0
	var prev *http.Response

	op := func() (*http.Response, error) {
		discard(prev)
		prev = nil

		r, err := t.attemptRequest(req, getBody, attempt)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		attempt++

		resp, err := t.base.RoundTrip(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if !t.policy.retryable(resp.StatusCode) {
			return resp, nil
		}
		prev = resp
		return resp, &statusError{status: resp.StatusCode}
	}

	notify := func(err error, wait time.Duration) {
		status := "0"
		var se *statusError
		if errors.As(err, &se) {
			status = strconv.Itoa(se.status)
		}
		metrics.HTTPRetriesTotal.WithLabelValues(req.URL.Host, status).Inc()
		t.logger.Debug("Retrying outbound request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(t.newBackOff(t.policy)),
		backoff.WithMaxTries(uint(t.policy.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)

	var se *statusError
	if errors.As(err, &se) {
		t.logger.Warn("Outbound request failed after retries",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", se.status),
			zap.Int("attempts", attempt),
		)
		return resp, nil
	}
	if err != nil {
		discard(prev)
		return nil, err
	}
	return resp, nil
}

// attemptRequest returns the request for the given attempt. The first attempt
// sends the caller's request unchanged unless its body had to be buffered.
func (t *Transport) attemptRequest(req *http.Request, getBody func() (io.ReadCloser, error), attempt int) (*http.Request, error) {
	if getBody == nil {
		if attempt == 0 {
			return req, nil
		}
		return req.Clone(req.Context()), nil
	}
	if attempt == 0 && req.GetBody != nil {
		return req, nil
	}
	body, err := getBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

// bodyFactory returns a function producing fresh copies of the request body,
// or nil for bodiless requests. Bodies without GetBody are buffered once.
func bodyFactory(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
