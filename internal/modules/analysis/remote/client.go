// Package remote talks to the comment analysis service. Every call is a
// single attempt under a hard deadline; whether to retry is the caller's
// decision. The service answers in one of two body shapes and both are
// reduced to models.AnalysisResult before anything downstream sees them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/pkg/envelope"
)

const (
	analyzeTimeout = 30 * time.Second
	healthTimeout  = 10 * time.Second
)

// Client issues requests against the analysis service named by the
// settings record passed to each call. It holds no base URL of its own so
// a settings change takes effect on the very next request.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout overrides the per-request deadline for analyze calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		timeout: analyzeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze sends the batch to POST {apiUrl}/analyze and normalizes the
// response. The batch is truncated to the first settings.MaxComments
// entries before anything else happens; an empty batch returns
// KindNoComments without touching the network.
func (c *Client) Analyze(ctx context.Context, settings config.Settings, batch Batch) (*models.AnalysisResult, error) {
	comments := batch.Comments
	if settings.MaxComments > 0 && len(comments) > settings.MaxComments {
		comments = comments[:settings.MaxComments]
	}
	if len(comments) == 0 {
		return nil, envelope.NewError(envelope.KindNoComments, "")
	}

	body, err := json.Marshal(analyzeRequest{
		Comments:   comments,
		VideoID:    batch.ContentID,
		VideoTitle: batch.Title,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.AnalyzeEndpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, envelope.NewError(envelope.KindServiceUnreachable, "")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, envelope.NewServiceError(resp.StatusCode)
	}

	return parseResult(respBody, batch, len(comments))
}

// Health probes GET {apiUrl}/health. The caller decides what an
// unreachable service means to the user.
func (c *Client) Health(ctx context.Context, settings config.Settings) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, settings.HealthEndpoint(), nil)
	if err != nil {
		return nil, envelope.NewError(envelope.KindServiceUnreachable, "")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, envelope.NewServiceError(resp.StatusCode)
	}

	var status HealthStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, envelope.NewError(envelope.KindMalformedResponse, "")
	}
	return &status, nil
}

// classifyTransport separates a blown deadline from every other transport
// failure. Both the context error and net.Error timeout flag are checked
// since the http client reports them differently depending on where the
// request died.
func classifyTransport(err error) *envelope.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return envelope.NewError(envelope.KindTimeout, "")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return envelope.NewError(envelope.KindTimeout, "")
	}
	return envelope.NewError(envelope.KindServiceUnreachable, "")
}
