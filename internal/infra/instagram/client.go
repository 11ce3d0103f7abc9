// Package instagram is the Meta Graph API adapter used to resolve reels.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/infra/scheduler"
	"reel-relay/internal/observability/tracing"
	"reel-relay/internal/resilience/circuitbreaker"
	"reel-relay/internal/resilience/retry"
)

const mediaFields = "id,media_type,media_product_type,permalink,media_url,timestamp,caption"

// maxErrorBody bounds how much of an error response ends up in error messages.
const maxErrorBody = 512

// Config holds the Graph API connection settings.
type Config struct {
	BaseURL     string
	Version     string
	AccessToken string
	// Timeout applies to each HTTP request.
	Timeout time.Duration
}

// Client resolves Instagram media through the Graph API. Every HTTP request
// is submitted to the shared Meta scheduler, so concurrent callers and inner
// retries are paced together.
type Client struct {
	cfg       Config
	http      *http.Client
	scheduler *scheduler.Scheduler
	breaker   *circuitbreaker.CircuitBreaker
	retry     retry.Config
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry replaces retry.GraphAPIConfig; tests use it to skip the waits.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithCircuitBreaker replaces the default Graph API breaker.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func NewClient(cfg Config, sched *scheduler.Scheduler, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:       cfg,
		http:      &http.Client{},
		scheduler: sched,
		breaker:   circuitbreaker.New(circuitbreaker.GraphAPIConfig()),
		retry:     retry.GraphAPIConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breaker exposes the Graph API circuit breaker for health reporting.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker { return c.breaker }

// graphMedia is the subset of the media node the relay reads.
type graphMedia struct {
	ID               string  `json:"id"`
	MediaType        *string `json:"media_type"`
	MediaProductType *string `json:"media_product_type"`
	Permalink        *string `json:"permalink"`
	MediaURL         *string `json:"media_url"`
	Timestamp        *string `json:"timestamp"`
	Caption          *string `json:"caption"`
}

type oEmbedResponse struct {
	MediaID string `json:"media_id"`
}

// GetByID fetches one media node. 429 and 5xx responses are retried with
// retry.GraphAPIConfig before the error is returned.
func (c *Client) GetByID(ctx context.Context, mediaID string) (*entity.Media, error) {
	ctx, span := tracing.Start(ctx, "instagram.GetByID", attribute.String("media_id", mediaID))
	defer span.End()

	endpoint, err := c.endpoint(url.PathEscape(mediaID), url.Values{"fields": {mediaFields}})
	if err != nil {
		return nil, err
	}

	var body []byte
	err = retry.WithAttempts(ctx, c.retry, func(attempt int) error {
		b, status, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			if retry.IsRetryableStatus(&retry.HTTPError{StatusCode: status}) && attempt < c.retry.MaxAttempts {
				slog.Warn("Graph API returned retryable status; backing off",
					slog.Int("status", status),
					slog.Int("attempt", attempt))
			}
			return &retry.HTTPError{StatusCode: status, Message: truncate(string(b))}
		}
		body = b
		return nil
	})
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("graph media %s: %w", mediaID, err)
	}

	m, err := parseMedia(body)
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("graph media %s: %w", mediaID, err)
	}
	return m, nil
}

// GetByReelURL resolves a reel URL via oEmbed. A non-2xx response, an
// unparseable body or an empty media_id all mean "not found" and yield
// (nil, nil); only transport failures are errors.
func (c *Client) GetByReelURL(ctx context.Context, reelURL string) (*entity.Media, error) {
	ctx, span := tracing.Start(ctx, "instagram.GetByReelURL")
	defer span.End()

	endpoint, err := c.endpoint("instagram_oembed", url.Values{"url": {reelURL}})
	if err != nil {
		return nil, err
	}

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("graph oembed: %w", err)
	}
	if status < 200 || status >= 300 {
		slog.Warn("Graph API oEmbed endpoint returned non-OK response", slog.Int("status", status))
		return nil, nil
	}

	var oe oEmbedResponse
	if err := json.Unmarshal(body, &oe); err != nil {
		return nil, nil
	}
	if strings.TrimSpace(oe.MediaID) == "" {
		return nil, nil
	}
	return c.GetByID(ctx, oe.MediaID)
}

// get performs one scheduled, breaker-guarded GET and returns the body and
// status. Non-2xx responses are not errors at this level.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	type response struct {
		body   []byte
		status int
	}
	res, err := scheduler.Do(ctx, c.scheduler, func(ctx context.Context) (response, error) {
		return circuitbreaker.Call(c.breaker, func() (response, error) {
			reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
			if err != nil {
				return response{}, fmt.Errorf("create http request: %w", err)
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return response{}, fmt.Errorf("execute http request: %w", redact(err))
			}
			defer func() { _ = resp.Body.Close() }()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return response{}, fmt.Errorf("read response: %w", err)
			}
			out := response{body: body, status: resp.StatusCode}
			// ブレーカーに 5xx/429 を失敗として数えさせる
			if retry.IsRetryableStatus(&retry.HTTPError{StatusCode: resp.StatusCode}) {
				return out, &retry.HTTPError{StatusCode: resp.StatusCode, Message: truncate(string(body))}
			}
			return out, nil
		})
	})
	if err != nil {
		var httpErr *retry.HTTPError
		if errors.As(err, &httpErr) {
			return []byte(httpErr.Message), httpErr.StatusCode, nil
		}
		return nil, 0, err
	}
	return res.body, res.status, nil
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	version := strings.Trim(c.cfg.Version, "/")
	u, err := url.Parse(base + "/" + version + "/" + path)
	if err != nil {
		return "", fmt.Errorf("build graph url: %w", err)
	}
	query.Set("access_token", c.cfg.AccessToken)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func parseMedia(body []byte) (*entity.Media, error) {
	var gm graphMedia
	if err := json.Unmarshal(body, &gm); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	if gm.ID == "" {
		return nil, fmt.Errorf("media payload missing id")
	}
	if gm.Permalink == nil || *gm.Permalink == "" {
		return nil, fmt.Errorf("media payload missing permalink for mediaId=%s", gm.ID)
	}

	m := &entity.Media{
		MediaID:   gm.ID,
		MediaType: "UNKNOWN",
		Permalink: *gm.Permalink,
		MediaURL:  gm.MediaURL,
		Caption:   gm.Caption,
		Raw:       json.RawMessage(body),
	}
	if gm.MediaType != nil {
		m.MediaType = *gm.MediaType
	}
	if gm.MediaProductType != nil {
		m.ProductType = *gm.MediaProductType
	}
	if gm.Timestamp != nil {
		if ts, ok := parseTimestamp(*gm.Timestamp); ok {
			m.Timestamp = &ts
		}
	}
	return m, nil
}

// parseTimestamp accepts RFC 3339 and the Graph API's "+0000" offset form.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody]
}

// redact strips the request URL, which carries the access token, from
// transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
