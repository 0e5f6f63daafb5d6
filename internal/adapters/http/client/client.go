// Package client is a typed REST client for the health review API. The
// remote presenter uses it as its data source.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	service "github.com/okian/healthreview/internal/app"
	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/types"
)

const defaultTimeout = 10 * time.Second

// ErrUnexpectedStatus is returned for replies the client cannot classify.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client wraps http.Client with the API's routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates a client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clients implements GET /clients.
func (c *Client) Clients(ctx context.Context) ([]model.Client, error) {
	var out []model.Client
	return out, c.do(ctx, http.MethodGet, "/clients", nil, nil, &out)
}

// Metrics implements GET /metrics.
func (c *Client) Metrics(ctx context.Context) ([]model.Metric, error) {
	var out []model.Metric
	return out, c.do(ctx, http.MethodGet, "/metrics", nil, nil, &out)
}

// Users implements GET /users.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var out []model.User
	return out, c.do(ctx, http.MethodGet, "/users", nil, nil, &out)
}

// Schedule implements GET /schedule.
func (c *Client) Schedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	var out []model.ScheduleEntry
	return out, c.do(ctx, http.MethodGet, "/schedule", nil, nil, &out)
}

// ReplaceSchedule implements PUT /schedule.
func (c *Client) ReplaceSchedule(ctx context.Context, entries []model.ScheduleEntry) error {
	return c.do(ctx, http.MethodPut, "/schedule", nil, entries, nil)
}

// Reports implements GET /reports.
func (c *Client) Reports(ctx context.Context, week model.Week) ([]model.WeeklyReport, error) {
	var out []model.WeeklyReport
	q := url.Values{"week": {week.String()}}
	return out, c.do(ctx, http.MethodGet, "/reports", q, nil, &out)
}

// SetScore implements PUT /scores. A request id is generated when missing so
// retries of the same call stay idempotent.
func (c *Client) SetScore(ctx context.Context, change types.ScoreChange) (types.ScoreChangeAck, error) {
	if change.RequestID == "" {
		change.RequestID = uuid.NewString()
	}
	var ack types.ScoreChangeAck
	return ack, c.do(ctx, http.MethodPut, "/scores", nil, change, &ack)
}

// Sequence implements GET /sequence.
func (c *Client) Sequence(ctx context.Context, week model.Week) (types.SequenceView, error) {
	var out types.SequenceView
	q := url.Values{"week": {week.String()}}
	return out, c.do(ctx, http.MethodGet, "/sequence", q, nil, &out)
}

// Summary implements GET /sequence/summary.
func (c *Client) Summary(ctx context.Context, week model.Week, position int) (health.Slide, error) {
	var out health.Slide
	q := url.Values{"week": {week.String()}, "position": {strconv.Itoa(position)}}
	return out, c.do(ctx, http.MethodGet, "/sequence/summary", q, nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// decodeError maps an error body back onto the service's sentinel kinds.
func decodeError(status int, data []byte) error {
	var e types.ErrorResponse
	if err := json.Unmarshal(data, &e); err != nil || e.Code == "" {
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, status, strings.TrimSpace(string(data)))
	}

	var kind error
	switch e.Code {
	case "bad_request":
		kind = service.ErrInvalidRequest
	case "not_found":
		kind = service.ErrNotFound
	case "not_applicable":
		kind = service.ErrNotApplicable
	case "backpressure":
		kind = service.ErrBackpressure
	case "timeout":
		kind = context.DeadlineExceeded
	default:
		kind = ErrUnexpectedStatus
	}
	return fmt.Errorf("%w: %s", kind, e.Message)
}
