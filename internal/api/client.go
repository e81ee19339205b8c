// Package api is the typed client for the storefront backend REST API.
package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBaseURL is the hosted backend the storefront was built against.
const DefaultBaseURL = "https://fsd-backend-demo-b17.onrender.com/api"

// TokenSource yields the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	log            *zap.Logger
	metrics        *metrics.API
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the HTTP timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(m *metrics.API) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUnauthorizedHandler registers fn to run when an authenticated call gets a 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     zap.L(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("api")
	return c
}

// BaseURL returns the backend root every path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, op, method, path string, authed bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s: encode request", op)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)
	if authed {
		token := ""
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return apperr.Auth(op, "not logged in")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Observe(op, 0, time.Since(start))
		c.log.Warn("request failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return apperr.Network(op, err)
	}
	defer resp.Body.Close()
	c.metrics.Observe(op, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Network(op, err)
	}

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		c.log.Debug("request rejected",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		if authed && resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apperr.FromStatus(op, resp.StatusCode, msg)
	}

	c.log.Debug("request ok",
		zap.String("op", op),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := decodeEnvelope(data, out); err != nil {
		return &apperr.Error{Kind: apperr.KindServer, Op: op, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// decodeEnvelope accepts either {"data": ...} or the bare object.
func decodeEnvelope(data []byte, out any) error {
	var env map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &env); err == nil {
		if inner, ok := env["data"]; ok {
			if len(inner) == 0 || string(inner) == "null" {
				return nil
			}
			return json.Unmarshal(inner, out)
		}
	}
	return json.Unmarshal(data, out)
}
