// Package apiclient issues authenticated requests against the portal REST API.
//
// Every call reads the bearer token fresh from the token store, injects it
// into that request only and reports failures as *serviceerr.Error. Nothing
// is retried; retrying is left to the caller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/serviceerr"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultUploadField = "image"

	instrumentationName = "github.com/openkcm/session-client/internal/apiclient"
	maxErrorBodySize    = 1 << 20
)

// TokenSource yields the current bearer token.
type TokenSource interface {
	Retrieve(ctx context.Context) (string, bool)
}

type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	tokens      TokenSource
	timeout     time.Duration
	uploadField string

	tracer  trace.Tracer
	counter metric.Int64Counter
	hist    metric.Int64Histogram
}

type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient. The client must not carry an
// Authorization header of its own.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout sets the per-request ceiling. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUploadField sets the default multipart field name for files.
func WithUploadField(field string) Option {
	return func(c *Client) {
		if field != "" {
			c.uploadField = field
		}
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}

	c := &Client{
		baseURL:     u,
		httpClient:  http.DefaultClient,
		tokens:      tokens,
		timeout:     DefaultTimeout,
		uploadField: DefaultUploadField,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if err := c.initTelemetry(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) initTelemetry() error {
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion(otel.Version()))

	var err error
	c.counter, err = meter.Int64Counter(
		"http.client.request_count",
		metric.WithDescription("Outgoing API request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return fmt.Errorf("creating request_count meter: %w", err)
	}

	c.hist, err = meter.Int64Histogram(
		"http.client.duration",
		metric.WithDescription("Outgoing API request duration"),
		metric.WithUnit("milliseconds"),
	)
	if err != nil {
		return fmt.Errorf("creating duration meter: %w", err)
	}

	c.tracer = otel.Tracer(instrumentationName)

	return nil
}

type callOptions struct {
	timeout time.Duration
	header  http.Header
	query   url.Values
}

type CallOption func(*callOptions)

// WithCallTimeout overrides the client timeout for one call. Non-positive
// values are ignored.
func WithCallTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a request header. Authorization and Content-Type are
// always set by the client and cannot be overridden.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) { o.header.Add(key, value) }
}

// WithQuery adds query parameters to the request URL.
func WithQuery(query url.Values) CallOption {
	return func(o *callOptions) {
		for k, vs := range query {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// Call sends an authenticated request and returns the raw response body of a
// 2xx response. body is JSON encoded, unless it is a File or *File which is
// sent as multipart/form-data. Without a stored token Call fails with
// serviceerr.KindAuthRequired before touching the network.
func (c *Client) Call(ctx context.Context, method, path string, body any, opts ...CallOption) ([]byte, error) {
	o := callOptions{timeout: c.timeout, header: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	requestID := uuid.NewString()
	ctx = slogctx.With(ctx,
		commoncfg.AttrRequestID, requestID,
		commoncfg.AttrOperation, method+" "+path,
	)

	token, ok := c.tokens.Retrieve(ctx)
	if !ok {
		slogctx.Info(ctx, "No session token, refusing to send the request")
		return nil, serviceerr.AuthRequired().WithToken("")
	}

	reqBody, contentType, err := c.encodeBody(body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, o.query), reqBody)
	if err != nil {
		return nil, serviceerr.New(serviceerr.KindValidation, "Invalid request", err)
	}

	for k, vs := range o.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else {
		req.Header.Del("Content-Type")
	}
	req.Header.Set("X-Request-ID", requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	respBody, status, err := c.send(req)
	c.record(ctx, method, status, time.Since(start))

	if err != nil {
		span.SetStatus(codes.Error, serviceerr.Normalize(err))
		slogctx.Warn(ctx, "Request failed", "error", err)

		var svcErr *serviceerr.Error
		if errors.As(err, &svcErr) {
			svcErr.WithToken(token)
		}

		return nil, err
	}

	slogctx.Debug(ctx, "Request succeeded", "status", status)

	return respBody, nil
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, transportError(req.Context(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, resp.StatusCode, serviceerr.HTTP(resp.StatusCode, backendMessage(data))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, transportError(req.Context(), err)
	}

	return data, resp.StatusCode, nil
}

func (c *Client) record(ctx context.Context, method string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", status),
	)

	c.counter.Add(ctx, 1, attrs)
	c.hist.Record(ctx, elapsed.Milliseconds(), attrs)
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

func (c *Client) encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case File:
		return c.encodeMultipart(&b)
	case *File:
		if b == nil {
			return nil, "", nil
		}
		return c.encodeMultipart(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", serviceerr.New(serviceerr.KindValidation, "Invalid request body", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// transportError classifies a failure of the round trip itself.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return serviceerr.Timeout(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return serviceerr.Timeout(err)
	}

	if errors.Is(err, context.Canceled) {
		return serviceerr.New(serviceerr.KindNetwork, "The request was cancelled", err)
	}

	return serviceerr.Network(err)
}

// backendMessage extracts the message field of an error envelope.
func backendMessage(data []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}

	return envelope.Message
}
