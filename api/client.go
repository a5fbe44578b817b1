// Package api is the JSON-over-HTTP client shared by the upstreams this module
// calls. Failures come back as *Error values marked with a resilience.Kind so
// callers can choose what to retry.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/cyberfolio/folio-core/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

const tracerName = "github.com/cyberfolio/folio-core/api"

type Client struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
	tracer  trace.Tracer
	headers http.Header
}

type Error struct {
	URL      string
	Method   string
	Status   int
	Body     string
	TheError error
	TraceID  string
}

func (e *Error) Error() string {
	if e == nil || e.TheError == nil {
		return ""
	}
	return e.TheError.Error()
}

func (e *Error) Unwrap() error {
	return e.TheError
}

// NewError builds an *Error and marks it with the Kind its status or cause implies.
func NewError(url, method string, status int, body string, err error, traceID string) error {
	e := &Error{
		URL:      url,
		Method:   method,
		Status:   status,
		Body:     body,
		TheError: err,
		TraceID:  traceID,
	}
	return resilience.MarkKind(e, classify(status, err))
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

func New(log logger.Logger, baseURL string, opts ...Option) *Client {
	c := &Client{
		logger:  log,
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		tracer:  otel.Tracer(tracerName),
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func UserAgent() string {
	gitSHA := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitSHA = setting.Value
			}
		}
	}
	return "folio-core/" + Version + " (" + gitSHA + ")"
}

func classify(status int, err error) resilience.Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return resilience.KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return resilience.KindTimeout
	case status == http.StatusServiceUnavailable:
		return resilience.KindUnavailable
	case status >= 500:
		return resilience.KindServer
	case status != 0 || err == nil:
		return resilience.KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return resilience.KindTimeout
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) || strings.Contains(err.Error(), "EOF") {
		return resilience.KindNetwork
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return resilience.KindNetwork
	}
	return resilience.KindUnknown
}

// safeBodyPreview returns a safe preview of the response body for logging,
// preventing PII exposure by checking content-type and truncating or redacting sensitive data.
func safeBodyPreview(body []byte, contentType string, maxChars int) string {
	if maxChars == 0 {
		maxChars = 200
	}
	lowerContentType := strings.ToLower(contentType)

	safeTextTypes := []string{
		"text/", "application/json", "application/xml",
		"application/x-www-form-urlencoded",
	}
	isSafeText := contentType == ""
	for _, safeType := range safeTextTypes {
		if strings.Contains(lowerContentType, safeType) {
			isSafeText = true
			break
		}
	}
	if !isSafeText {
		hash := sha256.Sum256(body)
		return fmt.Sprintf("<%s: %d bytes, sha256=%s>", lowerContentType, len(body), hex.EncodeToString(hash[:8]))
	}

	bodyStr := string(body)
	if len(bodyStr) > maxChars {
		return bodyStr[:maxChars] + fmt.Sprintf("[truncated, total: %d chars]", len(bodyStr))
	}
	return bodyStr
}

func (c *Client) resolve(pathParam string) (*url.URL, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	if i := strings.Index(pathParam, "?"); i != -1 {
		u.RawQuery = pathParam[i+1:]
		pathParam = pathParam[:i]
	}
	basePath := u.Path
	if pathParam == "" {
		u.Path = basePath
	} else if basePath == "" || basePath == "/" {
		u.Path = pathParam
	} else {
		u.Path = path.Join(basePath, pathParam)
	}
	return u, nil
}

// Do sends payload as JSON and decodes a JSON response into response when it
// is non-nil. A response that is not JSON is returned through a *[]byte.
func (c *Client) Do(ctx context.Context, method, pathParam string, payload any, response any) (err error) {
	u, err := c.resolve(pathParam)
	if err != nil {
		return NewError(c.baseURL, method, 0, "", errors.Wrap(err, "error parsing base url"), "")
	}

	ctx, span := c.tracer.Start(ctx, method+" "+u.Host+u.Path, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method), attribute.String("server.address", u.Host)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body []byte
	if payload != nil {
		if body, err = json.Marshal(payload); err != nil {
			return NewError(u.String(), method, 0, "", errors.Wrap(err, "error marshalling payload"), "")
		}
	}
	c.logger.Trace("sending request: %s %s", method, u.String())

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return NewError(u.String(), method, 0, "", errors.Wrap(err, "error creating request"), "")
	}
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewError(u.String(), method, 0, "", errors.Wrap(err, "error sending request"), "")
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("response status: %s", resp.Status)

	traceID := resp.Header.Get("traceparent")
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(u.String(), method, resp.StatusCode, "", errors.Wrap(err, "error reading response body"), traceID)
	}

	contentType := resp.Header.Get("content-type")
	preview := safeBodyPreview(respBody, contentType, 200)
	c.logger.Trace("response body: %s, content-type: %s", preview, contentType)

	if resp.StatusCode > 299 {
		return NewError(u.String(), method, resp.StatusCode, preview, errors.Newf("request failed with status %d: %s", resp.StatusCode, preview), traceID)
	}

	switch r := response.(type) {
	case nil:
	case *[]byte:
		*r = respBody
	default:
		if err := json.Unmarshal(respBody, response); err != nil {
			return NewError(u.String(), method, resp.StatusCode, preview, errors.Wrap(err, "error JSON decoding response"), traceID)
		}
	}
	return nil
}
