package dispatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/webmip/postbank/internal/logging"
)

const (
	// MaxResponseSize limits response body to 50MB to prevent memory exhaustion
	MaxResponseSize = 50 * 1024 * 1024

	// DefaultTimeout bounds a single request on either transport.
	DefaultTimeout = 30 * time.Second

	// SchemeHeader carries the target scheme to the proxy, which otherwise
	// assumes https.
	SchemeHeader = "X-Postbank-Scheme"

	// ProxyPrefix is the route the proxy serves.
	ProxyPrefix = "/proxy/"
)

// Call is one outgoing request as handed to a transport.
type Call struct {
	Method  string
	URL     *url.URL
	Headers map[string]string
	Body    string
}

// Result is a raw response. Any status code is a valid result.
type Result struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Body       []byte
}

// Transport executes a Call. Errors are reserved for failures to complete
// the exchange at all.
type Transport interface {
	Name() string
	Available() bool
	Do(ctx context.Context, call Call) (*Result, error)
}

// LocalTransport sends requests directly from this process.
type LocalTransport struct {
	client  *http.Client
	enabled bool
	logger  *slog.Logger
}

// NewLocalTransport returns a direct transport. enabled=false makes it
// unavailable, forcing selection of the next transport.
func NewLocalTransport(timeout time.Duration, enabled bool, logger *slog.Logger) *LocalTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LocalTransport{
		client:  &http.Client{Timeout: timeout},
		enabled: enabled,
		logger:  logging.OrNop(logger),
	}
}

func (t *LocalTransport) Name() string    { return "local" }
func (t *LocalTransport) Available() bool { return t.enabled }

func (t *LocalTransport) Do(ctx context.Context, call Call) (*Result, error) {
	return roundTrip(ctx, t.client, t.logger, call.Method, call.URL.String(), call.Headers, call.Body)
}

// ProxiedTransport forwards requests through a postbank proxy at
// <base>/proxy/<host><path>, with the scheme moved into SchemeHeader.
type ProxiedTransport struct {
	base   *url.URL
	client *http.Client
	logger *slog.Logger
}

// NewProxiedTransport returns a transport for the proxy at proxyURL. An
// empty proxyURL yields an unavailable transport.
func NewProxiedTransport(proxyURL string, timeout time.Duration, logger *slog.Logger) (*ProxiedTransport, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &ProxiedTransport{
		client: &http.Client{Timeout: timeout},
		logger: logging.OrNop(logger),
	}
	if proxyURL == "" {
		return t, nil
	}
	base, err := url.Parse(strings.TrimRight(proxyURL, "/"))
	if err != nil {
		return nil, err
	}
	t.base = base
	return t, nil
}

func (t *ProxiedTransport) Name() string    { return "proxy" }
func (t *ProxiedTransport) Available() bool { return t.base != nil }

// Rewrite returns the proxy route for target with its scheme stripped.
func (t *ProxiedTransport) Rewrite(target *url.URL) string {
	route := t.base.String() + ProxyPrefix + target.Host + target.EscapedPath()
	if target.RawQuery != "" {
		route += "?" + target.RawQuery
	}
	return route
}

func (t *ProxiedTransport) Do(ctx context.Context, call Call) (*Result, error) {
	headers := make(map[string]string, len(call.Headers)+1)
	for k, v := range call.Headers {
		headers[k] = v
	}
	headers[SchemeHeader] = call.URL.Scheme
	return roundTrip(ctx, t.client, t.logger, call.Method, t.Rewrite(call.URL), headers, call.Body)
}

func roundTrip(ctx context.Context, client *http.Client, logger *slog.Logger, method, reqURL string, headers map[string]string, body string) (*Result, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if host, ok := headers["Host"]; ok {
		req.Host = host
	}

	// Default Content-Type for requests with body
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(respBody)) > MaxResponseSize {
		respBody = respBody[:MaxResponseSize]
		logger.Warn("response body truncated", "limit_bytes", MaxResponseSize)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			respHeaders[key] = strings.Join(values, ", ")
		}
	}

	return &Result{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    respHeaders,
		Body:       respBody,
	}, nil
}

// statusText is the reason phrase from the status line.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
