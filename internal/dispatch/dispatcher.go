// Package dispatch executes requests and normalizes every outcome, including
// transport failures, into one Response shape.
//
// Dispatch validates the target, injects stored cookies, records a request
// log entry and hands the call to the first available transport. Non-2xx
// statuses are ordinary responses. A failure to complete the exchange
// becomes a status-0 Response whose data carries the message and a code.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/webmip/postbank/internal/auth"
	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/logging"
	"github.com/webmip/postbank/internal/model"
	"github.com/webmip/postbank/internal/resolver"
)

// Mode constrains transport selection.
type Mode string

const (
	// ModeAuto uses the local transport, falling back to the proxy.
	ModeAuto Mode = "auto"
	// ModeLocal never uses the proxy.
	ModeLocal Mode = "local"
	// ModeProxy always uses the proxy.
	ModeProxy Mode = "proxy"
)

// ParseMode validates a mode name. Empty means ModeAuto.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, true
	case ModeAuto, ModeLocal, ModeProxy:
		return m, true
	default:
		return "", false
	}
}

// State is the slice of the store the dispatcher reads and writes.
type State interface {
	CookiesForDomain(domain string) []model.Cookie
	Preferences() model.Preferences
	AddLog(entry model.RequestLog)
}

// History records executed requests.
type History interface {
	ActiveEnvironment() *model.Environment
	AddToHistory(req model.Request, resp model.Response) ([]model.HistoryEntry, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logging.OrNop(l) }
}

// WithTimeout bounds each request on both transports.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMode constrains transport selection.
func WithMode(m Mode) Option {
	return func(d *Dispatcher) { d.mode = m }
}

// WithProxyURL sets the base URL of a postbank proxy.
func WithProxyURL(u string) Option {
	return func(d *Dispatcher) { d.proxyURL = u }
}

// WithIPLookupURL overrides the public IP lookup endpoint.
func WithIPLookupURL(u string) Option {
	return func(d *Dispatcher) {
		if u != "" {
			d.ipLookupURL = u
		}
	}
}

// WithTransports replaces the default transport chain.
func WithTransports(ts ...Transport) Option {
	return func(d *Dispatcher) { d.transports = ts }
}

// Dispatcher selects a transport and normalizes outcomes.
type Dispatcher struct {
	state       State
	logger      *slog.Logger
	timeout     time.Duration
	mode        Mode
	proxyURL    string
	ipLookupURL string
	ipClient    *http.Client
	transports  []Transport
	now         func() time.Time
}

// New builds a Dispatcher over state. Unless WithTransports is given the
// chain is [local, proxied], filtered by mode.
func New(state State, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		state:       state,
		logger:      logging.Nop(),
		timeout:     DefaultTimeout,
		mode:        ModeAuto,
		ipLookupURL: DefaultIPLookupURL,
		ipClient:    &http.Client{Timeout: ipLookupTimeout},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.transports == nil {
		local := NewLocalTransport(d.timeout, d.mode != ModeProxy, d.logger)
		proxyURL := d.proxyURL
		if d.mode == ModeLocal {
			proxyURL = ""
		}
		proxied, err := NewProxiedTransport(proxyURL, d.timeout, d.logger)
		if err != nil {
			return nil, errdef.InvalidInput("dispatch", "invalid proxy URL %q: %v", d.proxyURL, err)
		}
		d.transports = []Transport{local, proxied}
	}
	return d, nil
}

// Transport returns the transport the next dispatch would use, or nil.
func (d *Dispatcher) Transport() Transport {
	for _, t := range d.transports {
		if t.Available() {
			return t
		}
	}
	return nil
}

// Dispatch sends one request. It returns an error only for problems found
// before any network action (bad method, unusable URL, no transport);
// everything after that, including transport failures, is a Response.
func (d *Dispatcher) Dispatch(ctx context.Context, method, rawURL string, headers map[string]string, body string) (*model.Response, error) {
	start := d.now()

	m, ok := model.ParseMethod(method)
	if !ok {
		return nil, errdef.InvalidInput("dispatch", "unsupported method %q", method)
	}
	t, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}
	transport := d.Transport()
	if transport == nil {
		return nil, errdef.InvalidInput("dispatch", "no transport available (mode %s, proxy URL %q)", d.mode, d.proxyURL)
	}
	warnTarget(d.logger, t)

	final := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		final[k] = v
	}
	if cookie := cookieHeader(d.state.CookiesForDomain(t.domain)); cookie != "" {
		for k := range final {
			if strings.EqualFold(k, "Cookie") {
				delete(final, k)
			}
		}
		final["Cookie"] = cookie
	}

	entry := model.RequestLog{
		Timestamp: start.UnixMilli(),
		Method:    string(m),
		URL:       t.url.String(),
		Headers:   final,
		Body:      body,
	}
	if d.state.Preferences().EnrichLogWithIP {
		ip, err := lookupIP(ctx, d.ipClient, d.ipLookupURL)
		if err != nil {
			d.logger.Warn("failed to resolve public IP", "error", err)
		} else {
			entry.IP = ip
		}
	}
	d.state.AddLog(entry)

	d.logger.Debug("dispatching request", "method", m, "url", t.url.Redacted(), "transport", transport.Name())
	result, err := transport.Do(ctx, Call{Method: string(m), URL: t.url, Headers: final, Body: body})
	elapsed := d.now().Sub(start).Milliseconds()

	if err != nil {
		terr := errdef.Transport("dispatch", err)
		d.logger.Info("request failed", "method", m, "url", t.url.Redacted(), "error", terr)
		return failureResponse(err, elapsed), nil
	}

	data := normalizeBody(result.Body)
	headersOut := result.Headers
	if headersOut == nil {
		headersOut = map[string]string{}
	}
	return &model.Response{
		Status:     result.Status,
		StatusText: result.StatusText,
		Headers:    headersOut,
		Data:       data,
		Time:       elapsed,
		Size:       len(data),
	}, nil
}

// SendOptions tunes Send.
type SendOptions struct {
	// SkipHistory leaves the history untouched.
	SkipHistory bool
}

// Send composes req against the active environment and dispatches it:
// variables are resolved in the URL, enabled header values and the body,
// the auth descriptor is applied and the body is dropped for GET. The
// request is recorded in history in its unresolved form, named after its
// URL when unnamed.
//
// A history write failure is returned alongside the response.
func (d *Dispatcher) Send(ctx context.Context, history History, req model.Request, opts SendOptions) (*model.Response, error) {
	env := history.ActiveEnvironment()

	// Resolve every field once, then let the auth descriptor rewrite
	// headers and query from already-resolved values.
	composed := req.Clone()
	composed.URL = resolver.Resolve(composed.URL, env)
	resolved := make(model.Headers, len(composed.Headers))
	for k, v := range composed.Headers.Enabled() {
		resolved[k] = model.HeaderValue{Value: resolver.Resolve(v, env), Enabled: true}
	}
	composed.Headers = resolved
	if composed.Auth != nil {
		a := *composed.Auth
		a.Username = resolver.Resolve(a.Username, env)
		a.Password = resolver.Resolve(a.Password, env)
		a.Token = resolver.Resolve(a.Token, env)
		a.APIKey = resolver.Resolve(a.APIKey, env)
		a.APIValue = resolver.Resolve(a.APIValue, env)
		composed.Auth = &a
	}
	composed = auth.Apply(composed)

	headers := composed.Headers.Enabled()
	body := ""
	if composed.Method != model.MethodGet {
		body = resolver.Resolve(composed.Body, env)
	}

	resp, err := d.Dispatch(ctx, string(composed.Method), composed.URL, headers, body)
	if err != nil {
		return nil, err
	}
	if opts.SkipHistory {
		return resp, nil
	}

	executed := req.Executed()
	if executed.Name == "" {
		executed.Name = executed.URL
	}
	if _, err := history.AddToHistory(executed, *resp); err != nil {
		d.logger.Warn("failed to record history", "error", err)
		return resp, err
	}
	return resp, nil
}

// cookieHeader joins enabled cookies as name=value pairs.
func cookieHeader(cookies []model.Cookie) string {
	var parts []string
	for _, c := range cookies {
		if c.Enabled {
			parts = append(parts, c.Name+"="+c.Value)
		}
	}
	return strings.Join(parts, "; ")
}

// normalizeBody returns body as compact JSON when it is JSON, otherwise as
// a JSON string.
func normalizeBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.Bytes()
		}
	}
	return encodeString(string(body))
}

func encodeString(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// failureResponse is the status-0 shape for a transport failure.
func failureResponse(err error, elapsed int64) *model.Response {
	message := err.Error()
	data, _ := json.Marshal(model.ErrorBody{
		Error:   requestErrName,
		Message: message,
		Code:    errorCode(err),
	})
	return &model.Response{
		Status:     0,
		StatusText: message,
		Headers:    map[string]string{},
		Data:       data,
		Time:       elapsed,
		Size:       len(data),
	}
}
