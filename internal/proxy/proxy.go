// Package proxy forwards /proxy/<target> requests to their destination.
//
// It is the far end of the dispatcher's proxied transport: the target has
// no scheme in the path, so the scheme is read from the X-Postbank-Scheme
// header and defaults to https. A full http(s):// URL in the path is
// accepted too.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/webmip/postbank/internal/dispatch"
	"github.com/webmip/postbank/internal/logging"
)

// Hop-by-hop and proxy control headers never forwarded in either direction.
var strippedHeaders = []string{
	"Connection", "Proxy-Connection", "Proxy-Authenticate", "Proxy-Authorization",
	"Keep-Alive", "Te", "Trailer", "Trailers", "Transfer-Encoding", "Upgrade",
	dispatch.SchemeHeader,
}

// ErrorBody is written with status 500 when the upstream exchange fails.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler is the /proxy/ forwarder.
type Handler struct {
	client *http.Client
	logger *slog.Logger
}

// New returns a Handler whose upstream requests are bounded by timeout.
// Redirects are passed back to the caller rather than followed.
func New(timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = dispatch.DefaultTimeout
	}
	return &Handler{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logging.OrNop(logger),
	}
}

// Upstream builds the destination URL for an incoming proxy request.
func Upstream(r *http.Request) (*url.URL, error) {
	path := r.URL.EscapedPath()
	if !strings.HasPrefix(path, dispatch.ProxyPrefix) {
		return nil, errors.New("path must start with " + dispatch.ProxyPrefix)
	}
	rest := strings.TrimPrefix(path, dispatch.ProxyPrefix)

	scheme := "https"
	// Path cleaning may have collapsed "https://" to "https:/".
	for _, s := range []string{"https:", "http:"} {
		if strings.HasPrefix(strings.ToLower(rest), s) {
			scheme = strings.TrimSuffix(s, ":")
			rest = strings.TrimLeft(rest[len(s):], "/")
			break
		}
	}
	if h := strings.ToLower(r.Header.Get(dispatch.SchemeHeader)); h == "http" || h == "https" {
		scheme = h
	}

	host, p, _ := strings.Cut(rest, "/")
	if host == "" {
		return nil, errors.New("missing target host")
	}

	target, err := url.Parse(scheme + "://" + host + "/" + p)
	if err != nil {
		return nil, err
	}
	target.RawQuery = r.URL.RawQuery
	return target, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, err := Upstream(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	outReq.Header = r.Header.Clone()
	for _, name := range strippedHeaders {
		outReq.Header.Del(name)
	}
	outReq.ContentLength = r.ContentLength

	h.logger.Debug("proxying request", "method", r.Method, "target", target.Redacted())
	resp, err := h.client.Do(outReq)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	for _, name := range strippedHeaders {
		w.Header().Del(name)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("failed to relay response body", "target", target.Redacted(), "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("proxy error", "method", r.Method, "path", r.URL.Path, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(ErrorBody{Error: "proxy_error", Message: err.Error()})
}

// Serve runs h on addr until ctx is canceled, then shuts down gracefully.
// ready, if non-nil, receives the bound address once listening.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger, ready chan<- string) error {
	logger = logging.OrNop(logger)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("proxy listening", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("proxy stopped")
		return nil
	}
}
