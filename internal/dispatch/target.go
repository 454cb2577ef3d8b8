package dispatch

import (
	"log/slog"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/webmip/postbank/internal/errdef"
)

// target is a parsed, validated request URL.
type target struct {
	url    *url.URL
	domain string
}

// parseTarget validates rawURL before any network action. A URL without a
// scheme is treated as https.
func parseTarget(rawURL string) (*target, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, errdef.InvalidInput("dispatch", "URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, &errdef.Error{Kind: errdef.KindInvalidInput, Op: "dispatch", Message: "invalid URL", Cause: err}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, errdef.InvalidInput("dispatch", "unsupported URL scheme: %s (only http and https are allowed)", parsed.Scheme)
	}
	parsed.Scheme = scheme

	hostname := parsed.Hostname()
	if hostname == "" {
		return nil, errdef.InvalidInput("dispatch", "URL must have a hostname")
	}
	if isCloudMetadataEndpoint(hostname) {
		return nil, errdef.InvalidInput("dispatch", "blocked request to cloud metadata endpoint: %s", hostname)
	}

	domain, err := normalizeHost(hostname)
	if err != nil {
		return nil, &errdef.Error{Kind: errdef.KindInvalidInput, Op: "dispatch", Message: "invalid hostname", Cause: err}
	}
	return &target{url: parsed, domain: domain}, nil
}

// normalizeHost lower-cases hostname and converts IDNs to their ASCII form.
func normalizeHost(hostname string) (string, error) {
	if net.ParseIP(hostname) != nil {
		return strings.ToLower(hostname), nil
	}
	ascii, err := idna.ToASCII(hostname)
	if err != nil {
		return "", err
	}
	return strings.ToLower(ascii), nil
}

// CookieDomain returns the cookie partition key for a URL or bare host:
// its hostname in lower-case ASCII.
func CookieDomain(rawURL string) (string, error) {
	t, err := parseTarget(rawURL)
	if err != nil {
		return "", err
	}
	return t.domain, nil
}

// warnTarget logs requests that leave TLS or reach internal addresses.
func warnTarget(logger *slog.Logger, t *target) {
	if t.url.Scheme == "http" {
		logger.Warn("using insecure HTTP connection, data will be transmitted unencrypted", "url", t.url.Redacted())
	}

	host := t.domain
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		logger.Warn("making request to localhost/loopback address", "host", host)
	} else if isPrivateOrReservedHost(host) {
		logger.Warn("making request to private/internal IP address", "host", host)
	}
}

// isPrivateOrReservedHost checks if the hostname is a private or reserved IP
func isPrivateOrReservedHost(hostname string) bool {
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() || (ip.To4() != nil && ip.To4()[0] == 0)
}

// isCloudMetadataEndpoint checks if the hostname is a cloud metadata service
func isCloudMetadataEndpoint(hostname string) bool {
	metadataHosts := map[string]bool{
		"169.254.169.254":          true, // AWS, GCP, Azure metadata
		"metadata.google.internal": true, // GCP metadata
		"metadata.goog":            true, // GCP metadata alternative
		"100.100.100.200":          true, // Alibaba Cloud metadata
		"169.254.170.2":            true, // AWS ECS task metadata
	}

	return metadataHosts[strings.ToLower(hostname)]
}
