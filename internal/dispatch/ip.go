package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultIPLookupURL answers with {"ip": "..."}.
const DefaultIPLookupURL = "https://api.ipify.org?format=json"

const ipLookupTimeout = 5 * time.Second

// lookupIP asks lookupURL for the caller's public address. The endpoint may
// answer with a JSON object carrying "ip" or with the bare address.
func lookupIP(ctx context.Context, client *http.Client, lookupURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ipLookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}

	var payload struct {
		IP string `json:"ip"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.IP != "" {
		return payload.IP, nil
	}
	if ip := strings.TrimSpace(string(body)); ip != "" && !strings.ContainsAny(ip, "{}<>") {
		return ip, nil
	}
	return "", fmt.Errorf("ip lookup returned no address")
}
