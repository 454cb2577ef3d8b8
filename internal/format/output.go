package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/fatih/color"

	"github.com/webmip/postbank/internal/model"
)

// Out is where every Print function writes.
var Out io.Writer = color.Output

// sanitizeOutput removes or escapes potentially dangerous control characters
// that could manipulate terminal display or execute commands
func sanitizeOutput(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteRune(r)
		case r == '\x1b':
			// Escape ANSI escape sequences - replace ESC with visible representation
			result.WriteString("\\x1b")
		case unicode.IsControl(r) && r < 0x20:
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		case r == 0x7F:
			result.WriteString("\\x7f")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

var (
	successColor   = color.New(color.FgGreen, color.Bold)
	redirectColor  = color.New(color.FgYellow, color.Bold)
	clientErrColor = color.New(color.FgRed, color.Bold)
	serverErrColor = color.New(color.FgRed, color.Bold, color.BgWhite)
	headerKeyColor = color.New(color.FgCyan)
	methodColor    = color.New(color.FgMagenta, color.Bold)
	urlColor       = color.New(color.FgBlue)
	dimColor       = color.New(color.Faint)
)

// sensitiveHeaders are redacted when headers are displayed
var sensitiveHeaders = map[string]bool{
	// Standard authentication headers
	"authorization":       true,
	"proxy-authorization": true,
	"www-authenticate":    true,

	// Session and token headers
	"cookie":       true,
	"set-cookie":   true,
	"x-api-key":    true,
	"api-key":      true,
	"x-auth-token": true,
	"x-csrf-token": true,
	"x-xsrf-token": true,

	// Cloud credentials
	"x-amz-security-token":     true,
	"x-amz-credential":         true,
	"x-amz-signature":          true,
	"x-goog-iap-jwt-assertion": true,
	"x-ms-token-aad-id-token":  true,

	"x-access-token":  true,
	"x-refresh-token": true,
	"x-session-token": true,
	"x-secret-key":    true,
	"x-private-key":   true,
}

// Redacted replaces sensitive header values.
const Redacted = "[REDACTED]"

// RedactHeaders returns a copy of headers with sensitive values redacted
func RedactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}

	filtered := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			filtered[k] = Redacted
		} else {
			filtered[k] = v
		}
	}
	return filtered
}

// ===== Responses =====

// PrintResponse prints a formatted HTTP response. A status-0 response is
// printed as the transport failure it records.
func PrintResponse(resp *model.Response, showHeaders bool) {
	printStatusLine(resp)

	dimColor.Fprintf(Out, "  Time: %dms  Size: %s\n\n", resp.Time, formatSize(resp.Size))

	if showHeaders {
		printHeaders(resp.Headers)
	}

	printBody(resp.Data)
}

func printStatusLine(resp *model.Response) {
	if resp.Status == 0 {
		var body model.ErrorBody
		if err := json.Unmarshal(resp.Data, &body); err == nil && body.Message != "" {
			line := body.Message
			if body.Code != "" {
				line += " (" + body.Code + ")"
			}
			serverErrColor.Fprintf(Out, "%s: %s\n", resp.StatusText, sanitizeOutput(line))
			return
		}
	}
	statusColor := getStatusColor(resp.Status)
	statusColor.Fprintf(Out, "%d %s\n", resp.Status, sanitizeOutput(resp.StatusText))
}

func getStatusColor(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return successColor
	case code >= 300 && code < 400:
		return redirectColor
	case code >= 400 && code < 500:
		return clientErrColor
	default:
		return serverErrColor
	}
}

func formatSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func printHeaders(headers map[string]string) {
	if len(headers) == 0 {
		return
	}

	fmt.Fprintln(Out, "Headers:")

	// Sort headers for consistent output
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		headerKeyColor.Fprintf(Out, "  %s: ", sanitizeOutput(key))
		fmt.Fprintln(Out, sanitizeOutput(headers[key]))
	}
	fmt.Fprintln(Out)
}

func printBody(data json.RawMessage) {
	text := BodyText(data)
	if text == "" {
		dimColor.Fprintln(Out, "(empty body)")
		return
	}
	fmt.Fprintln(Out, sanitizeOutput(text))
}

// BodyText renders response data for display: JSON strings are unwrapped,
// structured values are indented.
func BodyText(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if data[0] == '"' && json.Unmarshal(data, &s) == nil {
		return s
	}
	return prettyJSON(string(data))
}

func prettyJSON(s string) string {
	var out bytes.Buffer
	err := json.Indent(&out, []byte(s), "", "  ")
	if err != nil {
		// Not valid JSON, return as-is
		return s
	}
	return out.String()
}

// ===== Requests and History =====

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func printRequest(req model.Request, reveal bool) {
	methodColor.Fprintf(Out, "%s ", req.Method)
	urlColor.Fprintln(Out, sanitizeOutput(req.URL))

	headers := req.Headers.Enabled()
	if !reveal {
		headers = RedactHeaders(headers)
	}
	printHeaders(headers)

	if req.Auth != nil && req.Auth.Type != model.AuthNone && req.Auth.Type != "" {
		dimColor.Fprintf(Out, "Auth: %s\n\n", req.Auth.Type)
	}

	if req.Body != "" {
		fmt.Fprintln(Out, "Body:")
		fmt.Fprintln(Out, sanitizeOutput(prettyJSON(req.Body)))
		fmt.Fprintln(Out)
	}
}

// PrintHistoryDetail prints full request/response details
func PrintHistoryDetail(entry model.HistoryEntry, reveal bool) {
	fmt.Fprintln(Out, "Request:")
	fmt.Fprintln(Out, strings.Repeat("-", 40))
	dimColor.Fprintf(Out, "ID: %d\n", entry.ID)
	dimColor.Fprintf(Out, "Time: %s\n", formatTimestamp(entry.Timestamp))
	if entry.Request.Name != "" && entry.Request.Name != entry.Request.URL {
		dimColor.Fprintf(Out, "Name: %s\n", sanitizeOutput(entry.Request.Name))
	}
	fmt.Fprintln(Out)
	printRequest(entry.Request, reveal)

	fmt.Fprintln(Out, "Response:")
	fmt.Fprintln(Out, strings.Repeat("-", 40))
	resp := entry.Response
	if !reveal {
		resp.Headers = RedactHeaders(resp.Headers)
	}
	PrintResponse(&resp, true)
}

// PrintHistoryList prints history entries in a compact format
func PrintHistoryList(entries []model.HistoryEntry, limit int) {
	if len(entries) == 0 {
		dimColor.Fprintln(Out, "No requests in history")
		return
	}

	count := len(entries)
	if limit > 0 && limit < count {
		count = limit
	}

	for i := 0; i < count; i++ {
		e := entries[i]
		dimColor.Fprintf(Out, "[%d] ", e.ID)
		methodColor.Fprintf(Out, "%-7s ", e.Request.Method)

		// Truncate URL if too long, then sanitize
		url := e.Request.URL
		if len(url) > 60 {
			url = url[:57] + "..."
		}
		urlColor.Fprintf(Out, "%-60s ", sanitizeOutput(url))

		if e.Response.Status == 0 {
			serverErrColor.Fprint(Out, "ERR ")
		} else {
			getStatusColor(e.Response.Status).Fprintf(Out, "%d ", e.Response.Status)
		}
		dimColor.Fprintf(Out, "(%dms) %s", e.Response.Time, formatTimestamp(e.Timestamp))
		fmt.Fprintln(Out)
	}

	if limit > 0 && len(entries) > limit {
		dimColor.Fprintf(Out, "\n... and %d more requests\n", len(entries)-limit)
	}
}

// ===== Collections =====

// PrintCollectionList prints a list of collections
func PrintCollectionList(collections []model.Collection) {
	if len(collections) == 0 {
		dimColor.Fprintln(Out, "No collections found")
		return
	}

	fmt.Fprintln(Out, "Collections:")
	for _, col := range collections {
		headerKeyColor.Fprintf(Out, "  %s ", sanitizeOutput(col.Name))
		dimColor.Fprintf(Out, "(%d requests) %s\n", len(col.Requests), col.ID)
	}
}

// PrintCollectionRequests prints requests in a collection
func PrintCollectionRequests(col model.Collection) {
	if len(col.Requests) == 0 {
		dimColor.Fprintf(Out, "Collection '%s' is empty\n", sanitizeOutput(col.Name))
		return
	}

	headerKeyColor.Fprintf(Out, "Collection: %s\n", sanitizeOutput(col.Name))
	fmt.Fprintln(Out, strings.Repeat("-", 40))

	for i, req := range col.Requests {
		dimColor.Fprintf(Out, "[%d] ", i+1)
		if req.Name != "" {
			fmt.Fprintf(Out, "%s: ", sanitizeOutput(req.Name))
		}
		methodColor.Fprintf(Out, "%s ", req.Method)
		urlColor.Fprintln(Out, sanitizeOutput(req.URL))
	}
}

// ===== Saved Requests =====

// PrintSavedList prints saved requests, newest first as stored.
func PrintSavedList(saved []model.SavedRequest) {
	if len(saved) == 0 {
		dimColor.Fprintln(Out, "No saved requests")
		return
	}

	for _, s := range saved {
		headerKeyColor.Fprintf(Out, "%s ", sanitizeOutput(s.Name))
		methodColor.Fprintf(Out, "%s ", s.Request.Method)
		urlColor.Fprint(Out, sanitizeOutput(s.Request.URL))
		dimColor.Fprintf(Out, "  %s %s\n", s.ID, formatTimestamp(s.CreatedAt))
	}
}

// PrintSavedRequest prints one saved request in full.
func PrintSavedRequest(s model.SavedRequest, reveal bool) {
	headerKeyColor.Fprintf(Out, "%s\n", sanitizeOutput(s.Name))
	dimColor.Fprintf(Out, "ID: %s  Saved: %s\n\n", s.ID, formatTimestamp(s.CreatedAt))
	printRequest(s.Request, reveal)
}

// ===== Environments =====

// PrintEnvironmentList prints environments, marking the active one.
func PrintEnvironmentList(envs []model.Environment, activeID string) {
	if len(envs) == 0 {
		dimColor.Fprintln(Out, "No environments found")
		return
	}

	for _, env := range envs {
		marker := "  "
		if env.ID == activeID {
			marker = "* "
		}
		successColor.Fprint(Out, marker)
		headerKeyColor.Fprintf(Out, "%s ", sanitizeOutput(env.Name))
		dimColor.Fprintf(Out, "(%d variables) %s\n", len(env.Variables), env.ID)
	}
}

// PrintEnvironment prints an environment's variables in order.
func PrintEnvironment(env model.Environment, active bool) {
	headerKeyColor.Fprintf(Out, "Environment: %s", sanitizeOutput(env.Name))
	if active {
		successColor.Fprint(Out, " (active)")
	}
	fmt.Fprintln(Out)
	dimColor.Fprintf(Out, "ID: %s\n", env.ID)

	if len(env.Variables) == 0 {
		dimColor.Fprintln(Out, "No variables")
		return
	}
	for _, v := range env.Variables {
		if v.Enabled {
			headerKeyColor.Fprintf(Out, "  %s", sanitizeOutput(v.Key))
			fmt.Fprintf(Out, " = %s\n", sanitizeOutput(v.Value))
		} else {
			dimColor.Fprintf(Out, "  %s = %s (disabled)\n", sanitizeOutput(v.Key), sanitizeOutput(v.Value))
		}
	}
}

// ===== Cookies =====

// PrintCookies prints the cookies of each domain in domain order.
func PrintCookies(byDomain map[string][]model.Cookie) {
	if len(byDomain) == 0 {
		dimColor.Fprintln(Out, "No cookies stored")
		return
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, d := range domains {
		headerKeyColor.Fprintf(Out, "%s\n", sanitizeOutput(d))
		for _, c := range byDomain[d] {
			if c.Enabled {
				fmt.Fprintf(Out, "  %s=%s\n", sanitizeOutput(c.Name), sanitizeOutput(c.Value))
			} else {
				dimColor.Fprintf(Out, "  %s=%s (disabled)\n", sanitizeOutput(c.Name), sanitizeOutput(c.Value))
			}
		}
	}
}

// ===== Request Log =====

// PrintLogs prints the outgoing-request log, newest first.
func PrintLogs(logs []model.RequestLog, reveal bool) {
	if len(logs) == 0 {
		dimColor.Fprintln(Out, "No outgoing requests logged")
		return
	}

	for _, l := range logs {
		dimColor.Fprintf(Out, "%s ", time.UnixMilli(l.Timestamp).Format("15:04:05.000"))
		methodColor.Fprintf(Out, "%s ", l.Method)
		urlColor.Fprint(Out, sanitizeOutput(l.URL))
		if l.IP != "" {
			dimColor.Fprintf(Out, "  from %s", l.IP)
		}
		fmt.Fprintln(Out)

		headers := l.Headers
		if !reveal {
			headers = RedactHeaders(headers)
		}
		keys := make([]string, 0, len(headers))
		for k := range headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			headerKeyColor.Fprintf(Out, "    %s: ", sanitizeOutput(k))
			fmt.Fprintln(Out, sanitizeOutput(headers[k]))
		}
		if l.Body != "" {
			dimColor.Fprintf(Out, "    body: %s\n", formatSize(len(l.Body)))
		}
	}
}

// ===== Preferences =====

// PrintPreferences prints the preference record.
func PrintPreferences(p model.Preferences) {
	headerKeyColor.Fprint(Out, "enrichLogWithIP: ")
	fmt.Fprintf(Out, "%t\n", p.EnrichLogWithIP)
}

// ===== Messages =====

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	successColor.Fprintf(Out, "✓ %s\n", msg)
}

// PrintError prints an error message
func PrintError(msg string) {
	clientErrColor.Fprintf(Out, "✗ %s\n", msg)
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	redirectColor.Fprintf(Out, "! %s\n", msg)
}

// PrintCode prints a generated snippet as-is.
func PrintCode(code string) {
	fmt.Fprintln(Out, sanitizeOutput(code))
}
