package format

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/webmip/postbank/internal/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	fn()
	return buf.String()
}

func TestSanitizeOutput(t *testing.T) {
	assert.Equal(t, "a\\x1b[31mb", sanitizeOutput("a\x1b[31mb"))
	assert.Equal(t, "tab\tnew\nline", sanitizeOutput("tab\tnew\nline"))
	assert.Equal(t, "\\x00\\x7f", sanitizeOutput("\x00\x7f"))
}

func TestRedactHeaders(t *testing.T) {
	in := map[string]string{"Authorization": "Bearer x", "x-api-key": "k", "Accept": "*/*"}
	out := RedactHeaders(in)

	assert.Equal(t, Redacted, out["Authorization"])
	assert.Equal(t, Redacted, out["x-api-key"])
	assert.Equal(t, "*/*", out["Accept"])
	assert.Equal(t, "Bearer x", in["Authorization"])
	assert.Nil(t, RedactHeaders(nil))
}

func TestBodyText(t *testing.T) {
	assert.Equal(t, "", BodyText(nil))
	assert.Equal(t, "plain <text>", BodyText(json.RawMessage(`"plain <text>"`)))
	assert.Equal(t, "{\n  \"a\": 1\n}", BodyText(json.RawMessage(`{"a":1}`)))
}

func TestPrintResponse(t *testing.T) {
	out := capture(t, func() {
		PrintResponse(&model.Response{
			Status:     404,
			StatusText: "Not Found",
			Headers:    map[string]string{"content-type": "application/json"},
			Data:       json.RawMessage(`{"error":"missing"}`),
			Time:       12,
			Size:       19,
		}, true)
	})

	assert.Contains(t, out, "404 Not Found")
	assert.Contains(t, out, "Time: 12ms  Size: 19 B")
	assert.Contains(t, out, "content-type: application/json")
	assert.Contains(t, out, `"error": "missing"`)
}

func TestPrintResponseTransportFailure(t *testing.T) {
	out := capture(t, func() {
		PrintResponse(&model.Response{
			Status:     0,
			StatusText: "Request Error",
			Data:       json.RawMessage(`{"error":"Request Error","message":"connection refused","code":"ECONNREFUSED"}`),
		}, false)
	})

	assert.Contains(t, out, "Request Error: connection refused (ECONNREFUSED)")
}

func TestPrintHistoryDetailRedacts(t *testing.T) {
	entry := model.HistoryEntry{
		ID:        3,
		Timestamp: 1700000000000,
		Request: model.Request{
			Method:  model.MethodGet,
			URL:     "https://api.test",
			Headers: model.Headers{"Authorization": {Value: "Bearer secret", Enabled: true}},
		},
		Response: model.Response{Status: 200, StatusText: "OK", Headers: map[string]string{"set-cookie": "sid=1"}},
	}

	out := capture(t, func() { PrintHistoryDetail(entry, false) })
	assert.NotContains(t, out, "Bearer secret")
	assert.NotContains(t, out, "sid=1")
	assert.Contains(t, out, Redacted)

	out = capture(t, func() { PrintHistoryDetail(entry, true) })
	assert.Contains(t, out, "Bearer secret")
}

func TestPrintHistoryList(t *testing.T) {
	entries := []model.HistoryEntry{
		{ID: 2, Request: model.Request{Method: model.MethodPost, URL: "https://a.test"}, Response: model.Response{Status: 201}},
		{ID: 1, Request: model.Request{Method: model.MethodGet, URL: "https://b.test"}, Response: model.Response{Status: 0}},
	}

	out := capture(t, func() { PrintHistoryList(entries, 1) })
	assert.Contains(t, out, "[2] POST")
	assert.NotContains(t, out, "b.test")
	assert.Contains(t, out, "... and 1 more requests")

	out = capture(t, func() { PrintHistoryList(entries, 0) })
	assert.Contains(t, out, "ERR")

	out = capture(t, func() { PrintHistoryList(nil, 0) })
	assert.Contains(t, out, "No requests in history")
}

func TestPrintEnvironmentList(t *testing.T) {
	envs := []model.Environment{{ID: "e1", Name: "dev"}, {ID: "e2", Name: "prod"}}
	out := capture(t, func() { PrintEnvironmentList(envs, "e2") })

	assert.Contains(t, out, "  dev ")
	assert.Contains(t, out, "* prod ")
}

func TestPrintCookiesSortedByDomain(t *testing.T) {
	out := capture(t, func() {
		PrintCookies(map[string][]model.Cookie{
			"z.test": {{Name: "a", Value: "1", Enabled: true}},
			"a.test": {{Name: "b", Value: "2", Enabled: false}},
		})
	})

	assert.Less(t, bytes.Index([]byte(out), []byte("a.test")), bytes.Index([]byte(out), []byte("z.test")))
	assert.Contains(t, out, "b=2 (disabled)")
}

func TestPrintLogsRedacts(t *testing.T) {
	logs := []model.RequestLog{{Method: "GET", URL: "https://a.test", Headers: map[string]string{"Cookie": "sid=1", "Accept": "*/*"}, IP: "1.2.3.4"}}
	out := capture(t, func() { PrintLogs(logs, false) })

	assert.Contains(t, out, "from 1.2.3.4")
	assert.Contains(t, out, "Cookie: "+Redacted)
	assert.Contains(t, out, "Accept: */*")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
