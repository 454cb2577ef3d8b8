// Package harexport converts request history into a HAR 1.2 document.
package harexport

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pb33f/harhar"

	"github.com/webmip/postbank/internal/model"
	"github.com/webmip/postbank/internal/params"
)

// HARVersion is the archive format version written.
const HARVersion = "1.2"

const httpVersion = "HTTP/1.1"

// Document is the top-level HAR object.
type Document struct {
	Log Log `json:"log"`
}

// Log holds the archive entries.
type Log struct {
	Version string         `json:"version"`
	Creator harhar.Creator `json:"creator"`
	Entries []harhar.Entry `json:"entries"`
}

// Build converts history entries, in the given order, into a HAR document.
func Build(history []model.HistoryEntry, creatorVersion string) Document {
	entries := make([]harhar.Entry, 0, len(history))
	for _, h := range history {
		entries = append(entries, Entry(h))
	}
	return Document{
		Log: Log{
			Version: HARVersion,
			Creator: harhar.Creator{Name: "postbank", Version: creatorVersion},
			Entries: entries,
		},
	}
}

// Write encodes the HAR document for history to w.
func Write(w io.Writer, history []model.HistoryEntry, creatorVersion string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(Build(history, creatorVersion))
}

// Entry converts one history entry. Failed dispatches (status 0) are kept
// with their error body as the response content.
func Entry(h model.HistoryEntry) harhar.Entry {
	return harhar.Entry{
		Start:    time.UnixMilli(h.Timestamp).UTC().Format(time.RFC3339Nano),
		Time:     float64(h.Response.Time),
		Request:  request(h.Request),
		Response: response(h.Response),
		Timings:  harhar.Timings{Wait: float64(h.Response.Time)},
	}
}

func request(r model.Request) harhar.Request {
	headers := r.Headers.Enabled()
	out := harhar.Request{
		Method:      string(r.Method),
		URL:         r.URL,
		HTTPVersion: httpVersion,
		Cookies:     []harhar.Cookie{},
		Headers:     pairs(headers),
		QueryParams: queryPairs(r.URL),
		HeadersSize: -1,
		BodySize:    len(r.Body),
	}
	if r.Body != "" {
		out.Body = harhar.BodyType{
			MIMEType: headerValue(headers, "Content-Type"),
			Content:  r.Body,
		}
	}
	return out
}

func response(r model.Response) harhar.Response {
	text := bodyText(r.Data)
	return harhar.Response{
		StatusCode:  r.Status,
		StatusText:  r.StatusText,
		HTTPVersion: httpVersion,
		RedirectURL: headerValue(r.Headers, "Location"),
		Cookies:     []harhar.Cookie{},
		Headers:     pairs(r.Headers),
		Body: harhar.BodyResponseType{
			Size:     r.Size,
			MIMEType: headerValue(r.Headers, "Content-Type"),
			Content:  text,
		},
		HeadersSize: -1,
		BodySize:    r.Size,
	}
}

// bodyText unwraps a JSON string payload; structured payloads are kept as
// their JSON text.
func bodyText(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if data[0] == '"' && json.Unmarshal(data, &s) == nil {
		return s
	}
	return string(data)
}

func pairs(m map[string]string) []harhar.NameValuePair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]harhar.NameValuePair, 0, len(keys))
	for _, k := range keys {
		out = append(out, harhar.NameValuePair{Name: k, Value: m[k]})
	}
	return out
}

func queryPairs(rawURL string) []harhar.NameValuePair {
	ps := params.Parse(rawURL)
	out := make([]harhar.NameValuePair, 0, len(ps))
	for _, p := range ps {
		out = append(out, harhar.NameValuePair{Name: p.Key, Value: p.Value})
	}
	return out
}

func headerValue(m map[string]string, name string) string {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
