// Package params edits the query string of a request URL.
//
// URLs may be relative or contain {{name}} tokens, so the query is split and
// rebuilt as text rather than round-tripped through net/url, which would
// re-escape the path.
package params

import (
	"net/url"
	"strings"
)

// Param is one query parameter. Disabled params are dropped when applied.
type Param struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// split returns the part before '?', the raw query, and the fragment
// including its '#'.
func split(rawURL string) (base, query, fragment string) {
	base = rawURL
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base, fragment = base[:i], base[i:]
	}
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base, query = base[:i], base[i+1:]
	}
	return base, query, fragment
}

// Parse returns the query parameters of rawURL in order, all enabled.
func Parse(rawURL string) []Param {
	_, query, _ := split(rawURL)
	if query == "" {
		return []Param{}
	}

	out := []Param{}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		out = append(out, Param{Key: unescape(key), Value: unescape(value), Enabled: true})
	}
	return out
}

// Apply replaces the query of rawURL with the enabled params that have a key.
func Apply(rawURL string, ps []Param) string {
	base, _, fragment := split(rawURL)

	var parts []string
	for _, p := range ps {
		if !p.Enabled || p.Key == "" {
			continue
		}
		parts = append(parts, escape(p.Key)+"="+escape(p.Value))
	}
	if len(parts) == 0 {
		return base + fragment
	}
	return base + "?" + strings.Join(parts, "&") + fragment
}

// Set assigns key=value in rawURL's query, replacing every existing
// occurrence of key and keeping the position of the first.
func Set(rawURL, key, value string) string {
	current := Parse(rawURL)
	out := make([]Param, 0, len(current)+1)
	replaced := false
	for _, p := range current {
		if p.Key != key {
			out = append(out, p)
			continue
		}
		if !replaced {
			out = append(out, Param{Key: key, Value: value, Enabled: true})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, Param{Key: key, Value: value, Enabled: true})
	}
	return Apply(rawURL, out)
}

// Delete removes every occurrence of key from rawURL's query.
func Delete(rawURL, key string) string {
	current := Parse(rawURL)
	out := current[:0]
	for _, p := range current {
		if p.Key != key {
			out = append(out, p)
		}
	}
	return Apply(rawURL, out)
}

// escape query-escapes s but leaves {{ and }} readable so variable tokens
// still resolve after editing.
func escape(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "%7B%7B", "{{")
	return strings.ReplaceAll(e, "%7D%7D", "}}")
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
