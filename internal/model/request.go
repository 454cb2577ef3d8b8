package model

import (
	"encoding/json"
	"strings"
)

// Method is an HTTP method supported by the client.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Methods lists every supported method in display order.
var Methods = []Method{
	MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions,
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMethod upper-cases s and validates it.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	return m, m.Valid()
}

// HeaderValue is a header entry that can be toggled without being removed
type HeaderValue struct {
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Headers maps header names to their values. Keys are unique per request.
type Headers map[string]HeaderValue

// Enabled returns the flat name -> value map of enabled headers.
func (h Headers) Enabled() map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if v.Enabled {
			out[k] = v.Value
		}
	}
	return out
}

// Clone returns a deep copy of h. A nil map stays nil.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// AuthType selects how an Auth descriptor is turned into headers.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api-key"
)

// Auth is the optional authentication descriptor embedded in a Request
type Auth struct {
	Type           AuthType `json:"type"`
	Username       string   `json:"username,omitempty"`
	Password       string   `json:"password,omitempty"`
	Token          string   `json:"token,omitempty"`
	APIKey         string   `json:"apiKey,omitempty"`
	APIValue       string   `json:"apiValue,omitempty"`
	APIKeyLocation string   `json:"apiKeyLocation,omitempty"` // "header" or "query"
}

// Request represents a composed HTTP request
type Request struct {
	ID      string  `json:"id,omitempty"`
	Method  Method  `json:"method"`
	URL     string  `json:"url"`
	Headers Headers `json:"headers"`
	Body    string  `json:"body,omitempty"`
	Name    string  `json:"name"`
	Auth    *Auth   `json:"auth,omitempty"`
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	out := r
	out.Headers = r.Headers.Clone()
	if r.Auth != nil {
		a := *r.Auth
		out.Auth = &a
	}
	return out
}

// Executed returns the shape stored in history: a copy without the ID.
func (r Request) Executed() Request {
	out := r.Clone()
	out.ID = ""
	return out
}

// Response is the normalized outcome of a dispatch, including transport failures
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       json.RawMessage   `json:"data"`
	Time       int64             `json:"time"`
	Size       int               `json:"size"`
}

// Clone returns a deep copy of r.
func (r Response) Clone() Response {
	out := r
	if r.Headers != nil {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = v
		}
	}
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	return out
}

// ErrorBody is the Data payload of a status-0 response
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Collection represents a named, ordered group of requests
type Collection struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Requests []Request `json:"requests"`
}

// Clone returns a deep copy of c.
func (c Collection) Clone() Collection {
	out := c
	out.Requests = make([]Request, len(c.Requests))
	for i, r := range c.Requests {
		out.Requests[i] = r.Clone()
	}
	return out
}

// HistoryEntry is one executed request with its response.
// Timestamp is epoch milliseconds.
type HistoryEntry struct {
	ID        int64    `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Request   Request  `json:"request"`
	Response  Response `json:"response"`
}

// Clone returns a deep copy of e.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	out.Request = e.Request.Clone()
	out.Response = e.Response.Clone()
	return out
}

// SavedRequest is a named request snapshot independent of collections
type SavedRequest struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Request   Request `json:"request"`
	CreatedAt int64   `json:"createdAt"`
}

// Clone returns a deep copy of s.
func (s SavedRequest) Clone() SavedRequest {
	out := s
	out.Request = s.Request.Clone()
	return out
}

// Variable is one environment key/value pair
type Variable struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// Environment is a named, ordered set of variables
type Environment struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Variables []Variable `json:"variables"`
}

// Clone returns a deep copy of e.
func (e Environment) Clone() Environment {
	out := e
	out.Variables = append([]Variable(nil), e.Variables...)
	return out
}

// Lookup returns the first enabled variable whose key equals key.
func (e Environment) Lookup(key string) (string, bool) {
	for _, v := range e.Variables {
		if v.Enabled && v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// Cookie is identified by (Domain, Name)
type Cookie struct {
	Domain  string `json:"domain"`
	Name    string `json:"name"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// RequestLog is an ephemeral record of an outgoing request
type RequestLog struct {
	Timestamp int64             `json:"timestamp"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body,omitempty"`
	IP        string            `json:"ip,omitempty"`
}

// Preferences is the single persisted user preference record
type Preferences struct {
	EnrichLogWithIP bool `json:"enrichLogWithIP"`
}

// DefaultPreferences is used when no preferences have been stored.
func DefaultPreferences() Preferences {
	return Preferences{EnrichLogWithIP: false}
}

// PreferencesPatch carries a partial update; nil fields are left unchanged.
type PreferencesPatch struct {
	EnrichLogWithIP *bool `json:"enrichLogWithIP,omitempty"`
}

// Apply merges the patch shallowly into p.
func (p Preferences) Apply(patch PreferencesPatch) Preferences {
	if patch.EnrichLogWithIP != nil {
		p.EnrichLogWithIP = *patch.EnrichLogWithIP
	}
	return p
}
