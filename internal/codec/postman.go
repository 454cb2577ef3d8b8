package codec

import (
	"bytes"
	"encoding/json"
)

// SchemaURL identifies the Postman Collection v2.1 format in exported documents.
const SchemaURL = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// Postman Collection v2.x types

// Document represents a Postman Collection.
type Document struct {
	Info PostmanInfo   `json:"info"`
	Item []PostmanItem `json:"item"`
}

// PostmanInfo contains collection metadata.
type PostmanInfo struct {
	PostmanID string `json:"_postman_id,omitempty"`
	Name      string `json:"name"`
	Schema    string `json:"schema,omitempty"`
}

// PostmanItem is a request leaf or a folder of nested items.
type PostmanItem struct {
	Name    string          `json:"name"`
	Request *PostmanRequest `json:"request,omitempty"`
	Item    []PostmanItem   `json:"item,omitempty"`
}

// PostmanRequest represents a Postman request.
type PostmanRequest struct {
	Method string          `json:"method"`
	Header []PostmanHeader `json:"header"`
	URL    PostmanURL      `json:"url"`
	Body   *PostmanBody    `json:"body,omitempty"`
}

// PostmanHeader represents a request header.
type PostmanHeader struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// PostmanBody represents a request body. Only raw mode is carried.
type PostmanBody struct {
	Mode string `json:"mode,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

// PostmanURL is either a plain string or a decomposed object with a raw form.
type PostmanURL struct {
	Raw      string         `json:"raw"`
	Protocol string         `json:"protocol,omitempty"`
	Host     []string       `json:"host,omitempty"`
	Port     string         `json:"port,omitempty"`
	Path     []string       `json:"path,omitempty"`
	Query    []PostmanQuery `json:"query,omitempty"`
}

// PostmanQuery represents a query parameter.
type PostmanQuery struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts both the string and the object form.
func (u *PostmanURL) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*u = PostmanURL{Raw: raw}
		return nil
	}

	type plain PostmanURL
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = PostmanURL(p)
	return nil
}
