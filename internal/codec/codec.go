// Package codec translates between collections and the Postman Collection
// v2 interchange format.
//
// Import flattens nested folders depth-first into one ordered request
// list; folder names are not kept. Export emits a flat item list, so a
// round trip preserves requests but not folder structure.
package codec

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

// Parse decodes serialized text into a generic JSON document.
func Parse(text string) (any, error) {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, errdef.Format("parse collection", "invalid JSON format", err)
	}
	return doc, nil
}

// Validate reports whether doc, as produced by Parse, is a well-formed
// collection. There is no partial acceptance.
func Validate(doc any) bool {
	s, err := schema()
	if err != nil {
		return false
	}
	return s.Validate(doc) == nil
}

// Import validates doc and converts it into a Collection with fresh ids.
func Import(doc any) (model.Collection, error) {
	if !Validate(doc) {
		return model.Collection{}, errdef.Validation("import collection", "invalid Postman collection format")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return model.Collection{}, errdef.Format("import collection", "re-encode document", err)
	}
	var parsed Document
	if err := json.Unmarshal(data, &parsed); err != nil {
		return model.Collection{}, errdef.Validation("import collection", "invalid Postman collection format")
	}

	return model.Collection{
		ID:       uuid.NewString(),
		Name:     parsed.Info.Name,
		Requests: flatten(parsed.Item),
	}, nil
}

// Decode is Parse followed by Import.
func Decode(text string) (model.Collection, error) {
	doc, err := Parse(text)
	if err != nil {
		return model.Collection{}, err
	}
	return Import(doc)
}

// flatten walks items depth-first in document order. An item carrying
// both a request and nested items contributes the request first.
func flatten(items []PostmanItem) []model.Request {
	requests := []model.Request{}

	var walk func(item PostmanItem)
	walk = func(item PostmanItem) {
		if item.Request != nil {
			requests = append(requests, toRequest(item))
		}
		for _, child := range item.Item {
			walk(child)
		}
	}

	for _, item := range items {
		walk(item)
	}
	return requests
}

func toRequest(item PostmanItem) model.Request {
	pr := item.Request

	headers := make(model.Headers, len(pr.Header))
	for _, h := range pr.Header {
		headers[h.Key] = model.HeaderValue{Value: h.Value, Enabled: true}
	}

	body := ""
	if pr.Body != nil {
		body = pr.Body.Raw
	}

	return model.Request{
		ID:      uuid.NewString(),
		Name:    item.Name,
		Method:  model.Method(pr.Method),
		URL:     pr.URL.Raw,
		Headers: headers,
		Body:    body,
	}
}

// Export serializes c as an indented Postman v2.1 document.
func Export(c model.Collection) (string, error) {
	doc := Document{
		Info: PostmanInfo{
			PostmanID: c.ID,
			Name:      c.Name,
			Schema:    SchemaURL,
		},
		Item: make([]PostmanItem, 0, len(c.Requests)),
	}

	for _, r := range c.Requests {
		doc.Item = append(doc.Item, PostmanItem{
			Name:    r.Name,
			Request: fromRequest(r),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", errdef.Format("export collection", "encode document", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func fromRequest(r model.Request) *PostmanRequest {
	pr := &PostmanRequest{
		Method: string(r.Method),
		Header: []PostmanHeader{},
		URL:    DecomposeURL(r.URL),
	}

	for _, key := range sortedKeys(r.Headers) {
		h := r.Headers[key]
		if !h.Enabled {
			continue
		}
		pr.Header = append(pr.Header, PostmanHeader{Key: key, Value: h.Value, Type: "text"})
	}

	if r.Body != "" {
		pr.Body = &PostmanBody{Mode: "raw", Raw: r.Body}
	}
	return pr
}

// DecomposeURL splits raw into Postman URL parts. A URL without a scheme
// and host, or one that does not parse, keeps only its raw form.
func DecomposeURL(raw string) PostmanURL {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return PostmanURL{Raw: raw}
	}

	out := PostmanURL{
		Raw:      raw,
		Protocol: parsed.Scheme,
		Host:     strings.Split(parsed.Hostname(), "."),
		Port:     parsed.Port(),
	}
	for _, seg := range strings.Split(parsed.Path, "/") {
		if seg != "" {
			out.Path = append(out.Path, seg)
		}
	}
	out.Query = splitQuery(parsed.RawQuery)
	return out
}

// splitQuery keeps document order, which url.Values would lose.
func splitQuery(rawQuery string) []PostmanQuery {
	if rawQuery == "" {
		return nil
	}
	var out []PostmanQuery
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		out = append(out, PostmanQuery{Key: key, Value: value})
	}
	return out
}

func sortedKeys(h model.Headers) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
