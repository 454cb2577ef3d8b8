package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

const flatDoc = `{
  "info": {"name": "Users API", "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"},
  "item": [
    {
      "name": "List users",
      "request": {
        "method": "GET",
        "header": [{"key": "Accept", "value": "application/json"}],
        "url": {"raw": "https://api.example.com/users?page=2&sort=name", "host": ["api", "example", "com"]}
      }
    },
    {
      "name": "Create user",
      "request": {
        "method": "POST",
        "header": [
          {"key": "Content-Type", "value": "application/json"},
          {"key": "X-Trace", "value": "abc"}
        ],
        "url": "{{base}}/users",
        "body": {"mode": "raw", "raw": "{\"name\": \"Ada\"}"}
      }
    }
  ]
}`

const nestedDoc = `{
  "info": {"name": "Nested"},
  "item": [
    {"name": "first", "request": {"method": "GET", "url": "https://a.test/1"}},
    {
      "name": "folder",
      "item": [
        {"name": "second", "request": {"method": "PUT", "url": "https://a.test/2"}},
        {
          "name": "inner",
          "item": [
            {"name": "third", "request": {"method": "DELETE", "url": {"raw": "https://a.test/3"}}}
          ]
        }
      ]
    },
    {"name": "fourth", "request": {"method": "PATCH", "url": "https://a.test/4"}}
  ]
}`

func mustParse(t *testing.T, text string) any {
	t.Helper()
	doc, err := Parse(text)
	require.NoError(t, err)
	return doc
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"flat collection", flatDoc, true},
		{"nested folders", nestedDoc, true},
		{"empty item list", `{"info": {"name": "x"}, "item": []}`, true},
		{"missing info.name", `{"info": {}, "item": []}`, false},
		{"empty info.name", `{"info": {"name": ""}, "item": []}`, false},
		{"missing info", `{"item": []}`, false},
		{"item not an array", `{"info": {"name": "x"}, "item": {}}`, false},
		{"item missing", `{"info": {"name": "x"}}`, false},
		{"unknown method", `{"info": {"name": "x"}, "item": [{"name": "a", "request": {"method": "FOO", "url": "https://a"}}]}`, false},
		{"lowercase method", `{"info": {"name": "x"}, "item": [{"name": "a", "request": {"method": "get", "url": "https://a"}}]}`, false},
		{"missing url", `{"info": {"name": "x"}, "item": [{"name": "a", "request": {"method": "GET"}}]}`, false},
		{"url object without raw", `{"info": {"name": "x"}, "item": [{"name": "a", "request": {"method": "GET", "url": {"host": ["a"]}}}]}`, false},
		{"url number", `{"info": {"name": "x"}, "item": [{"name": "a", "request": {"method": "GET", "url": 5}}]}`, false},
		{"item without request or children", `{"info": {"name": "x"}, "item": [{"name": "a"}]}`, false},
		{"invalid leaf inside folder", `{"info": {"name": "x"}, "item": [{"name": "f", "item": [{"name": "a", "request": {"method": "FOO", "url": "u"}}]}]}`, false},
		{"header without key", `{"info": {"name": "x"}, "item": [{"name": "a", "request": {"method": "GET", "url": "u", "header": [{"value": "v"}]}}]}`, false},
		{"not an object", `[1, 2]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, Validate(mustParse(t, tt.doc)))
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse(`{"info": `)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdef.ErrFormat)
	assert.NotErrorIs(t, err, errdef.ErrValidation)
}

func TestDecodeErrorKinds(t *testing.T) {
	_, err := Decode(`not json`)
	assert.ErrorIs(t, err, errdef.ErrFormat)

	_, err = Decode(`{"info": {"name": "x"}, "item": "nope"}`)
	assert.ErrorIs(t, err, errdef.ErrValidation)
}

func TestImportFlat(t *testing.T) {
	c, err := Import(mustParse(t, flatDoc))
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Users API", c.Name)
	require.Len(t, c.Requests, 2)

	list := c.Requests[0]
	assert.NotEmpty(t, list.ID)
	assert.Equal(t, "List users", list.Name)
	assert.Equal(t, model.MethodGet, list.Method)
	assert.Equal(t, "https://api.example.com/users?page=2&sort=name", list.URL)
	assert.Equal(t, model.Headers{"Accept": {Value: "application/json", Enabled: true}}, list.Headers)
	assert.Equal(t, "", list.Body)

	create := c.Requests[1]
	assert.Equal(t, "{{base}}/users", create.URL)
	assert.Equal(t, `{"name": "Ada"}`, create.Body)
	assert.Len(t, create.Headers, 2)
	assert.True(t, create.Headers["X-Trace"].Enabled)

	assert.NotEqual(t, list.ID, create.ID)
}

func TestImportEnablesDisabledHeaders(t *testing.T) {
	doc := `{
  "info": {"name": "Flags"},
  "item": [{
    "name": "one",
    "request": {
      "method": "GET",
      "header": [{"key": "X-A", "value": "1", "disabled": true}, {"key": "X-B", "value": "2"}],
      "url": "https://a.test"
    }
  }]
}`
	c, err := Import(mustParse(t, doc))
	require.NoError(t, err)
	require.Len(t, c.Requests, 1)
	assert.Equal(t, model.Headers{
		"X-A": {Value: "1", Enabled: true},
		"X-B": {Value: "2", Enabled: true},
	}, c.Requests[0].Headers)
}

func TestImportFlattensDepthFirst(t *testing.T) {
	c, err := Import(mustParse(t, nestedDoc))
	require.NoError(t, err)

	var names []string
	for _, r := range c.Requests {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, names)
	assert.Equal(t, "https://a.test/3", c.Requests[2].URL)
}

func TestImportFreshIDsEachTime(t *testing.T) {
	doc := mustParse(t, flatDoc)
	a, err := Import(doc)
	require.NoError(t, err)
	b, err := Import(doc)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Requests[0].ID, b.Requests[0].ID)
}

func TestImportRejectsInvalid(t *testing.T) {
	_, err := Import(mustParse(t, `{"info": {"name": "x"}, "item": [{"name": "a", "request": {"method": "FOO", "url": "u"}}]}`))
	assert.ErrorIs(t, err, errdef.ErrValidation)
}

type requestShape struct {
	Method  model.Method
	URL     string
	Headers model.Headers
	Body    string
}

func strip(c model.Collection) []requestShape {
	out := make([]requestShape, len(c.Requests))
	for i, r := range c.Requests {
		out[i] = requestShape{Method: r.Method, URL: r.URL, Headers: r.Headers, Body: r.Body}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	first, err := Import(mustParse(t, flatDoc))
	require.NoError(t, err)

	exported, err := Export(first)
	require.NoError(t, err)

	second, err := Decode(exported)
	require.NoError(t, err)

	assert.Equal(t, strip(first), strip(second))
	assert.Equal(t, first.Name, second.Name)
}

func TestExportShape(t *testing.T) {
	c := model.Collection{
		ID:   "col-1",
		Name: "Export me",
		Requests: []model.Request{
			{
				ID:     "r1",
				Name:   "search",
				Method: model.MethodGet,
				URL:    "https://api.example.com:8443/v1/search?q=a%20b&limit=10",
				Headers: model.Headers{
					"Accept":   {Value: "*/*", Enabled: true},
					"X-Hidden": {Value: "secret", Enabled: false},
				},
			},
			{
				ID:     "r2",
				Name:   "templated",
				Method: model.MethodPost,
				URL:    "{{base}}/items",
				Body:   `<b>&</b>`,
			},
		},
	}

	out, err := Export(c)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	info := doc["info"].(map[string]any)
	assert.Equal(t, "col-1", info["_postman_id"])
	assert.Equal(t, "Export me", info["name"])
	assert.Equal(t, SchemaURL, info["schema"])

	items := doc["item"].([]any)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)["request"].(map[string]any)
	headers := first["header"].([]any)
	require.Len(t, headers, 1)
	assert.Equal(t, map[string]any{"key": "Accept", "value": "*/*", "type": "text"}, headers[0])
	assert.NotContains(t, first, "body")

	u := first["url"].(map[string]any)
	assert.Equal(t, "https", u["protocol"])
	assert.Equal(t, []any{"api", "example", "com"}, u["host"])
	assert.Equal(t, "8443", u["port"])
	assert.Equal(t, []any{"v1", "search"}, u["path"])
	assert.Equal(t, []any{
		map[string]any{"key": "q", "value": "a b"},
		map[string]any{"key": "limit", "value": "10"},
	}, u["query"])

	second := items[1].(map[string]any)["request"].(map[string]any)
	assert.Equal(t, map[string]any{"raw": "{{base}}/items"}, second["url"])
	assert.Equal(t, []any{}, second["header"])
	assert.Equal(t, map[string]any{"mode": "raw", "raw": "<b>&</b>"}, second["body"])
	assert.Contains(t, out, `"raw": "<b>&</b>"`)
}

func TestDecomposeURLFallback(t *testing.T) {
	assert.Equal(t, PostmanURL{Raw: "not a url"}, DecomposeURL("not a url"))
	assert.Equal(t, PostmanURL{Raw: "https://{{host}}/x"}, DecomposeURL("https://{{host}}/x"))
}

func TestPostmanURLUnmarshal(t *testing.T) {
	var u PostmanURL
	require.NoError(t, json.Unmarshal([]byte(`"https://a.test"`), &u))
	assert.Equal(t, "https://a.test", u.Raw)

	require.NoError(t, json.Unmarshal([]byte(`{"raw": "https://b.test", "path": ["x"]}`), &u))
	assert.Equal(t, "https://b.test", u.Raw)
	assert.Equal(t, []string{"x"}, u.Path)
}
