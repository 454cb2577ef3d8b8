package harexport

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmip/postbank/internal/model"
)

func sampleHistory() []model.HistoryEntry {
	return []model.HistoryEntry{
		{
			ID:        2,
			Timestamp: 1700000001000,
			Request: model.Request{
				Method: model.MethodPost,
				URL:    "https://api.test/items?tag=a&tag=b",
				Headers: model.Headers{
					"Content-Type": {Value: "application/json", Enabled: true},
					"X-Off":        {Value: "hidden", Enabled: false},
				},
				Body: `{"name":"x"}`,
			},
			Response: model.Response{
				Status:     201,
				StatusText: "Created",
				Headers:    map[string]string{"content-type": "application/json", "location": "/items/9"},
				Data:       json.RawMessage(`{"id":9}`),
				Time:       42,
				Size:       8,
			},
		},
		{
			ID:        1,
			Timestamp: 1700000000000,
			Request:   model.Request{Method: model.MethodGet, URL: "https://api.test/hello"},
			Response: model.Response{
				Status:     200,
				StatusText: "OK",
				Headers:    map[string]string{"content-type": "text/plain"},
				Data:       json.RawMessage(`"hello <world>"`),
				Time:       3,
				Size:       16,
			},
		},
	}
}

func TestBuild(t *testing.T) {
	doc := Build(sampleHistory(), "1.0.0")

	assert.Equal(t, HARVersion, doc.Log.Version)
	assert.Equal(t, "postbank", doc.Log.Creator.Name)
	assert.Equal(t, "1.0.0", doc.Log.Creator.Version)
	require.Len(t, doc.Log.Entries, 2)

	post := doc.Log.Entries[0]
	assert.Equal(t, "2023-11-14T22:13:21Z", post.Start)
	assert.Equal(t, float64(42), post.Time)
	assert.Equal(t, "POST", post.Request.Method)
	require.Len(t, post.Request.Headers, 1)
	assert.Equal(t, "Content-Type", post.Request.Headers[0].Name)
	require.Len(t, post.Request.QueryParams, 2)
	assert.Equal(t, "tag", post.Request.QueryParams[1].Name)
	assert.Equal(t, "b", post.Request.QueryParams[1].Value)
	assert.Equal(t, `{"name":"x"}`, post.Request.Body.Content)
	assert.Equal(t, "application/json", post.Request.Body.MIMEType)

	assert.Equal(t, 201, post.Response.StatusCode)
	assert.Equal(t, "/items/9", post.Response.RedirectURL)
	assert.Equal(t, `{"id":9}`, post.Response.Body.Content)
	assert.Equal(t, "application/json", post.Response.Body.MIMEType)
	assert.Equal(t, 8, post.Response.Body.Size)
	assert.Equal(t, []string{"content-type", "location"}, []string{post.Response.Headers[0].Name, post.Response.Headers[1].Name})

	get := doc.Log.Entries[1]
	assert.Equal(t, "hello <world>", get.Response.Body.Content)
	assert.Empty(t, get.Request.Body.Content)
	assert.Empty(t, get.Request.QueryParams)
}

func TestBuildEmpty(t *testing.T) {
	doc := Build(nil, "dev")
	assert.NotNil(t, doc.Log.Entries)
	assert.Empty(t, doc.Log.Entries)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleHistory(), "1.0.0"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	log := decoded["log"].(map[string]any)
	assert.Equal(t, "1.2", log["version"])
	assert.Len(t, log["entries"], 2)
	assert.Contains(t, buf.String(), "hello <world>")
}
