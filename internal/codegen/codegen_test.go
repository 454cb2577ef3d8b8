package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

func sample() model.Request {
	return model.Request{
		Method: model.MethodPost,
		URL:    "https://api.test/items",
		Headers: model.Headers{
			"Content-Type": {Value: "application/json", Enabled: true},
			"X-Off":        {Value: "hidden", Enabled: false},
		},
		Body: `{"name":"it's"}`,
	}
}

func TestCurl(t *testing.T) {
	got, err := Generate(sample(), "curl")
	require.NoError(t, err)
	want := "curl -X POST 'https://api.test/items' \\\n" +
		"  -H 'Content-Type: application/json' \\\n" +
		`  -d '{"name":"it'\''s"}'`
	assert.Equal(t, want, got)
}

func TestGetOmitsBody(t *testing.T) {
	r := sample()
	r.Method = model.MethodGet
	for _, lang := range Languages() {
		got, err := Generate(r, lang)
		require.NoError(t, err)
		assert.NotContains(t, got, "name", lang)
	}
}

func TestDisabledHeadersOmitted(t *testing.T) {
	for _, lang := range Languages() {
		got, err := Generate(sample(), lang)
		require.NoError(t, err)
		assert.Contains(t, got, "Content-Type", lang)
		assert.NotContains(t, got, "X-Off", lang)
		assert.Contains(t, got, "https://api.test/items", lang)
	}
}

func TestPython(t *testing.T) {
	got, err := Generate(sample(), "Python")
	require.NoError(t, err)
	assert.Contains(t, got, "headers={'Content-Type': 'application/json'},")
	assert.Contains(t, got, `data='{"name":"it\'s"}',`)
}

func TestUnknownLanguage(t *testing.T) {
	_, err := Generate(sample(), "cobol")
	assert.ErrorIs(t, err, errdef.ErrInvalidInput)
	assert.Equal(t, []string{"curl", "javascript", "php", "python"}, Languages())
}
