package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmip/postbank/internal/model"
)

func TestParseHeaders(t *testing.T) {
	h := parseHeaders([]string{"Accept: application/json", "X-Token:  abc:def ", "broken"})

	assert.Equal(t, model.Headers{
		"Accept":  {Value: "application/json", Enabled: true},
		"X-Token": {Value: "abc:def", Enabled: true},
	}, h)
}

func TestParseAssignments(t *testing.T) {
	vars, err := parseAssignments([]string{"base=https://a.test", "empty=", " spaced =x=y"})
	require.NoError(t, err)
	assert.Equal(t, []model.Variable{
		{Key: "base", Value: "https://a.test", Enabled: true},
		{Key: "empty", Value: "", Enabled: true},
		{Key: "spaced", Value: "x=y", Enabled: true},
	}, vars)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=v"})
	assert.Error(t, err)
}

func TestSetVariablesKeepsOrder(t *testing.T) {
	existing := []model.Variable{
		{Key: "a", Value: "1", Enabled: true},
		{Key: "b", Value: "2", Enabled: false},
	}
	out := setVariables(existing, []model.Variable{
		{Key: "b", Value: "20", Enabled: true},
		{Key: "c", Value: "3", Enabled: true},
	})

	assert.Equal(t, []model.Variable{
		{Key: "a", Value: "1", Enabled: true},
		{Key: "b", Value: "20", Enabled: true},
		{Key: "c", Value: "3", Enabled: true},
	}, out)
	assert.Equal(t, "2", existing[1].Value)
}

func resetAuthFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		authType, basicUser, bearerToken, apiKeyValue = "", "", "", ""
		apiKeyName, apiKeyInPath = "X-API-Key", "header"
	})
	authType, basicUser, bearerToken, apiKeyValue = "", "", "", ""
	apiKeyName, apiKeyInPath = "X-API-Key", "header"
}

func TestAuthFromFlags(t *testing.T) {
	resetAuthFlags(t)
	a, err := authFromFlags()
	require.NoError(t, err)
	assert.Nil(t, a)

	basicUser = "ada:pa:ss"
	a, err = authFromFlags()
	require.NoError(t, err)
	assert.Equal(t, &model.Auth{Type: model.AuthBasic, Username: "ada", Password: "pa:ss"}, a)

	resetAuthFlags(t)
	bearerToken = "{{token}}"
	a, err = authFromFlags()
	require.NoError(t, err)
	assert.Equal(t, model.AuthBearer, a.Type)
	assert.Equal(t, "{{token}}", a.Token)

	resetAuthFlags(t)
	apiKeyValue = "k"
	apiKeyInPath = "query"
	apiKeyName = "key"
	a, err = authFromFlags()
	require.NoError(t, err)
	assert.Equal(t, &model.Auth{Type: model.AuthAPIKey, APIKey: "key", APIValue: "k", APIKeyLocation: "query"}, a)

	resetAuthFlags(t)
	authType = "none"
	a, err = authFromFlags()
	require.NoError(t, err)
	assert.Equal(t, model.AuthNone, a.Type)
}

func TestAuthFromFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		set  func()
	}{
		{"unknown type", func() { authType = "digest" }},
		{"basic without colon", func() { basicUser = "ada" }},
		{"bearer without token", func() { authType = "bearer" }},
		{"api key without value", func() { authType = "api-key" }},
		{"api key bad location", func() { apiKeyValue = "k"; apiKeyInPath = "cookie" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetAuthFlags(t)
			tt.set()
			_, err := authFromFlags()
			assert.Error(t, err)
		})
	}
}

func TestBuildRequestQueryFlags(t *testing.T) {
	resetAuthFlags(t)
	t.Cleanup(func() { queryParams, headers, data, requestName = nil, nil, "", "" })

	queryParams = []string{"page=2", "q=a b"}
	headers = []string{"Accept: */*"}
	data = `{"x":1}`
	requestName = "search"

	req, err := buildRequest(model.MethodPost, "{{base}}/search?page=1")
	require.NoError(t, err)
	assert.Equal(t, "{{base}}/search?page=2&q=a+b", req.URL)
	assert.Equal(t, `{"x":1}`, req.Body)
	assert.Equal(t, "search", req.Name)
	assert.Nil(t, req.Auth)

	queryParams = []string{"novalue"}
	_, err = buildRequest(model.MethodGet, "https://a.test")
	assert.Error(t, err)
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"get", "post", "put", "patch", "delete", "head", "options", "send",
		"history", "collection", "saved", "env", "cookie", "prefs", "clear", "codegen", "serve"} {
		assert.True(t, names[want], want)
	}
}
