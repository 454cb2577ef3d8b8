// Package auth turns an auth descriptor into request headers or query
// parameters.
package auth

import (
	"encoding/base64"
	"strings"

	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
	"github.com/webmip/postbank/internal/params"
)

// Header names replaced whenever an auth descriptor is applied.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-API-Key"
)

// Locations for api-key auth.
const (
	LocationHeader = "header"
	LocationQuery  = "query"
)

// ParseType validates an auth type name.
func ParseType(s string) (model.AuthType, error) {
	switch t := model.AuthType(strings.ToLower(strings.TrimSpace(s))); t {
	case model.AuthNone, model.AuthBasic, model.AuthBearer, model.AuthAPIKey:
		return t, nil
	case "":
		return model.AuthNone, nil
	default:
		return "", errdef.InvalidInput("auth", "unknown auth type %q (want none, basic, bearer or api-key)", s)
	}
}

// Apply returns a copy of req with req.Auth turned into headers (or a query
// parameter for api-key auth in the query). Existing Authorization and
// X-API-Key headers are removed first. A nil or incomplete descriptor only
// performs the removal.
func Apply(req model.Request) model.Request {
	out := req.Clone()
	if out.Auth == nil {
		return out
	}
	a := *out.Auth

	headers := make(model.Headers, len(out.Headers)+1)
	for k, v := range out.Headers {
		if strings.EqualFold(k, HeaderAuthorization) || strings.EqualFold(k, HeaderAPIKey) {
			continue
		}
		headers[k] = v
	}

	switch a.Type {
	case model.AuthBasic:
		if a.Username != "" && a.Password != "" {
			encoded := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
			headers[HeaderAuthorization] = model.HeaderValue{Value: "Basic " + encoded, Enabled: true}
		}
	case model.AuthBearer:
		if a.Token != "" {
			headers[HeaderAuthorization] = model.HeaderValue{Value: "Bearer " + a.Token, Enabled: true}
		}
	case model.AuthAPIKey:
		if a.APIKey != "" && a.APIValue != "" {
			if a.APIKeyLocation == LocationQuery {
				out.URL = params.Set(out.URL, a.APIKey, a.APIValue)
			} else {
				headers[a.APIKey] = model.HeaderValue{Value: a.APIValue, Enabled: true}
			}
		}
	}

	out.Headers = headers
	return out
}

// Detect recovers a descriptor from an existing Authorization header.
// Anything it does not recognise yields AuthNone.
func Detect(headers model.Headers) model.Auth {
	var value string
	for k, v := range headers {
		if strings.EqualFold(k, HeaderAuthorization) {
			value = v.Value
			break
		}
	}

	switch {
	case strings.HasPrefix(value, "Bearer "):
		return model.Auth{Type: model.AuthBearer, Token: strings.TrimPrefix(value, "Bearer ")}
	case strings.HasPrefix(value, "Basic "):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "Basic "))
		if err != nil {
			return model.Auth{Type: model.AuthNone}
		}
		user, pass, _ := strings.Cut(string(decoded), ":")
		return model.Auth{Type: model.AuthBasic, Username: user, Password: pass}
	}
	return model.Auth{Type: model.AuthNone}
}
