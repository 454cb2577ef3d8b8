// Package codegen renders a request as a snippet in another tool or language.
package codegen

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/webmip/postbank/internal/errdef"
	"github.com/webmip/postbank/internal/model"
)

type generator func(r model.Request) string

var generators = map[string]generator{
	"curl":       curl,
	"javascript": javascript,
	"python":     python,
	"php":        php,
}

// Languages lists the supported targets, sorted.
func Languages() []string {
	out := make([]string, 0, len(generators))
	for name := range generators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Generate renders r for lang. Only enabled headers are included and the
// body is omitted for GET.
func Generate(r model.Request, lang string) (string, error) {
	gen, ok := generators[strings.ToLower(lang)]
	if !ok {
		return "", errdef.InvalidInput("generate code", "language %q not supported (want one of %s)", lang, strings.Join(Languages(), ", "))
	}
	return gen(r), nil
}

func hasBody(r model.Request) bool {
	return r.Body != "" && r.Method != model.MethodGet
}

type header struct{ key, value string }

func enabledHeaders(r model.Request) []header {
	enabled := r.Headers.Enabled()
	keys := make([]string, 0, len(enabled))
	for k := range enabled {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]header, len(keys))
	for i, k := range keys {
		out[i] = header{key: k, value: enabled[k]}
	}
	return out
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// singleQuoted escapes s for a single-quoted JS, Python or PHP literal.
func singleQuoted(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func headerObject(r model.Request) string {
	m := r.Headers.Enabled()
	data, _ := json.MarshalIndent(m, "  ", "  ")
	return string(data)
}

func curl(r model.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "curl -X %s %s", r.Method, shellQuote(r.URL))
	for _, h := range enabledHeaders(r) {
		fmt.Fprintf(&b, " \\\n  -H %s", shellQuote(h.key+": "+h.value))
	}
	if hasBody(r) {
		fmt.Fprintf(&b, " \\\n  -d %s", shellQuote(r.Body))
	}
	return b.String()
}

func javascript(r model.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch(%s, {\n", singleQuoted(r.URL))
	fmt.Fprintf(&b, "  method: %s,\n", singleQuoted(string(r.Method)))
	fmt.Fprintf(&b, "  headers: %s,\n", headerObject(r))
	if hasBody(r) {
		fmt.Fprintf(&b, "  body: %s,\n", singleQuoted(r.Body))
	}
	b.WriteString("})\n")
	b.WriteString("  .then(response => response.json())\n")
	b.WriteString("  .then(data => console.log(data))\n")
	b.WriteString("  .catch(error => console.error('Error:', error));")
	return b.String()
}

func python(r model.Request) string {
	var b strings.Builder
	b.WriteString("import requests\n\n")
	fmt.Fprintf(&b, "response = requests.request(\n")
	fmt.Fprintf(&b, "    %s,\n", singleQuoted(string(r.Method)))
	fmt.Fprintf(&b, "    %s,\n", singleQuoted(r.URL))
	b.WriteString("    headers={")
	hs := enabledHeaders(r)
	for i, h := range hs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", singleQuoted(h.key), singleQuoted(h.value))
	}
	b.WriteString("},\n")
	if hasBody(r) {
		fmt.Fprintf(&b, "    data=%s,\n", singleQuoted(r.Body))
	}
	b.WriteString(")\n\nprint(response.text)")
	return b.String()
}

func php(r model.Request) string {
	var b strings.Builder
	b.WriteString("<?php\n$curl = curl_init();\n\n")
	b.WriteString("curl_setopt_array($curl, [\n")
	fmt.Fprintf(&b, "    CURLOPT_URL => %s,\n", singleQuoted(r.URL))
	b.WriteString("    CURLOPT_RETURNTRANSFER => true,\n")
	fmt.Fprintf(&b, "    CURLOPT_CUSTOMREQUEST => %s,\n", singleQuoted(string(r.Method)))
	if hasBody(r) {
		fmt.Fprintf(&b, "    CURLOPT_POSTFIELDS => %s,\n", singleQuoted(r.Body))
	}
	b.WriteString("]);\n\n$headers = [];\n")
	for _, h := range enabledHeaders(r) {
		fmt.Fprintf(&b, "$headers[] = %s;\n", singleQuoted(h.key+": "+h.value))
	}
	b.WriteString("curl_setopt($curl, CURLOPT_HTTPHEADER, $headers);\n\n")
	b.WriteString("$response = curl_exec($curl);\n$err = curl_error($curl);\n\ncurl_close($curl);\n\n")
	b.WriteString("if ($err) {\n    echo \"Error: \" . $err;\n} else {\n    echo $response;\n}")
	return b.String()
}
