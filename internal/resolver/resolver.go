// Package resolver substitutes {{name}} tokens with environment variables.
package resolver

import (
	"regexp"
	"strings"

	"github.com/webmip/postbank/internal/model"
)

var tokenPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolve replaces every {{name}} token in text with the value of the
// first enabled variable in env whose key equals the trimmed name.
// Unresolvable tokens are kept verbatim. Substituted values are not
// scanned again.
func Resolve(text string, env *model.Environment) string {
	if env == nil || text == "" {
		return text
	}

	matches := tokenPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		name := strings.TrimSpace(text[m[2]:m[3]])
		if value, ok := env.Lookup(name); ok {
			b.WriteString(value)
		} else {
			b.WriteString(text[m[0]:m[1]])
		}
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// Unresolved returns the trimmed names of tokens in text that Resolve
// would leave in place, in order of first appearance.
func Unresolved(text string, env *model.Environment) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if env != nil {
			if _, ok := env.Lookup(name); ok {
				continue
			}
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
