// Package template renders auto-reply response templates. Placeholders use
// the {{name}} form and are substituted from per-conversation customer
// variables. Rendering never fails: a placeholder with no matching variable
// is left verbatim so a misconfigured template still produces a reply.
package template

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {{name}} with optional inner whitespace. Names
// are restricted to word characters, dots, and dashes.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Render substitutes every known placeholder in tmpl with its value from
// vars. Unknown placeholders are preserved as written.
func Render(tmpl string, vars map[string]string) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// Placeholders returns the distinct placeholder names referenced by tmpl, in
// first-appearance order. Used for rule definition linting.
func Placeholders(tmpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tmpl, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
