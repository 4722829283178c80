// Package template substitutes {{variable}} placeholders in message templates.
package template

import "regexp"

// placeholderPattern matches a {{name}} placeholder. Names are simple
// identifiers; anything else between braces is left untouched.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render replaces every {{name}} occurrence with the mapped value. Names
// absent from the mapping are replaced with the empty string, not left
// literal. Rendering is pure, order-independent and idempotent: the output
// contains no placeholders, so re-rendering it is a no-op.
func Render(templateStr string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(templateStr, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		return vars[name]
	})
}

// Placeholders returns the distinct placeholder names referenced by a
// template, in first-occurrence order.
func Placeholders(templateStr string) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)

	for _, match := range placeholderPattern.FindAllStringSubmatch(templateStr, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}

	return names
}
