package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// TemplateError is returned by RenderStrict when placeholders remain after
// substitution.
type TemplateError struct {
	Unresolved []string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template: unresolved placeholders: %s", strings.Join(e.Unresolved, ", "))
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render replaces every {{name}} placeholder (whitespace-tolerant) with the
// corresponding binding. String bindings are inserted as-is; everything else
// is JSON-encoded. Nil or absent bindings leave the placeholder in place so
// optional sections can survive a partial render.
func Render(template string, bindings map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		value, ok := bindings[name]
		if !ok || value == nil {
			return match
		}
		if s, isString := value.(string); isString {
			return s
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return match
		}
		return string(encoded)
	})
}

// RenderStrict renders and then fails with *TemplateError if any placeholder
// is still present. Use only when every binding is guaranteed.
func RenderStrict(template string, bindings map[string]any) (string, error) {
	result := Render(template, bindings)
	leftover := placeholderRe.FindAllString(result, -1)
	if len(leftover) > 0 {
		return "", &TemplateError{Unresolved: leftover}
	}
	return result, nil
}
