package workflow

import (
	"fmt"
	"regexp"
)

// refPattern matches ${name} variable references in argument templates.
var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// TemplateError reports a reference to a name that is not resolvable
// in the rendering scope.
type TemplateError struct {
	Ref      string
	Template string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("unresolved reference ${%s} in template %q", e.Ref, e.Template)
}

// TemplateRefs returns the distinct variable names referenced by a template,
// in order of first appearance.
func TemplateRefs(template string) []string {
	var refs []string
	seen := map[string]bool{}
	for _, m := range refPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

// Render substitutes ${name} references with values. It fails with a
// TemplateError on the first reference missing from values.
func Render(template string, values map[string]string) (string, error) {
	var missing *TemplateError
	out := refPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := refPattern.FindStringSubmatch(m)[1]
		v, ok := values[name]
		if !ok {
			if missing == nil {
				missing = &TemplateError{Ref: name, Template: template}
			}
			return m
		}
		return v
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Placeholder returns the template reference syntax for a variable name.
func Placeholder(name string) string {
	return "${" + name + "}"
}
