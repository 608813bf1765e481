package workflow

import "fmt"

// SchemaError reports a structurally invalid workflow definition. It is
// always fatal; schema defects are never handed to the healing path.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return "invalid workflow definition: " + e.Message
}

func schemaErrorf(format string, args ...any) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a definition:
//   - step indices form a contiguous 0-based sequence
//   - variable names are unique and defaults match their declared type
//   - every template reference resolves to a declared variable or to the
//     output of an earlier extraction step
//
// A definition that passes Validate never fails template rendering during
// execution given fully bound variables.
func Validate(d *Definition) error {
	if d.Name == "" {
		return schemaErrorf("name is required")
	}

	declared := map[string]bool{}
	for _, v := range d.Variables {
		if v.Name == "" {
			return schemaErrorf("variable with empty name")
		}
		if declared[v.Name] {
			return schemaErrorf("duplicate variable %q", v.Name)
		}
		declared[v.Name] = true

		switch v.Type {
		case TypeString, TypeNumber, TypeBool:
		case TypeEnum:
			if len(v.Options) == 0 {
				return schemaErrorf("enum variable %q has no options", v.Name)
			}
		default:
			return schemaErrorf("variable %q has unknown type %q", v.Name, v.Type)
		}

		if v.HasDefault() && !v.Matches(v.Default) {
			return schemaErrorf("variable %q default %v does not match type %s", v.Name, v.Default, v.Type)
		}
	}

	// Extraction outputs become referenceable after the step that produces
	// them, so references are checked in step order.
	scope := map[string]bool{}
	for name := range declared {
		scope[name] = true
	}

	for i, step := range d.Steps {
		if step.Index() != i {
			return schemaErrorf("step at position %d has index %d; indices must be contiguous from 0", i, step.Index())
		}

		switch s := step.(type) {
		case *ActionStep:
			if !IsKnownAction(s.Action) {
				return schemaErrorf("step %d: unknown action kind %q", i, s.Action)
			}
			if s.Action != ActionNavigate && s.Action != ActionScroll && s.Target.IsEmpty() {
				return schemaErrorf("step %d: %s requires a target", i, s.Action)
			}
			for _, ref := range TemplateRefs(s.Value) {
				if !scope[ref] {
					return schemaErrorf("step %d references undeclared variable %q", i, ref)
				}
			}
		case *ExtractionStep:
			if s.Output == "" {
				return schemaErrorf("step %d: extraction requires an output name", i)
			}
			if s.Target.IsEmpty() {
				return schemaErrorf("step %d: extraction requires a target", i)
			}
			if declared[s.Output] {
				return schemaErrorf("step %d: output %q shadows a declared variable", i, s.Output)
			}
			if scope[s.Output] {
				return schemaErrorf("step %d: duplicate extraction output %q", i, s.Output)
			}
			scope[s.Output] = true
		case *AgentStep:
			if s.Goal == "" {
				return schemaErrorf("step %d: agent step requires a goal", i)
			}
		default:
			return schemaErrorf("step %d: unknown step variant %T", i, step)
		}
	}

	return nil
}
