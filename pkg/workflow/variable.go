package workflow

// VarType is the declared type of a workflow variable.
type VarType string

// Variable type constants.
const (
	TypeString VarType = "string"
	TypeNumber VarType = "number"
	TypeBool   VarType = "bool"
	TypeEnum   VarType = "enum"
)

// Variable is a declared workflow input. Name is unique within a workflow.
// Default, when set, must match the declared type (enforced by Validate).
type Variable struct {
	Name    string   `json:"name"`
	Type    VarType  `json:"type"`
	Default any      `json:"default,omitempty"`
	Options []string `json:"options,omitempty"` // enum choices, TypeEnum only
}

// HasDefault reports whether the variable declares a default value.
func (v Variable) HasDefault() bool { return v.Default != nil }

// Matches reports whether value conforms to the variable's declared type.
// JSON decoding yields float64 for numbers, so that is the numeric shape
// accepted here.
func (v Variable) Matches(value any) bool {
	switch v.Type {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeEnum:
		s, ok := value.(string)
		if !ok {
			return false
		}
		for _, opt := range v.Options {
			if s == opt {
				return true
			}
		}
		return false
	}
	return false
}
