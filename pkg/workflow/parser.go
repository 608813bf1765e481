package workflow

import (
	"encoding/json"
	"fmt"
	"os"
)

// ParseError reports a workflow file that could not be decoded.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ParseFile parses and validates a workflow definition file
// (the .workflow.json format).
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is a user-provided workflow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return def, nil
}

// Parse decodes a serialized definition and validates it.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid workflow JSON: %v", err)}
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Serialize encodes a definition for persistence. Serialization round-trips
// exactly: Parse(Serialize(d)) yields an equal definition, including step
// ordering and variable declaration order.
func Serialize(d *Definition) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
