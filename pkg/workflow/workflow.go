package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// GenerationMode records how a workflow was created.
type GenerationMode string

// Generation mode constants.
const (
	ModeRecorded GenerationMode = "recorded"
	ModeAgent    GenerationMode = "agent-generated"
)

// Metadata carries creation information for a definition.
type Metadata struct {
	GenerationMode GenerationMode `json:"generationMode"`
	SourceTask     string         `json:"sourceTask,omitempty"` // task prompt, agent-generated only
	CreatedAt      time.Time      `json:"createdAt"`
}

// Definition is a persisted, parameterized browser workflow. Definitions are
// immutable once persisted; a new version is a new identifier or an explicit
// Version bump.
type Definition struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Version   string     `json:"version,omitempty"`
	Variables []Variable `json:"variables"`
	Steps     []Step     `json:"steps"`
	Metadata  Metadata   `json:"metadata"`
}

// definitionJSON mirrors Definition with raw steps for two-phase decoding.
type definitionJSON struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Version   string            `json:"version,omitempty"`
	Variables []Variable        `json:"variables"`
	Steps     []json.RawMessage `json:"steps"`
	Metadata  Metadata          `json:"metadata"`
}

// MarshalJSON serializes the definition with a type-tagged step array,
// preserving step and variable declaration order.
func (d *Definition) MarshalJSON() ([]byte, error) {
	raw := definitionJSON{
		ID:        d.ID,
		Name:      d.Name,
		Version:   d.Version,
		Variables: d.Variables,
		Metadata:  d.Metadata,
	}
	for _, step := range d.Steps {
		enc, err := marshalStep(step)
		if err != nil {
			return nil, err
		}
		raw.Steps = append(raw.Steps, enc)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes the type-tagged step array back into concrete
// step variants.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw definitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.ID = raw.ID
	d.Name = raw.Name
	d.Version = raw.Version
	d.Variables = raw.Variables
	d.Metadata = raw.Metadata
	d.Steps = nil
	for i, msg := range raw.Steps {
		step, err := unmarshalStep(msg)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		d.Steps = append(d.Steps, step)
	}
	return nil
}

func marshalStep(step Step) ([]byte, error) {
	// Marshal the variant, then splice in the discriminator.
	body, err := json.Marshal(step)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(step.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	return json.Marshal(fields)
}

func unmarshalStep(data []byte) (Step, error) {
	var head struct {
		Type StepKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case KindAction:
		var s ActionStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case KindExtraction:
		var s ExtractionStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case KindAgent:
		var s AgentStep
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("unknown step type %q", head.Type)
	}
}

// Variable returns the declared variable with the given name, if any.
func (d *Definition) Variable(name string) (Variable, bool) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}
