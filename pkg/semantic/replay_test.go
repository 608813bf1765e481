package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// mockSurface implements Surface for testing.
type mockSurface struct {
	performFunc func(action *RemoteAction) error
	readFunc    func(action *RemoteAction) (string, error)

	performed []RemoteAction
	reads     []RemoteAction
}

func (m *mockSurface) Perform(ctx context.Context, action *RemoteAction) error {
	m.performed = append(m.performed, *action)
	if m.performFunc != nil {
		return m.performFunc(action)
	}
	return nil
}

func (m *mockSurface) Read(ctx context.Context, action *RemoteAction) (string, error) {
	m.reads = append(m.reads, *action)
	if m.readFunc != nil {
		return m.readFunc(action)
	}
	return "read-value", nil
}

func semanticDefinition() *workflow.Definition {
	return &workflow.Definition{
		ID:   "wf-sem",
		Name: "semantic",
		Variables: []workflow.Variable{
			{Name: "query", Type: workflow.TypeString},
		},
		Steps: []workflow.Step{
			&workflow.ActionStep{
				BaseStep: workflow.BaseStep{StepIndex: 0},
				Action:   workflow.ActionNavigate,
				Value:    "https://example.com",
			},
			&workflow.ActionStep{
				BaseStep: workflow.BaseStep{StepIndex: 1},
				Action:   workflow.ActionInput,
				Target:   workflow.Target{CSS: "#q", ElementHash: "h-q", ElementTag: "input"},
				Value:    "${query}",
			},
			&workflow.ExtractionStep{
				BaseStep: workflow.BaseStep{StepIndex: 2},
				Target:   workflow.Target{CSS: ".count", ElementHash: "h-count"},
				Output:   "count",
			},
		},
	}
}

func TestReplay(t *testing.T) {
	surface := &mockSurface{}
	outputs, err := Replay(context.Background(), semanticDefinition(), map[string]any{"query": "laptop"}, surface)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if len(surface.performed) != 2 {
		t.Fatalf("expected 2 performed actions, got %d", len(surface.performed))
	}
	if surface.performed[0].Name != RemoteNavigate || surface.performed[0].Argument != "https://example.com" {
		t.Errorf("action 0 = %+v", surface.performed[0])
	}
	if surface.performed[1].Name != RemoteFill || surface.performed[1].ElementID != "h-q" || surface.performed[1].Argument != "laptop" {
		t.Errorf("action 1 = %+v", surface.performed[1])
	}
	if len(surface.reads) != 1 || surface.reads[0].ElementID != "h-count" {
		t.Errorf("reads = %+v", surface.reads)
	}
	if outputs["count"] != "read-value" {
		t.Errorf("outputs = %v", outputs)
	}
}

func TestReplay_AgentStepIsUnmappable(t *testing.T) {
	def := semanticDefinition()
	def.Steps = append(def.Steps, &workflow.AgentStep{
		BaseStep: workflow.BaseStep{StepIndex: 3},
		Goal:     "handle anything unexpected",
	})

	_, err := Replay(context.Background(), def, map[string]any{"query": "x"}, &mockSurface{})
	if err == nil {
		t.Fatal("expected unmappable error for agent step")
	}
	if !errors.Is(err, core.ErrUnmappableAction) {
		t.Errorf("expected ErrUnmappableAction, got %v", err)
	}
}

func TestReplay_MissingVariable(t *testing.T) {
	surface := &mockSurface{}
	_, err := Replay(context.Background(), semanticDefinition(), nil, surface)
	if !errors.Is(err, core.ErrMissingVariable) {
		t.Errorf("expected ErrMissingVariable, got %v", err)
	}
	if len(surface.performed) != 0 {
		t.Error("no actions may run on binding failure")
	}
}

func TestReplay_SurfaceErrorIsTerminal(t *testing.T) {
	surface := &mockSurface{
		performFunc: func(action *RemoteAction) error {
			if action.Name == RemoteFill {
				return errors.New("element detached")
			}
			return nil
		},
	}
	_, err := Replay(context.Background(), semanticDefinition(), map[string]any{"query": "x"}, surface)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(surface.reads) != 0 {
		t.Error("replay must stop at the first failure")
	}
}

func TestReplay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Replay(ctx, semanticDefinition(), map[string]any{"query": "x"}, &mockSurface{})
	if !errors.Is(err, core.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestMapAction(t *testing.T) {
	tests := []struct {
		kind     workflow.ActionKind
		wantName string
	}{
		{workflow.ActionNavigate, RemoteNavigate},
		{workflow.ActionClick, RemoteClick},
		{workflow.ActionInput, RemoteFill},
		{workflow.ActionSelect, RemoteSelect},
		{workflow.ActionKeyPress, RemotePress},
		{workflow.ActionScroll, RemoteScroll},
	}
	for _, tt := range tests {
		step := &workflow.ActionStep{
			BaseStep: workflow.BaseStep{StepIndex: 0},
			Action:   tt.kind,
			Target:   workflow.Target{ElementHash: "h-1"},
		}
		action, err := MapAction(step, "arg")
		if err != nil {
			t.Errorf("MapAction(%s) failed: %v", tt.kind, err)
			continue
		}
		if action.Name != tt.wantName {
			t.Errorf("MapAction(%s).Name = %q, want %q", tt.kind, action.Name, tt.wantName)
		}
	}
}

func TestMapAction_NoSemanticIdentity(t *testing.T) {
	step := &workflow.ActionStep{
		BaseStep: workflow.BaseStep{StepIndex: 4},
		Action:   workflow.ActionClick,
		Target:   workflow.Target{CSS: "#only-css"},
	}
	_, err := MapAction(step, "")
	if !errors.Is(err, core.ErrUnmappableAction) {
		t.Errorf("expected ErrUnmappableAction, got %v", err)
	}
}

func TestMapExtraction_NoSemanticIdentity(t *testing.T) {
	step := &workflow.ExtractionStep{
		BaseStep: workflow.BaseStep{StepIndex: 0},
		Target:   workflow.Target{CSS: ".x"},
		Output:   "v",
	}
	_, err := MapExtraction(step)
	if !errors.Is(err, core.ErrUnmappableAction) {
		t.Errorf("expected ErrUnmappableAction, got %v", err)
	}
}
