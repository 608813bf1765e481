// Package storage persists workflow definitions on disk: one
// <id>.workflow.json file per workflow plus a metadata.json catalog of
// summaries. Writes go to a temporary file in the same directory and are
// atomically renamed into place, so a reader never observes a partially
// written definition.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// ErrNotFound is returned when no workflow exists under the given id.
var ErrNotFound = errors.New("workflow not found")

// Summary is the catalog entry for a stored workflow.
type Summary struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Version        string                  `json:"version,omitempty"`
	GenerationMode workflow.GenerationMode `json:"generationMode"`
	SourceTask     string                  `json:"sourceTask,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
	FilePath       string                  `json:"filePath"`
}

// Filter narrows List results. Zero value matches everything.
type Filter struct {
	Query          string                  // substring match on name or source task
	GenerationMode workflow.GenerationMode // exact match when non-empty
}

// Service is a file-backed workflow store. It is safe for use by concurrent
// executions; it is the one shared mutable resource between them.
type Service struct {
	dir string

	mu    sync.Mutex
	index map[string]Summary
}

// New opens (or initializes) a store rooted at dir.
func New(dir string) (*Service, error) {
	s := &Service{dir: dir, index: map[string]Summary{}}
	if err := os.MkdirAll(s.workflowsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) workflowsDir() string { return filepath.Join(s.dir, "workflows") }
func (s *Service) indexPath() string    { return filepath.Join(s.dir, "metadata.json") }

func (s *Service) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := json.Unmarshal(data, &s.index); err != nil {
		return fmt.Errorf("corrupt catalog %s: %w", s.indexPath(), err)
	}
	logger.Debug("storage: loaded %d catalog entries", len(s.index))
	return nil
}

// Put persists a definition and returns its id, assigning one if the
// definition carries none. The definition must pass validation first.
func (s *Service) Put(def *workflow.Definition) (string, error) {
	if err := workflow.Validate(def); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	data, err := workflow.Serialize(def)
	if err != nil {
		return "", fmt.Errorf("failed to serialize workflow: %w", err)
	}

	path := filepath.Join(s.workflowsDir(), def.ID+".workflow.json")
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	summary, exists := s.index[def.ID]
	if !exists {
		summary = Summary{ID: def.ID, CreatedAt: now}
	}
	summary.Name = def.Name
	summary.Version = def.Version
	summary.GenerationMode = def.Metadata.GenerationMode
	summary.SourceTask = def.Metadata.SourceTask
	summary.UpdatedAt = now
	summary.FilePath = path
	s.index[def.ID] = summary

	if err := s.saveIndexLocked(); err != nil {
		return "", err
	}
	logger.Info("storage: saved workflow %q as %s", def.Name, def.ID)
	return def.ID, nil
}

// Get retrieves a definition by id.
func (s *Service) Get(id string) (*workflow.Definition, error) {
	s.mu.Lock()
	summary, ok := s.index[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return workflow.ParseFile(summary.FilePath)
}

// GetByName retrieves a definition by display name.
func (s *Service) GetByName(name string) (*workflow.Definition, error) {
	s.mu.Lock()
	var id string
	for _, summary := range s.index {
		if summary.Name == name {
			id = summary.ID
			break
		}
	}
	s.mu.Unlock()
	if id == "" {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

// List returns the catalog entries matching the filter, ordered by creation
// time then id for stability.
func (s *Service) List(filter Filter) []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := strings.ToLower(filter.Query)
	var out []Summary
	for _, summary := range s.index {
		if filter.GenerationMode != "" && summary.GenerationMode != filter.GenerationMode {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(summary.Name), query) &&
			!strings.Contains(strings.ToLower(summary.SourceTask), query) {
			continue
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a workflow and its catalog entry.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	if err := os.Remove(summary.FilePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("storage: failed to remove %s: %v", summary.FilePath, err)
	}
	delete(s.index, id)
	if err := s.saveIndexLocked(); err != nil {
		return err
	}
	logger.Info("storage: deleted workflow %s", id)
	return nil
}

func (s *Service) saveIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return writeAtomic(s.indexPath(), data)
}

// writeAtomic writes data to a temporary file in path's directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
