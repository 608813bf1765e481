// Package mock provides a scriptable driver for testing without a real browser.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
)

// Driver is a mock implementation of core.Driver for testing.
type Driver struct {
	// Configuration
	Config Config

	mu       sync.Mutex
	actions  []core.ActionDescriptor
	attempts map[int]int
	sessions int
	closed   int
	page     core.PageContext
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnAction makes action N fail hard (1-indexed). 0 = never fail.
	FailOnAction int
	// FailError overrides the error returned by FailOnAction.
	FailError error
	// NotReadyAction makes action N report not-ready (1-indexed).
	NotReadyAction int
	// NotReadyCount caps the not-ready reports; 0 means not-ready forever.
	NotReadyCount int
	// ActionDelay adds artificial delay per action.
	ActionDelay time.Duration
	// Extracts maps a target CSS selector to the text Extract returns.
	Extracts map[string]string
	// Page info to report
	PageURL   string
	PageTitle string
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.PageURL == "" {
		cfg.PageURL = "https://mock.local/"
	}
	if cfg.PageTitle == "" {
		cfg.PageTitle = "Mock Page"
	}
	return &Driver{
		Config:   cfg,
		attempts: map[int]int{},
		page:     core.PageContext{URL: cfg.PageURL, Title: cfg.PageTitle},
	}
}

// OpenSession simulates attaching to a browser.
func (d *Driver) OpenSession(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions++
	return nil
}

// CloseSession simulates detaching from the browser.
func (d *Driver) CloseSession(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// Act simulates performing an action and records it for inspection.
func (d *Driver) Act(ctx context.Context, action core.ActionDescriptor) (*core.ActResult, error) {
	if d.Config.ActionDelay > 0 {
		select {
		case <-time.After(d.Config.ActionDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.actions) + 1
	if d.Config.NotReadyAction == n {
		d.attempts[n]++
		if d.Config.NotReadyCount == 0 || d.attempts[n] <= d.Config.NotReadyCount {
			return &core.ActResult{
				Status:  core.ActNotReady,
				Message: fmt.Sprintf("element not interactable yet (attempt %d)", d.attempts[n]),
			}, nil
		}
	}

	d.actions = append(d.actions, action)

	if d.Config.FailOnAction == n {
		err := d.Config.FailError
		if err == nil {
			err = core.ErrActionRejected.WithMessage(fmt.Sprintf("mock failure on action %d", n))
		}
		return nil, err
	}

	if action.Kind == "navigation" && action.Value != "" {
		d.page.URL = action.Value
	}
	return &core.ActResult{Status: core.ActReady, Message: fmt.Sprintf("mock executed: %s", action.Kind)}, nil
}

// Extract returns the configured text for the target, or a placeholder.
func (d *Driver) Extract(ctx context.Context, extraction core.ExtractionDescriptor) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text, ok := d.Config.Extracts[extraction.Target.CSS]; ok {
		return text, nil
	}
	return "mock-extracted-text", nil
}

// PageContext reports the simulated page.
func (d *Driver) PageContext(ctx context.Context) (*core.PageContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	page := d.page
	return &page, nil
}

// Actions returns the actions performed so far, in order.
func (d *Driver) Actions() []core.ActionDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.ActionDescriptor, len(d.actions))
	copy(out, d.actions)
	return out
}

// Sessions reports how many sessions were opened and closed.
func (d *Driver) Sessions() (opened, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions, d.closed
}
