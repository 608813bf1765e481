// Package remote drives a browser through a websocket companion process.
// Requests and responses are JSON frames correlated by id, so several
// in-flight calls can share one connection.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/semantic"
)

// DefaultRequestTimeout bounds a single round trip to the companion.
const DefaultRequestTimeout = 30 * time.Second

type request struct {
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type response struct {
	ID      int64           `json:"id"`
	Error   string          `json:"error,omitempty"`
	Retry   bool            `json:"retry,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Driver is a websocket-backed implementation of core.Driver. It also
// satisfies semantic.Surface, so no-AI replay can reuse the same connection.
type Driver struct {
	url     string
	timeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  int64
	pending map[int64]chan response
	readErr error
}

// New creates a driver that will connect to the companion at url.
func New(url string) *Driver {
	return &Driver{
		url:     url,
		timeout: DefaultRequestTimeout,
		pending: map[int64]chan response{},
	}
}

// OpenSession dials the companion and starts a fresh browser session.
func (d *Driver) OpenSession(ctx context.Context) error {
	d.mu.Lock()
	if d.conn != nil {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	logger.Info("remote: connecting to %s", d.url)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", d.url, err)
	}

	d.mu.Lock()
	d.conn = conn
	d.readErr = nil
	d.mu.Unlock()

	go d.readLoop(conn)

	_, err = d.call(ctx, "session.open", nil)
	return err
}

// CloseSession ends the browser session and closes the connection.
func (d *Driver) CloseSession(ctx context.Context) error {
	_, callErr := d.call(ctx, "session.close", nil)

	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil && callErr == nil {
			callErr = err
		}
	}
	return callErr
}

// Act asks the companion to perform a CSS/XPath-addressed action.
func (d *Driver) Act(ctx context.Context, action core.ActionDescriptor) (*core.ActResult, error) {
	payload, err := json.Marshal(action)
	if err != nil {
		return nil, err
	}
	resp, err := d.call(ctx, "page.act", payload)
	if err != nil {
		return nil, err
	}
	if resp.Retry {
		return &core.ActResult{Status: core.ActNotReady, Message: resp.Error}, nil
	}
	if resp.Error != "" {
		return nil, core.ErrActionRejected.WithMessage(resp.Error)
	}
	return &core.ActResult{Status: core.ActReady}, nil
}

// Extract reads text content from the target element.
func (d *Driver) Extract(ctx context.Context, extraction core.ExtractionDescriptor) (string, error) {
	payload, err := json.Marshal(extraction)
	if err != nil {
		return "", err
	}
	resp, err := d.call(ctx, "page.extract", payload)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", core.ErrActionRejected.WithMessage(resp.Error)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		return "", fmt.Errorf("malformed extract response: %w", err)
	}
	return out.Text, nil
}

// PageContext reports the current page URL and title.
func (d *Driver) PageContext(ctx context.Context) (*core.PageContext, error) {
	resp, err := d.call(ctx, "page.context", nil)
	if err != nil {
		return nil, err
	}
	var page core.PageContext
	if err := json.Unmarshal(resp.Payload, &page); err != nil {
		return nil, fmt.Errorf("malformed page context: %w", err)
	}
	return &page, nil
}

// Perform executes a semantic action addressed by element hash.
func (d *Driver) Perform(ctx context.Context, action *semantic.RemoteAction) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return err
	}
	resp, err := d.call(ctx, "semantic.perform", payload)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return core.ErrActionRejected.WithMessage(resp.Error)
	}
	return nil
}

// Read executes a semantic extraction addressed by element hash.
func (d *Driver) Read(ctx context.Context, action *semantic.RemoteAction) (string, error) {
	payload, err := json.Marshal(action)
	if err != nil {
		return "", err
	}
	resp, err := d.call(ctx, "semantic.read", payload)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", core.ErrActionRejected.WithMessage(resp.Error)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		return "", fmt.Errorf("malformed read response: %w", err)
	}
	return out.Text, nil
}

func (d *Driver) call(ctx context.Context, method string, payload json.RawMessage) (*response, error) {
	d.mu.Lock()
	conn := d.conn
	if conn == nil {
		err := d.readErr
		d.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("connection lost: %w", err)
		}
		return nil, fmt.Errorf("not connected")
	}
	d.nextID++
	id := d.nextID
	ch := make(chan response, 1)
	d.pending[id] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	if err := conn.WriteJSON(request{ID: id, Method: method, Payload: payload}); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	timeout := d.timeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("connection lost during %s", method)
		}
		return &resp, nil
	case <-timer.C:
		return nil, core.ErrTimeout.WithMessage(fmt.Sprintf("%s timed out after %s", method, timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Driver) readLoop(conn *websocket.Conn) {
	for {
		var resp response
		if err := conn.ReadJSON(&resp); err != nil {
			logger.Warn("remote: connection closed: %v", err)
			d.mu.Lock()
			if d.conn == conn {
				d.conn = nil
				d.readErr = err
			}
			for id, ch := range d.pending {
				close(ch)
				delete(d.pending, id)
			}
			d.mu.Unlock()
			return
		}
		d.mu.Lock()
		ch, ok := d.pending[resp.ID]
		d.mu.Unlock()
		if !ok {
			logger.Debug("remote: dropping response for unknown request %d", resp.ID)
			continue
		}
		ch <- resp
	}
}
