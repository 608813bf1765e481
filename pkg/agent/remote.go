// Package agent connects the runner to a browsing agent sidecar over HTTP.
// The runner never talks to a model directly; it hands the sidecar a goal
// and gets back a trace of the actions the agent performed.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
)

// RemoteRunner is an HTTP implementation of core.AgentRunner.
type RemoteRunner struct {
	baseURL string
	client  *http.Client
}

// NewRemoteRunner creates a runner against the sidecar at baseURL.
// Timeouts are enforced by the caller's context, not the HTTP client.
func NewRemoteRunner(baseURL string) *RemoteRunner {
	return &RemoteRunner{
		baseURL: baseURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type runRequest struct {
	Goal      string `json:"goal"`
	PageURL   string `json:"pageUrl,omitempty"`
	PageTitle string `json:"pageTitle,omitempty"`
}

type runResponse struct {
	FinalState string             `json:"finalState"`
	Trace      []core.AgentAction `json:"trace"`
	Error      string             `json:"error,omitempty"`
}

// Run asks the sidecar to pursue the goal and returns the resulting trace.
func (r *RemoteRunner) Run(ctx context.Context, goal string, page *core.PageContext) (*core.AgentResult, error) {
	req := runRequest{Goal: goal}
	if page != nil {
		req.PageURL = page.URL
		req.PageTitle = page.Title
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := r.baseURL + "/v1/runs"
	logger.Debug("agent: POST %s goal=%q", url, goal)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, core.ErrAgentExecution.WithMessage("agent sidecar unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, core.ErrAgentExecution.WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.ErrAgentExecution.WithMessage(
			fmt.Sprintf("agent sidecar returned %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var out runResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, core.ErrAgentExecution.WithMessage("malformed agent response").WithCause(err)
	}

	result := &core.AgentResult{Trace: out.Trace, Final: core.AgentFailed}
	if out.FinalState == "succeeded" {
		result.Final = core.AgentSucceeded
	}
	if out.Error != "" {
		logger.Warn("agent: run finished with error: %s", out.Error)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
