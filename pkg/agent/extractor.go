package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/browserlab-dev/workflow-runner/pkg/builder"
	"github.com/browserlab-dev/workflow-runner/pkg/core"
)

type classifyRequest struct {
	Task       string                     `json:"task"`
	Candidates []builder.LiteralCandidate `json:"candidates"`
}

type classifyResponse struct {
	Classifications []builder.Classification `json:"classifications"`
	Error           string                   `json:"error,omitempty"`
}

// Classify asks the sidecar which recorded literals were task parameters.
// Implements builder.VariableExtractor.
func (r *RemoteRunner) Classify(ctx context.Context, task string, candidates []builder.LiteralCandidate) ([]builder.Classification, error) {
	body, err := json.Marshal(classifyRequest{Task: task, Candidates: candidates})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, core.ErrSynthesis.WithMessage("agent sidecar unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, core.ErrSynthesis.WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.ErrSynthesis.WithMessage(
			fmt.Sprintf("classification returned %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var out classifyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, core.ErrSynthesis.WithMessage("malformed classification response").WithCause(err)
	}
	if out.Error != "" {
		return nil, core.ErrSynthesis.WithMessage(out.Error)
	}
	return out.Classifications, nil
}
