// Package linear implements backend.Adapter against the Linear GraphQL
// API. No Linear SDK exists in the library set this module was built
// from, so this talks to the API directly over net/http -- one of the
// few places in this repo that falls back to the standard library
// rather than a vendored client (see DESIGN.md).
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/pkg/errors"
)

const defaultEndpoint = "https://api.linear.app/graphql"

// CallTimeout bounds every adapter call, matching §5's per-call backend
// RPC timeout.
const CallTimeout = 15 * time.Second

// Adapter talks to Linear's GraphQL API with a personal API key.
type Adapter struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// New returns a Linear adapter authenticated with apiKey.
func New(apiKey string) *Adapter {
	return &Adapter{apiKey: apiKey, endpoint: defaultEndpoint, client: &http.Client{Timeout: CallTimeout}}
}

func (a *Adapter) Tag() string { return "linear" }

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

func (a *Adapter) do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.Wrap(err, "linear: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "linear: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "linear: request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "linear: read response")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("linear: http %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Wrap(err, "linear: decode envelope")
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("linear: graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (a *Adapter) FetchIssue(ctx context.Context, identifier string) (*backend.Issue, error) {
	var out struct {
		Issue *struct {
			ID          string `json:"id"`
			Identifier  string `json:"identifier"`
			Title       string `json:"title"`
			Description string `json:"description"`
			BranchName  string `json:"branchName"`
			State       struct {
				Name string `json:"name"`
			} `json:"state"`
		} `json:"issue"`
	}
	const q = `query($id: String!) { issue(id: $id) { id identifier title description branchName state { name } } }`
	if err := a.do(ctx, q, map[string]any{"id": identifier}, &out); err != nil {
		return nil, err
	}
	if out.Issue == nil {
		return nil, nil
	}
	return &backend.Issue{
		ID:          out.Issue.ID,
		Identifier:  out.Issue.Identifier,
		Title:       out.Issue.Title,
		Description: out.Issue.Description,
		Branch:      out.Issue.BranchName,
		Status:      out.Issue.State.Name,
	}, nil
}

func (a *Adapter) FetchSubtasks(ctx context.Context, parentID string) ([]backend.Issue, error) {
	var out struct {
		Issue struct {
			Children struct {
				Nodes []struct {
					ID         string `json:"id"`
					Identifier string `json:"identifier"`
					Title      string `json:"title"`
					State      struct {
						Name string `json:"name"`
					} `json:"state"`
				} `json:"nodes"`
			} `json:"children"`
		} `json:"issue"`
	}
	const q = `query($id: String!) { issue(id: $id) { children { nodes { id identifier title state { name } } } } }`
	if err := a.do(ctx, q, map[string]any{"id": parentID}, &out); err != nil {
		return nil, err
	}
	issues := make([]backend.Issue, 0, len(out.Issue.Children.Nodes))
	for _, n := range out.Issue.Children.Nodes {
		issues = append(issues, backend.Issue{ID: n.ID, Identifier: n.Identifier, Title: n.Title, Status: n.State.Name})
	}
	return issues, nil
}

func (a *Adapter) UpdateStatus(ctx context.Context, id, targetStatus string) (backend.Result, error) {
	var out struct {
		IssueUpdate struct {
			Success bool `json:"success"`
		} `json:"issueUpdate"`
	}
	const q = `mutation($id: String!, $stateId: String!) { issueUpdate(id: $id, input: { stateId: $stateId }) { success } }`
	if err := a.do(ctx, q, map[string]any{"id": id, "stateId": targetStatus}, &out); err != nil {
		return backend.Result{Success: false, ID: id, Error: err.Error()}, nil
	}
	return backend.Result{Success: out.IssueUpdate.Success, ID: id}, nil
}

func (a *Adapter) AddComment(ctx context.Context, id, body string) (backend.Result, error) {
	var out struct {
		CommentCreate struct {
			Success bool `json:"success"`
		} `json:"commentCreate"`
	}
	const q = `mutation($issueId: String!, $body: String!) { commentCreate(input: { issueId: $issueId, body: $body }) { success } }`
	if err := a.do(ctx, q, map[string]any{"issueId": id, "body": body}, &out); err != nil {
		return backend.Result{Success: false, ID: id, Error: err.Error()}, nil
	}
	return backend.Result{Success: out.CommentCreate.Success, ID: id}, nil
}

func (a *Adapter) CreateIssue(ctx context.Context, input backend.CreateInput) (backend.Issue, backend.Result, error) {
	var out struct {
		IssueCreate struct {
			Success bool `json:"success"`
			Issue   struct {
				ID         string `json:"id"`
				Identifier string `json:"identifier"`
			} `json:"issue"`
		} `json:"issueCreate"`
	}
	const q = `mutation($parentId: String!, $title: String!, $description: String!) {
		issueCreate(input: { parentId: $parentId, title: $title, description: $description }) {
			success issue { id identifier }
		}
	}`
	vars := map[string]any{"parentId": input.ParentID, "title": input.Title, "description": input.Description}
	if err := a.do(ctx, q, vars, &out); err != nil {
		return backend.Issue{}, backend.Result{Success: false, Error: err.Error()}, nil
	}
	iss := backend.Issue{ID: out.IssueCreate.Issue.ID, Identifier: out.IssueCreate.Issue.Identifier, Title: input.Title, Description: input.Description, BlockedBy: input.BlockedBy}
	return iss, backend.Result{Success: out.IssueCreate.Success, ID: iss.ID, Identifier: iss.Identifier}, nil
}

func (a *Adapter) Verify(ctx context.Context, identifier string) (backend.VerifyResult, error) {
	iss, err := a.FetchIssue(ctx, identifier)
	if err != nil {
		return backend.VerifyResult{Verified: false, Error: err.Error()}, nil
	}
	if iss == nil {
		return backend.VerifyResult{Verified: false, Error: "not found"}, nil
	}
	return backend.VerifyResult{Verified: true, Status: iss.Status}, nil
}

var _ backend.Adapter = (*Adapter)(nil)
