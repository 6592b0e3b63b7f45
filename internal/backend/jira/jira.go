// Package jira implements backend.Adapter against the Jira Cloud REST
// API (v3). As with internal/backend/linear, no Jira SDK was available
// in the library set this module was built from, so requests go over
// net/http directly (see DESIGN.md).
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/pkg/errors"
)

// CallTimeout bounds every adapter call, matching §5's per-call backend
// RPC timeout.
const CallTimeout = 15 * time.Second

// Adapter talks to a single Jira Cloud site with basic auth (email +
// API token).
type Adapter struct {
	baseURL string
	email   string
	token   string
	client  *http.Client
}

// New returns a Jira adapter for the site at baseURL (e.g.
// "https://acme.atlassian.net"), authenticated as email with an API
// token.
func New(baseURL, email, token string) *Adapter {
	return &Adapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		email:   email,
		token:   token,
		client:  &http.Client{Timeout: CallTimeout},
	}
}

func (a *Adapter) Tag() string { return "jira" }

func (a *Adapter) request(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "jira: encode body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "jira: build request")
	}
	req.SetBasicAuth(a.email, a.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "jira: request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "jira: read response")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("jira: http %d: %s", resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}

type issueFields struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      struct {
		Name string `json:"name"`
	} `json:"status"`
	IssueLinks []struct {
		Type struct {
			Inward string `json:"inward"`
		} `json:"type"`
		InwardIssue *struct {
			Key string `json:"key"`
		} `json:"inwardIssue"`
	} `json:"issuelinks"`
}

type issueResponse struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

func (a *Adapter) FetchIssue(ctx context.Context, identifier string) (*backend.Issue, error) {
	var out issueResponse
	err := a.request(ctx, http.MethodGet, "/rest/api/3/issue/"+identifier, nil, &out)
	if err != nil {
		if strings.Contains(err.Error(), "http 404") {
			return nil, nil
		}
		return nil, err
	}
	var blockedBy []string
	for _, link := range out.Fields.IssueLinks {
		if link.Type.Inward == "is blocked by" && link.InwardIssue != nil {
			blockedBy = append(blockedBy, link.InwardIssue.Key)
		}
	}
	return &backend.Issue{
		ID:          out.ID,
		Identifier:  out.Key,
		Title:       out.Fields.Summary,
		Description: out.Fields.Description,
		Status:      out.Fields.Status.Name,
		BlockedBy:   blockedBy,
	}, nil
}

func (a *Adapter) FetchSubtasks(ctx context.Context, parentID string) ([]backend.Issue, error) {
	var out struct {
		Issues []issueResponse `json:"issues"`
	}
	jql := fmt.Sprintf("/rest/api/3/search?jql=parent=%s", parentID)
	if err := a.request(ctx, http.MethodGet, jql, nil, &out); err != nil {
		return nil, err
	}
	issues := make([]backend.Issue, 0, len(out.Issues))
	for _, iss := range out.Issues {
		issues = append(issues, backend.Issue{ID: iss.ID, Identifier: iss.Key, Title: iss.Fields.Summary, Status: iss.Fields.Status.Name})
	}
	return issues, nil
}

func (a *Adapter) UpdateStatus(ctx context.Context, id, targetStatus string) (backend.Result, error) {
	body := map[string]any{"transition": map[string]string{"id": targetStatus}}
	if err := a.request(ctx, http.MethodPost, "/rest/api/3/issue/"+id+"/transitions", body, nil); err != nil {
		return backend.Result{Success: false, ID: id, Error: err.Error()}, nil
	}
	return backend.Result{Success: true, ID: id}, nil
}

func (a *Adapter) AddComment(ctx context.Context, id, body string) (backend.Result, error) {
	payload := map[string]any{"body": map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []map[string]any{{
			"type":    "paragraph",
			"content": []map[string]any{{"type": "text", "text": body}},
		}},
	}}
	if err := a.request(ctx, http.MethodPost, "/rest/api/3/issue/"+id+"/comment", payload, nil); err != nil {
		return backend.Result{Success: false, ID: id, Error: err.Error()}, nil
	}
	return backend.Result{Success: true, ID: id}, nil
}

func (a *Adapter) CreateIssue(ctx context.Context, input backend.CreateInput) (backend.Issue, backend.Result, error) {
	payload := map[string]any{"fields": map[string]any{
		"summary":     input.Title,
		"description": input.Description,
		"parent":      map[string]string{"key": input.ParentID},
		"issuetype":   map[string]string{"name": "Subtask"},
	}}
	var out struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := a.request(ctx, http.MethodPost, "/rest/api/3/issue", payload, &out); err != nil {
		return backend.Issue{}, backend.Result{Success: false, Error: err.Error()}, nil
	}
	iss := backend.Issue{ID: out.ID, Identifier: out.Key, Title: input.Title, Description: input.Description, BlockedBy: input.BlockedBy}
	return iss, backend.Result{Success: true, ID: iss.ID, Identifier: iss.Identifier}, nil
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
