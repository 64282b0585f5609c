package farmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scope identifies one bulk-sync job: an organization and a season year.
type Scope struct {
	OrgID int64
	Year  int
}

func (s Scope) String() string {
	return fmt.Sprintf("org %d / %d", s.OrgID, s.Year)
}

// JobPhase is the server-reported lifecycle of a sync job.
type JobPhase string

const (
	JobPhaseNone      JobPhase = "none"
	JobPhaseRunning   JobPhase = "running"
	JobPhaseCompleted JobPhase = "completed"
	JobPhaseFailed    JobPhase = "failed"
	JobPhaseCancelled JobPhase = "cancelled"
)

// JobSnapshot is the structured progress report for one sync job.
type JobSnapshot struct {
	Phase   JobPhase `json:"phase"`
	Current int      `json:"current"`
	Total   int      `json:"total"`
	Message string   `json:"message"`
}

// JobStatus queries the server for the current state of the scope's sync job.
func (c *Client) JobStatus(ctx context.Context, scope Scope) (JobSnapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetQueryParams(scopeParams(scope)).
		Get("/v1/sync/status")
	if err != nil {
		return JobSnapshot{}, fmt.Errorf("sync status %s: %w", scope, err)
	}
	if resp.IsError() {
		return JobSnapshot{}, &APIError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(resp.String()),
		}
	}

	var snapshot JobSnapshot
	if err := json.Unmarshal(resp.Body(), &snapshot); err != nil {
		return JobSnapshot{}, fmt.Errorf("decode sync status %s: %w", scope, err)
	}
	if snapshot.Phase == "" {
		snapshot.Phase = JobPhaseNone
	}
	return snapshot, nil
}

// TriggerSync asks the server to start a sync job for the scope. A nil
// return means the server accepted the trigger.
func (c *Client) TriggerSync(ctx context.Context, scope Scope) error {
	callCtx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetQueryParams(scopeParams(scope)).
		Post("/v1/sync")
	if err != nil {
		return fmt.Errorf("trigger sync %s: %w", scope, err)
	}
	if resp.IsError() {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(resp.String()),
		}
	}
	return nil
}

// CancelSync asks the server to cancel the scope's running job. The caller
// must not assume the job stopped unless this returns nil.
func (c *Client) CancelSync(ctx context.Context, scope Scope) error {
	callCtx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetQueryParams(scopeParams(scope)).
		Post("/v1/sync/cancel")
	if err != nil {
		return fmt.Errorf("cancel sync %s: %w", scope, err)
	}
	if resp.IsError() {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(resp.String()),
		}
	}
	return nil
}

func scopeParams(scope Scope) map[string]string {
	return map[string]string{
		"org":  strconv.FormatInt(scope.OrgID, 10),
		"year": strconv.Itoa(scope.Year),
	}
}
