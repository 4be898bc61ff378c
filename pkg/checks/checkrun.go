// Package checks reports rollout progress as GitHub check runs.
package checks

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	Queued     Status = "queued"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
)

type Conclusion string

const (
	Success        Conclusion = "success"
	Failure        Conclusion = "failure"
	Neutral        Conclusion = "neutral"
	Cancelled      Conclusion = "cancelled"
	TimedOut       Conclusion = "timed_out"
	ActionRequired Conclusion = "action_required"
)

const timeFormat = "2006-01-02T15:04:05Z"

type Output struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Text    string `json:"text,omitempty"`
}

type Action struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Identifier  string `json:"identifier"`
}

// PrepareAction lets someone prepare a commit the deploy branch filter
// skipped.
var PrepareAction = Action{
	Label:       "Prepare this commit",
	Description: "Prepare this version anyway",
	Identifier:  "prepare",
}

// CheckRun is one state of a check run. Which of StartedAt, Conclusion
// and CompletedAt apply depends on Status.
type CheckRun struct {
	Name        string
	HeadSHA     string
	ExternalID  string
	Status      Status
	Output      Output
	Actions     []Action
	StartedAt   time.Time
	Conclusion  Conclusion
	CompletedAt time.Time
}

func (c CheckRun) Validate() error {
	switch c.Status {
	case Queued:
	case InProgress:
		if c.StartedAt.IsZero() {
			return fmt.Errorf("in-progress check run needs a start time")
		}
	case Completed:
		if c.Conclusion == "" || c.CompletedAt.IsZero() {
			return fmt.Errorf("completed check run needs a conclusion and completion time")
		}
	default:
		return fmt.Errorf("unknown check run status %q", c.Status)
	}
	if c.Name == "" || c.HeadSHA == "" {
		return fmt.Errorf("check run needs a name and head SHA")
	}
	return nil
}

func (c CheckRun) MarshalJSON() ([]byte, error) {
	body := struct {
		Name        string     `json:"name"`
		HeadSHA     string     `json:"head_sha"`
		ExternalID  string     `json:"external_id"`
		Status      Status     `json:"status"`
		Output      Output     `json:"output"`
		Actions     []Action   `json:"actions,omitempty"`
		StartedAt   string     `json:"started_at,omitempty"`
		Conclusion  Conclusion `json:"conclusion,omitempty"`
		CompletedAt string     `json:"completed_at,omitempty"`
	}{
		Name:       c.Name,
		HeadSHA:    c.HeadSHA,
		ExternalID: c.ExternalID,
		Status:     c.Status,
		Output:     c.Output,
		Actions:    c.Actions,
	}
	switch c.Status {
	case InProgress:
		body.StartedAt = c.StartedAt.UTC().Format(timeFormat)
	case Completed:
		body.Conclusion = c.Conclusion
		body.CompletedAt = c.CompletedAt.UTC().Format(timeFormat)
	}
	return json.Marshal(body)
}
