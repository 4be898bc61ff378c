// Package rollout holds the state shared between the master and the
// slaves for one commit, and the events that move it along.
package rollout

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusWaitingForArtifact Status = "waiting_for_artifact"
	StatusPreparing          Status = "preparing"
	StatusPrepared           Status = "prepared"
	StatusFailed             Status = "failed"
)

// State is the master's record of a rollout, one per repository and
// commit.
type State struct {
	CheckRunID     int64  `json:"run_id"`
	InstallationID int64  `json:"installation_id"`
	Status         Status `json:"status"`
	ArtifactPath   string `json:"tarball_path,omitempty"`
	DeploymentID   int64  `json:"deployment_id,omitempty"`
}

// SlaveStatus is what each slave reports for its own preparation of a
// commit. Done goes from false to true once; Success and Message are
// only meaningful after that.
type SlaveStatus struct {
	Done    bool   `json:"done"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

func Finished(r Result) SlaveStatus {
	success := r.Success
	return SlaveStatus{Done: true, Success: &success, Message: r.Message}
}

func (s SlaveStatus) Succeeded() bool {
	return s.Done && s.Success != nil && *s.Success
}

// Result is the outcome of an expected-to-fail piece of work on a
// host, like preparing or deploying a version.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func Succeeded(format string, args ...interface{}) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func Failed(format string, args ...interface{}) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// StateKey is where the State for a commit lives.
func StateKey(repo, sha string) string {
	return repo + "/" + sha
}

// SlavePrefix is the directory all slaves report under for a commit.
func SlavePrefix(repo, sha string) string {
	return StateKey(repo, sha) + "/"
}

func SlaveKey(repo, sha, hostname string) string {
	return SlavePrefix(repo, sha) + hostname
}

// SplitRepo splits "owner/name".
func SplitRepo(fullName string) (owner, name string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository %q is not of the form owner/name", fullName)
	}
	return parts[0], parts[1], nil
}
