package rollout

import (
	"strings"
)

type CheckSuiteAction string

const (
	CheckSuiteRequested   CheckSuiteAction = "requested"
	CheckSuiteRerequested CheckSuiteAction = "rerequested"
	CheckSuiteCompleted   CheckSuiteAction = "completed"
)

// GitHubRepository identifies the repo a webhook is about.
type GitHubRepository struct {
	FullName string `json:"full_name"`
	URL      string `json:"url"`
}

type Installation struct {
	ID int64 `json:"id"`
}

// CheckSuiteEvent is the part of GitHub's check_suite webhook that
// matters here.
type CheckSuiteEvent struct {
	Action     CheckSuiteAction `json:"action"`
	CheckSuite struct {
		HeadBranch string `json:"head_branch"`
		HeadSHA    string `json:"head_sha"`
	} `json:"check_suite"`
	Repository   GitHubRepository `json:"repository"`
	Installation Installation     `json:"installation"`
}

func (e CheckSuiteEvent) Triggers() bool {
	return e.Action == CheckSuiteRequested || e.Action == CheckSuiteRerequested
}

// DeploymentEvent is the part of GitHub's deployment webhook that
// matters here.
type DeploymentEvent struct {
	Deployment struct {
		ID          int64  `json:"id"`
		SHA         string `json:"sha"`
		Ref         string `json:"ref"`
		Task        string `json:"task"`
		Environment string `json:"environment"`
	} `json:"deployment"`
	Repository   GitHubRepository `json:"repository"`
	Installation Installation     `json:"installation"`
}

// TarballReadyEvent says the build artifact for a commit has been
// uploaded. The master receives it from CI and forwards it verbatim
// to each slave.
type TarballReadyEvent struct {
	RepoName    string `json:"repo_name"`
	SHA         string `json:"sha"`
	Ref         string `json:"ref,omitempty"`
	BranchName  string `json:"branch,omitempty"`
	TarballPath string `json:"tarball_path"`
	// Digest, if given, is checked against the downloaded artifact,
	// e.g. "sha256:...".
	Digest string `json:"tarball_digest,omitempty"`
}

// Branch is the short branch name: an explicit branch if given,
// otherwise the ref with any refs/heads/ prefix stripped.
func (e TarballReadyEvent) Branch() string {
	if e.BranchName != "" {
		return e.BranchName
	}
	return strings.TrimPrefix(e.Ref, "refs/heads/")
}

// DeployRequest asks a slave to switch to an already prepared version.
type DeployRequest struct {
	RepoName     string `json:"repo_name"`
	SHA          string `json:"sha"`
	DeploymentID int64  `json:"deployment_id"`
}
