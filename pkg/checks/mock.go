package checks

import (
	"context"
	"sync"
)

// Report is a call recorded by Mock.
type Report struct {
	Target Target
	ID     int64
	Run    CheckRun
}

type DeploymentReport struct {
	Target       Target
	DeploymentID int64
	State        string
	Description  string
}

// Mock is an in-memory API that records what it was sent.
type Mock struct {
	mu          sync.Mutex
	nextID      int64
	Reports     []Report
	Deployments []DeploymentReport
	Err         error
}

func (m *Mock) CreateOrUpdate(ctx context.Context, target Target, id int64, run CheckRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return id, m.Err
	}
	if id == 0 {
		m.nextID++
		id = m.nextID
	}
	m.Reports = append(m.Reports, Report{Target: target, ID: id, Run: run})
	return id, nil
}

func (m *Mock) DeploymentStatus(ctx context.Context, target Target, deploymentID int64, state, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Deployments = append(m.Deployments, DeploymentReport{target, deploymentID, state, description})
	return nil
}

// Completed returns the completed reports, in order.
func (m *Mock) Completed() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Report
	for _, r := range m.Reports {
		if r.Run.Status == Completed {
			out = append(out, r)
		}
	}
	return out
}

func (m *Mock) All() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Report(nil), m.Reports...)
}
