package orchestrator

import (
	"sync"
	"time"
)

// StepStatus classifies the outcome of a deployment step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepWarning StepStatus = "warning"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step is one entry of the deployment report.
type Step struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Report accumulates the outcome of a deployment run. It is safe for
// concurrent reads from the ops server while the run progresses.
type Report struct {
	mu sync.Mutex

	runID      string
	domain     string
	startedAt  time.Time
	finishedAt time.Time
	certState  string
	steps      []Step
}

// ReportView is the JSON-serializable snapshot of a report.
type ReportView struct {
	RunID            string `json:"run_id"`
	Domain           string `json:"domain"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at,omitempty"`
	CertificateState string `json:"certificate_state,omitempty"`
	Steps            []Step `json:"steps"`
}

// NewReport creates a report for a run.
func NewReport(runID, domain string) *Report {
	return &Report{
		runID:     runID,
		domain:    domain,
		startedAt: time.Now(),
	}
}

// Add records a step outcome.
func (r *Report) Add(name string, status StepStatus, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, Step{Name: name, Status: status, Detail: detail})
}

// SetCertificateState records the final certificate state of the run.
func (r *Report) SetCertificateState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certState = state
}

// Finish marks the run as complete.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishedAt = time.Now()
}

// Warnings returns the number of steps that ended in a warning.
func (r *Report) Warnings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, s := range r.steps {
		if s.Status == StepWarning {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the report for serialization.
func (r *Report) Snapshot() ReportView {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := ReportView{
		RunID:            r.runID,
		Domain:           r.domain,
		StartedAt:        r.startedAt.Format(time.RFC3339),
		CertificateState: r.certState,
		Steps:            make([]Step, len(r.steps)),
	}
	copy(view.Steps, r.steps)
	if !r.finishedAt.IsZero() {
		view.FinishedAt = r.finishedAt.Format(time.RFC3339)
	}
	return view
}
