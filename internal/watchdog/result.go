package watchdog

import "fmt"

// Outcome is the per-job result of a scan.
type Outcome string

const (
	OutcomeHealthy        Outcome = "healthy"
	OutcomeIssuesDetected Outcome = "issues_detected"
	OutcomeFailed         Outcome = "failed"
	OutcomeNoAgents       Outcome = "no_agents"
	OutcomeError          Outcome = "error"
)

// JobResult is the outcome for one job.
type JobResult struct {
	JobID             string             `json:"job_id"`
	Status            Outcome            `json:"status"`
	StuckAgents       []string           `json:"stuck_agents"`
	TimedOutAgents    []string           `json:"timed_out_agents"`
	FailedAgents      []string           `json:"failed_agents"`
	ExhaustedAgents   []string           `json:"exhausted_agents"`
	RetriedExecutions []RetriedExecution `json:"retried_executions"`
	Error             string             `json:"error,omitempty"`
}

func newJobResult(jobID string) JobResult {
	return JobResult{
		JobID:             jobID,
		StuckAgents:       []string{},
		TimedOutAgents:    []string{},
		FailedAgents:      []string{},
		ExhaustedAgents:   []string{},
		RetriedExecutions: []RetriedExecution{},
	}
}

// Summary counts jobs per outcome.
type Summary struct {
	TotalChecked   int `json:"total_checked"`
	Healthy        int `json:"healthy"`
	IssuesDetected int `json:"issues_detected"`
	Failed         int `json:"failed"`
	Errors         int `json:"errors"`
	NoAgents       int `json:"no_agents"`
}

// Report is the response of one scan.
type Report struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Summary Summary     `json:"summary"`
	Results []JobResult `json:"results"`
}

// Retried returns the number of executions put back to pending across all
// jobs.
func (r *Report) Retried() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.RetriedExecutions)
	}
	return n
}

// TimedOut returns the number of executions rewritten to timeout.
func (r *Report) TimedOut() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.TimedOutAgents)
	}
	return n
}

// outcomeFor derives the job outcome from what classification found.
func outcomeFor(res JobResult) Outcome {
	switch {
	case res.Error != "":
		return OutcomeError
	case len(res.ExhaustedAgents) > 0:
		return OutcomeFailed
	case len(res.StuckAgents) > 0 || len(res.FailedAgents) > 0:
		return OutcomeIssuesDetected
	}
	return OutcomeHealthy
}

// Aggregate builds the batch report from per-job results.
func Aggregate(results []JobResult) *Report {
	if results == nil {
		results = []JobResult{}
	}
	var s Summary
	s.TotalChecked = len(results)
	for _, r := range results {
		switch r.Status {
		case OutcomeHealthy:
			s.Healthy++
		case OutcomeIssuesDetected:
			s.IssuesDetected++
		case OutcomeFailed:
			s.Failed++
		case OutcomeNoAgents:
			s.NoAgents++
		case OutcomeError:
			s.Errors++
		}
	}

	msg := "no processing inspections"
	if s.TotalChecked > 0 {
		msg = fmt.Sprintf("checked %d inspections: %d healthy, %d with issues, %d failed, %d without agents, %d errors",
			s.TotalChecked, s.Healthy, s.IssuesDetected, s.Failed, s.NoAgents, s.Errors)
	}
	return &Report{Success: true, Message: msg, Summary: s, Results: results}
}

// failedReport is returned when the batch could not be listed.
func failedReport(err error) *Report {
	return &Report{
		Success: false,
		Message: fmt.Sprintf("list processing inspections: %v", err),
		Results: []JobResult{},
	}
}
