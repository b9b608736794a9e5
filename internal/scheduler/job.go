package scheduler

import (
	"context"
	"time"
)

// Job is one unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes the job once. A *contracts.StoreUnavailableError is
	// retried by the scheduler, any other error is final for this tick.
	Run(ctx context.Context) error

	// Schedule returns the cron expression, seconds first, e.g.
	// "0 30 18 * * 1-5" (weekdays 18:30) or "@daily"
	Schedule() string
}

// JobResult is the outcome of one scheduled or manual run
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// historySize is how many results a JobHistory keeps
const historySize = 100

// JobHistory keeps the most recent results of one job. The last success
// and failure survive rotation so stats never lose them.
type JobHistory struct {
	Results []JobResult

	lastSuccess *JobResult
	lastFailure *JobResult
}

// Add records a result, dropping the oldest beyond historySize
func (h *JobHistory) Add(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historySize {
		h.Results = h.Results[len(h.Results)-historySize:]
	}

	r := result
	if r.Success {
		h.lastSuccess = &r
	} else {
		h.lastFailure = &r
	}
}

// Latest returns up to n results, oldest first
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	out := make([]JobResult, n)
	copy(out, h.Results[len(h.Results)-n:])
	return out
}

// Failures returns the failed results still in the window
func (h *JobHistory) Failures() []JobResult {
	var failed []JobResult
	for _, r := range h.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// SuccessRate is the share of successful runs in the window, 0 when empty
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	ok := 0
	for _, r := range h.Results {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(h.Results))
}

// JobStats summarises a job's history for /api/jobs
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Stats builds the summary for a job with the given schedule
func (h *JobHistory) Stats(name, schedule string) JobStats {
	st := JobStats{
		JobName:      name,
		Schedule:     schedule,
		TotalRuns:    len(h.Results),
		FailureCount: len(h.Failures()),
		SuccessRate:  h.SuccessRate(),
	}
	st.SuccessCount = st.TotalRuns - st.FailureCount

	if n := len(h.Results); n > 0 {
		t := h.Results[n-1].StartTime
		st.LastRun = &t
	}
	if h.lastSuccess != nil {
		t := h.lastSuccess.StartTime
		st.LastSuccess = &t
	}
	if h.lastFailure != nil {
		t := h.lastFailure.StartTime
		st.LastFailure = &t
		st.LastError = h.lastFailure.Error
	}
	return st
}
