package handlers

import (
	"net/http"

	"github.com/TMG-TheMoneyGame/AShareData/internal/scheduler"
)

// JobStatsProvider is satisfied by *scheduler.Scheduler
type JobStatsProvider interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobsHandler reports scheduled job statistics
type JobsHandler struct {
	stats JobStatsProvider
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(stats JobStatsProvider) *JobsHandler {
	return &JobsHandler{stats: stats}
}

// List returns per-job run statistics
// GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.GetJobStats())
}
