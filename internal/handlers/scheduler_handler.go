package handlers

import (
	"net/http"

	"github.com/ternarybob/benchdash/internal/services/scheduler"
)

// SchedulerService defines the methods needed from the scheduler
type SchedulerService interface {
	Jobs() []scheduler.JobStatus
	TriggerJob(name string) error
}

// SchedulerHandler handles scheduler-related endpoints
type SchedulerHandler struct {
	schedulerService SchedulerService
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(schedulerService SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{
		schedulerService: schedulerService,
	}
}

// JobsHandler handles GET /api/scheduler/jobs
func (h *SchedulerHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, h.schedulerService.Jobs())
}

// TriggerJobHandler handles POST /api/scheduler/trigger?job={name}
func (h *SchedulerHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	name := r.URL.Query().Get("job")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Job name is required")
		return
	}

	if err := h.schedulerService.TriggerJob(name); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	WriteSuccess(w, "Job "+name+" executed")
}
