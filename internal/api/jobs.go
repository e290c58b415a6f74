package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/auth"
	"github.com/reportrunner/reportrunner/internal/jobstore"
)

type submitJobRequest struct {
	Operation  string           `json:"operation"`
	Parameters analytics.Params `json:"parameters"`
}

type submitJobResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	CheckStatusURL string `json:"check_status_url"`
}

type jobResponse struct {
	JobID       string                    `json:"job_id"`
	Operation   string                    `json:"operation"`
	Status      string                    `json:"status"`
	SubmittedAt time.Time                 `json:"submitted_at"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	Result      *analytics.ResultEnvelope `json:"result,omitempty"`
	Error       *jobstore.ErrorInfo       `json:"error,omitempty"`
	ExpireAt    time.Time                 `json:"expire_at"`
}

// handleSubmitJob creates the job record and hands delivery to the configured
// workflow driver. Operation and parameter validation happens at execution
// time, so a bad submission still yields a pollable record ending in failed.
func handleSubmitJob(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Engine == nil || deps.Driver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "JOBS_NOT_CONFIGURED", "job submission is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReportReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request submitJobRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeFailure(w, analytics.WrapError(analytics.KindValidation, "invalid request body", err))
		return
	}
	if strings.TrimSpace(request.Operation) == "" {
		writeFailure(w, analytics.NewError(analytics.KindValidation, "operation is required"))
		return
	}
	if request.Parameters == nil {
		request.Parameters = analytics.Params{}
	}

	job, err := deps.Engine.Submit(r.Context(), request.Operation, request.Parameters)
	if err != nil {
		writeFailure(w, analytics.WrapError(analytics.KindStorage, "submit job", err))
		return
	}
	if err := deps.Driver.Drive(r.Context(), job.JobID); err != nil {
		writeFailure(w, analytics.WrapError(analytics.KindStorage, "dispatch job", err))
		return
	}

	writeJSON(w, http.StatusAccepted, submitJobResponse{
		JobID:          job.JobID,
		Status:         string(job.Status),
		CheckStatusURL: "/v1/jobs/" + job.JobID,
	})
}

func handleGetJob(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Jobs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "JOBS_NOT_CONFIGURED", "job store is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReportReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	jobID := r.PathValue("jobID")
	job, err := deps.Jobs.Get(r.Context(), jobID)
	if err != nil {
		writeFailure(w, classifyJobStoreError(jobID, err))
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		JobID:       job.JobID,
		Operation:   job.Operation,
		Status:      string(job.Status),
		SubmittedAt: job.SubmittedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Result:      job.Result,
		Error:       job.Error,
		ExpireAt:    job.ExpireAt,
	})
}
