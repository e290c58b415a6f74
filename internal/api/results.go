package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/auth"
	"github.com/reportrunner/reportrunner/internal/jobstore"
)

// handleGetResult reads a spilled result back by the handle path embedded in
// a completed job's envelope. Expired or unknown handles return the NotFound
// failure shape; this is a caller error, not an engine fault.
func handleGetResult(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Router == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "RESULTS_NOT_CONFIGURED", "result router is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReportReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	document, err := deps.Router.Resolve(r.Context(), r.PathValue("path"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, document)
}

func classifyJobStoreError(jobID string, err error) error {
	if errors.Is(err, jobstore.ErrNotFound) {
		return analytics.NewError(analytics.KindNotFound, fmt.Sprintf("job %q was not found", jobID))
	}
	return analytics.WrapError(analytics.KindStorage, fmt.Sprintf("load job %q", jobID), err)
}
