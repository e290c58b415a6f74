package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/auth"
)

type operationSummary struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	RequiredParams []string         `json:"required_params,omitempty"`
	DefaultParams  analytics.Params `json:"default_params,omitempty"`
}

type runRequest struct {
	Parameters analytics.Params `json:"parameters"`
}

type runResponse struct {
	Success         bool                     `json:"success"`
	OperationID     string                   `json:"operation_id"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
	Result          analytics.ResultEnvelope `json:"result"`
}

type failureResponse struct {
	Success     bool           `json:"success"`
	Error       failureDetails `json:"error"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

type failureDetails struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func handleListOperations(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Registry == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "OPERATIONS_NOT_CONFIGURED", "operation registry is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReportReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	descriptors := deps.Registry.List()
	operations := make([]operationSummary, 0, len(descriptors))
	for _, descriptor := range descriptors {
		operations = append(operations, operationSummary{
			Name:           descriptor.Name,
			Description:    descriptor.Description,
			RequiredParams: descriptor.RequiredParams,
			DefaultParams:  descriptor.DefaultParams,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": operations})
}

func handleRunOperation(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Engine == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ENGINE_NOT_CONFIGURED", "execution engine is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReportReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	operation := r.PathValue("operation")
	params, err := decodeParameters(r)
	if err != nil {
		writeFailure(w, analytics.WrapError(analytics.KindValidation, "invalid request body", err))
		return
	}

	started := time.Now()
	envelope, err := deps.Engine.RunSync(r.Context(), operation, params)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Success:         true,
		OperationID:     operation,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		Result:          envelope,
	})
}

// decodeParameters tolerates an empty body for operations whose defaults are
// sufficient.
func decodeParameters(r *http.Request) (analytics.Params, error) {
	var request runRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return analytics.Params{}, nil
		}
		return nil, err
	}
	if request.Parameters == nil {
		request.Parameters = analytics.Params{}
	}
	return request.Parameters, nil
}

// writeFailure maps the error taxonomy onto HTTP statuses and emits the
// uniform failure body with remediation suggestions.
func writeFailure(w http.ResponseWriter, err error) {
	kind := analytics.KindOf(err)
	writeJSON(w, statusForKind(kind), failureResponse{
		Success: false,
		Error: failureDetails{
			Type:    string(kind),
			Message: err.Error(),
		},
		Suggestions: analytics.Suggestions(err),
	})
}

func statusForKind(kind analytics.Kind) int {
	switch kind {
	case analytics.KindValidation, analytics.KindUnknownOperation:
		return http.StatusBadRequest
	case analytics.KindForbiddenQuery:
		return http.StatusForbidden
	case analytics.KindNotFound:
		return http.StatusNotFound
	case analytics.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
