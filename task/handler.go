// Package task exposes the task dispatcher's status-polling endpoint,
// translating the Celery result-store document into the API's status
// response shape.
package task

import (
	"encoding/json"
	"net/http"

	"github.com/ifcatlas/api/internal/apperr"
	"github.com/ifcatlas/api/internal/broker"
)

// Handler holds the task status handler dependencies.
type Handler struct {
	Broker *broker.Client
}

// NewHandler creates a new task status handler.
func NewHandler(brk *broker.Client) *Handler {
	return &Handler{Broker: brk}
}

// RegisterRoutes registers the task status route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/upload/status/{taskId}", h.GetStatus)
}

// GetStatus answers GET /upload/status/{taskId}: reads the Celery result
// store, synthesizing a PENDING status if no result has been written yet.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")

	raw, err := h.Broker.GetResult(r.Context(), taskID)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	meta := broker.TaskMeta{Status: broker.StatusPending, Children: []interface{}{}}
	if raw != nil {
		if err := json.Unmarshal(raw, &meta); err != nil {
			apperr.Write(w, r, apperr.New(http.StatusInternalServerError, "malformed task result"))
			return
		}
	}

	resp := map[string]interface{}{
		"taskId": taskID,
		"status": meta.Status,
		"result": meta.Result,
	}

	if errMsg := taskErrorMessage(meta); errMsg != "" {
		resp["error"] = errMsg
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// taskErrorMessage implements the error-surfacing rule from spec.md §4.4:
// FAILURE surfaces the traceback; otherwise a result.error field surfaces
// if present; otherwise no error.
func taskErrorMessage(meta broker.TaskMeta) string {
	if meta.Status == broker.StatusFailure {
		if meta.Traceback != nil {
			return *meta.Traceback
		}
		return ""
	}

	if resultObj, ok := meta.Result.(map[string]interface{}); ok {
		if errVal, ok := resultObj["error"].(string); ok {
			return errVal
		}
	}

	return ""
}
