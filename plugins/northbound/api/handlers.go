package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/veesix-networks/cidrd/internal/service"
)

const maxBodyBytes = 1 << 20

func (h *handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req service.AllocateRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Allocate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req service.ReleaseRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Release(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleAssignments(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.List(r.Context()))
}

func (h *handler) handlePool(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if h.openapi == nil {
		h.writeError(w, http.StatusInternalServerError, service.ErrInternal.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(h.openapi)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(int(service.RetryAfter.Seconds())))
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, service.ErrInternal.Error())
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}
