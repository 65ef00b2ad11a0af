package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/davkeeper/internal/common"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body is accepted only when
// optional is set. On failure the 400 response is already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="davkeeper"`)
	h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: common.ErrorUnauthorized.Error()})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		h.unauthorized(w)
	case errors.Is(err, common.ErrorValidation):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrStoreConflict):
		h.log.Warn(r.Context(), "store conflict", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: common.ErrStoreConflict.Error()})
	default:
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
	}
}
