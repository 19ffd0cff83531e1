package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arsansys/siva/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeUnauthorized is the single 401 shape. Every authentication failure
// produces this exact response so the body never reveals which check failed.
func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeUnauthorized(w)
	case errors.Is(err, common.ErrorForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrorAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already exists"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
