package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:        http.StatusBadRequest,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindInvalidTransition: http.StatusConflict,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindUnavailable:       http.StatusServiceUnavailable,
	apperr.KindInternal:          http.StatusInternalServerError,
}

// writeError maps an app error to its status. Unavailable and internal
// details are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("internal error", err)
	}
	status, ok := statusByKind[ae.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := errorResponse{Error: string(ae.Kind), Message: ae.Message, Fields: ae.Fields}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"kind", string(ae.Kind),
			"err", err,
		)
		if ae.Kind == apperr.KindInternal {
			resp.Message = "internal error"
		}
	}
	httpx.WriteJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	writeError(w, r, logger, apperr.Validation(err.Error()))
}
