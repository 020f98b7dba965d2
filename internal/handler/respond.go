package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/yourorg/tenantonboard/internal/domain"
	"github.com/yourorg/tenantonboard/internal/observability/requestid"
)

// ErrorResponse is the body of every non-validation error
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationErrorResponse lists per-field validation failures
type ValidationErrorResponse struct {
	Errors map[string]string `json:"errors"`
}

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code domain.Code) int {
	switch code {
	case domain.CodeNotFound,
		domain.CodeDuplicateSlug,
		domain.CodeDuplicateEmail,
		domain.CodeTerminalOrInvalidStage,
		domain.CodeWrongStage,
		domain.CodeConcurrentTransition,
		domain.CodeExpiredOrMissingLink:
		return http.StatusConflict
	case domain.CodeInvalidToken:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError renders err as {"detail": ...}. Only domain error messages reach
// the caller; anything else is reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.CodeOf(err)
	status := StatusFor(code)

	detail := "Internal server error."
	var de *domain.Error
	if errors.As(err, &de) && status < http.StatusInternalServerError {
		detail = de.Message
	}

	attrs := []any{
		slog.String("code", string(code)),
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
		slog.String("request_id", requestid.From(r.Context())),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}
	writeJSON(w, logger, status, ErrorResponse{Detail: detail})
}

func writeValidation(w http.ResponseWriter, logger *slog.Logger, fields map[string]string) {
	writeJSON(w, logger, http.StatusUnprocessableEntity, ValidationErrorResponse{Errors: fields})
}

// validationFields flattens ozzo validation errors into field -> message.
func validationFields(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}
	out["body"] = err.Error()
	return out
}
