// Package respond holds the JSON request/response helpers shared by every
// handler. Error bodies are always {"error": "..."}.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/validate"
)

const maxBody = 1 << 20

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}

// Error converts err to its status code and error body. Storage and unknown
// errors are logged and their cause is hidden from the client.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		logger.Error("unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if e.Status() >= http.StatusInternalServerError {
		logger.Error(e.Message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(e.Cause),
		)
	}
	JSON(w, e.Status(), map[string]string{"error": e.Message})
}

// Decode reads a JSON body into v and validates it. Failures are returned
// as validation errors.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}
