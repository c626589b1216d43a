package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies on write endpoints.
const maxBodyBytes = 1 << 20

var (
	errInvalidID   = errors.New("invalid id")
	errInvalidBody = errors.New("invalid request body")
)

type MessageResponse struct {
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError sends message to the client and keeps err in the logs only.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, message string, err error) {
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("message", message),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogAttrs(r.Context(), level, "request failed", attrs...)

	writeJSON(w, logger, status, MessageResponse{Message: message})
}

// parseID reads a positive integer path parameter.
func parseID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, raw)
	}
	return id, nil
}

// decodeBody decodes a JSON body into dst and checks required fields. The
// returned status and message are safe to show the client.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) (int, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, "request body too large", err
		}
		return http.StatusBadRequest, errInvalidBody.Error(), fmt.Errorf("%w: %v", errInvalidBody, err)
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return http.StatusBadRequest, fieldErrs[0].Field() + " is required", err
		}
		return http.StatusBadRequest, errInvalidBody.Error(), err
	}

	return http.StatusOK, "", nil
}
