package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/pipeline"
	"github.com/exitschool/offmarket/internal/report"
	"github.com/exitschool/offmarket/internal/store"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("http: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: msg})
}

// writeServiceError maps pipeline errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *report.SchemaError
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, strings.TrimSuffix(err.Error(), ": "+pipeline.ErrInvalidRequest.Error()))
	case errors.Is(err, pipeline.ErrAccessDenied):
		writeError(w, http.StatusForbidden, pipeline.ErrAccessDenied.Error())
	case errors.Is(err, pipeline.ErrCompanyNotFound):
		writeError(w, http.StatusNotFound, pipeline.ErrCompanyNotFound.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.As(err, &schemaErr):
		zap.L().Error("http: report failed validation", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, schemaErr.Error())
	default:
		zap.L().Error("http: request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
