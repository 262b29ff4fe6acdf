package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/adapter/http/middleware"
	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps a domain error onto an HTTP status and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFromError(err), domain.ErrorCode(err), err.Error())
}

// statusFromError maps domain error kinds to HTTP status codes.
func statusFromError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body, rejecting unknown trailing data.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

// requestActor extracts the authenticated actor, or a blank one when the
// route is mounted without auth.
func requestActor(r *http.Request) usecase.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

// parsePage reads page/per_page query parameters.
func parsePage(r *http.Request) domain.Page {
	return domain.Page{
		Number:  parseIntQuery(r, "page", 1),
		PerPage: parseIntQuery(r, "per_page", 0),
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseTimeQuery parses an RFC3339 query parameter, defaulting when absent.
func parseTimeQuery(r *http.Request, key string, defaultValue time.Time) (time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue, nil
	}
	return time.Parse(time.RFC3339, val)
}
