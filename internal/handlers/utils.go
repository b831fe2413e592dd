package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sarpras-lapor/apiserver/internal/services"
	"github.com/sirupsen/logrus"
)

const (
	defaultLimit    = 20
	maxLimit        = 100
	maxJSONBodySize = 1 << 20
)

// Response is the envelope of every JSON answer.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Response{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// writeServiceError maps service error kinds onto HTTP statuses. Anything
// that is not a services.Error is logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		writeError(w, statusForKind(svcErr.Kind), svcErr.Error())
		return
	}

	logger.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}).WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(kind, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid request body")
	}
	return nil
}

func parseID(r *http.Request, param string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", param)
	}
	return id, nil
}

// pathParam returns the decoded value of a route parameter. chi matches on
// r.URL.RawPath when the path holds escapes such as %2F, leaving the
// parameter encoded; otherwise it is already decoded.
func pathParam(r *http.Request, param string) (string, error) {
	value := chi.URLParam(r, param)
	if r.URL.RawPath == "" {
		return value, nil
	}
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", fmt.Errorf("invalid %s", param)
	}
	return decoded, nil
}

// parsePagination reads optional page and limit query parameters. Without
// either, limit and offset are zero and every row is returned.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	query := r.URL.Query()
	pageRaw := strings.TrimSpace(query.Get("page"))
	limitRaw := strings.TrimSpace(query.Get("limit"))
	if pageRaw == "" && limitRaw == "" {
		return 0, 0, nil
	}

	page := 1
	if pageRaw != "" {
		page, err = strconv.Atoi(pageRaw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}
	limit = defaultLimit
	if limitRaw != "" {
		limit, err = strconv.Atoi(limitRaw)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, (page - 1) * limit, nil
}

// NotFound answers unknown routes with the JSON envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}
