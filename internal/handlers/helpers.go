package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// OwnerHeader carries the caller identity. Every page, link and search
// request is scoped to this value.
const OwnerHeader = "X-Owner-ID"

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// RequireOwner extracts the owner ID from the request header.
// Returns the owner ID and true, or writes a 401 and returns false.
func RequireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.Header.Get(OwnerHeader)
	if ownerID == "" {
		WriteError(w, http.StatusUnauthorized, "Missing "+OwnerHeader+" header")
		return "", false
	}
	return ownerID, true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// GetListOptions extracts limit/offset pagination from the query string.
// Returns a ValidationError for non-numeric or negative values.
func GetListOptions(r *http.Request) (*interfaces.ListOptions, error) {
	opts := &interfaces.ListOptions{Limit: 50, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return nil, &models.ValidationError{Field: "limit", Reason: "must be a non-negative integer"}
		}
		if parsed > 0 && parsed <= 500 {
			opts.Limit = parsed
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return nil, &models.ValidationError{Field: "offset", Reason: "must be a non-negative integer"}
		}
		opts.Offset = parsed
	}

	return opts, nil
}

// WriteServiceError maps domain errors onto HTTP status codes.
func WriteServiceError(w http.ResponseWriter, err error) error {
	var conflictErr *models.ConflictError
	if errors.As(err, &conflictErr) {
		return WriteJSON(w, http.StatusConflict, map[string]string{
			"status":           "error",
			"error":            conflictErr.Error(),
			"existing_page_id": conflictErr.ExistingPageID,
		})
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return WriteError(w, http.StatusBadRequest, validationErr.Error())
	}

	if errors.Is(err, models.ErrNotFound) {
		return WriteError(w, http.StatusNotFound, "Not found")
	}

	if errors.Is(err, models.ErrNotRetryable) {
		return WriteError(w, http.StatusConflict, err.Error())
	}

	return WriteError(w, http.StatusInternalServerError, "Internal server error")
}
