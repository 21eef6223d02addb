package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ruleguard/validation"
)

// respondJSON writes a JSON response with proper error handling
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if checker, ok := a.ruleStorage.(HealthChecker); ok {
		if err := checker.HealthCheck(); err != nil {
			a.logger.Warnw("Storage health check failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	a.respondJSON(w, map[string]string{
		"status": status,
		"time":   a.now().UTC().Format(time.RFC3339),
	}, code)
}

func (a *API) getSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(validation.SchemaDocument()); err != nil {
		a.logger.Errorw("Failed to write schema document", "error", err)
	}
}
