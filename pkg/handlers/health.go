package handlers

import (
	"net/http"
	"time"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/utils"
)

// HealthHandler reports service and dependency health
type HealthHandler struct {
	db      database.DatabaseInterface
	version string
}

func NewHealthHandler(db database.DatabaseInterface, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// Health returns 200 when the database is reachable, 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.db.HealthCheck(); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		utils.WriteJSONResponse(w, http.StatusServiceUnavailable, status)
		return
	}

	utils.WriteSuccessResponse(w, status)
}
