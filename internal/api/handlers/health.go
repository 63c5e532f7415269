package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/api/dto"
	"github.com/flowgate-io/flowgate/internal/pkg/circuitbreaker"
)

// CircuitStater reports outbound per-host circuit states.
// *httpclient.PooledClient satisfies it.
type CircuitStater interface {
	CircuitStates() map[string]circuitbreaker.State
}

type HealthHandler struct {
	db       *gorm.DB
	circuits CircuitStater
}

func NewHealthHandler(db *gorm.DB, circuits CircuitStater) *HealthHandler {
	return &HealthHandler{db: db, circuits: circuits}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	// Check database
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			checks["database"] = "error: " + err.Error()
			healthy = false
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := sqlDB.PingContext(ctx); err != nil {
				checks["database"] = "error: " + err.Error()
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.circuits != nil {
		open := 0
		for _, state := range h.circuits.CircuitStates() {
			if state != circuitbreaker.StateClosed {
				open++
			}
		}
		if open > 0 {
			checks["outbound"] = fmt.Sprintf("%d circuit(s) open", open)
		} else {
			checks["outbound"] = "ok"
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	dto.JSON(w, statusCode, map[string]interface{}{
		"status":  status,
		"service": "flowgate-api",
		"checks":  checks,
	})
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	dto.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			dto.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database not ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			dto.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database not ready"})
			return
		}
	}

	dto.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
