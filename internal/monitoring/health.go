package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker tracks the outcome of the runs a server has executed.
type HealthChecker struct {
	mu        sync.RWMutex
	startTime time.Time
	lastRun   time.Time
	runs      int
	failures  int
	lastError string
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastRun   time.Time `json:"last_run,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	Uptime    string    `json:"uptime"`
	LastError string    `json:"last_error,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// RecordRun notes a finished run.
func (h *HealthChecker) RecordRun(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastRun = time.Now()
	h.runs++
	if err != nil {
		h.failures++
		h.lastError = err.Error()
	}
}

// Status returns the current health. The server is degraded when the most
// recent runs all failed.
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.runs > 0 && h.failures == h.runs {
		status = "degraded"
	}
	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		LastRun:   h.lastRun,
		Runs:      h.runs,
		Failures:  h.failures,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		LastError: h.lastError,
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
