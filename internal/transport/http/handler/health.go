package handler

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the health endpoint probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthEnvelope struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    float64           `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler reports process liveness and the reachability of its dependencies.
type HealthHandler struct {
	started time.Time
	checks  map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{started: time.Now(), checks: checks}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	env := HealthEnvelope{
		Status:    "healthy",
		Service:   "go-user-auth",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Seconds(),
	}
	status := http.StatusOK
	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		env.Checks = make(map[string]string, len(h.checks))
		for name, p := range h.checks {
			if err := p.Ping(ctx); err != nil {
				env.Checks[name] = "down"
				env.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			env.Checks[name] = "up"
		}
	}
	writeJSON(w, status, env)
}
