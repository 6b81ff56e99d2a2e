package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-user-auth/internal/domain"
)

type errorRule struct {
	target error
	status int
	// fixed replaces the wrapped message when set
	fixed string
}

// Order matters: the first matching sentinel decides the status.
var errorRules = []errorRule{
	{target: domain.ErrBadRequest, status: http.StatusBadRequest},
	{target: domain.ErrConflict, status: http.StatusConflict},
	{target: domain.ErrNotFound, status: http.StatusNotFound},
	{target: domain.ErrUnauthorized, status: http.StatusUnauthorized},
	{target: domain.ErrInvalidOrExpired, status: http.StatusBadRequest, fixed: "Invalid or expired token"},
	{target: domain.ErrInvalidToken, status: http.StatusUnauthorized, fixed: "Invalid refresh token"},
	{target: domain.ErrRateLimited, status: http.StatusTooManyRequests, fixed: "Too many login attempts. Please try again later."},
	{target: domain.ErrUnverified, status: http.StatusForbidden},
	{target: domain.ErrDeactivated, status: http.StatusForbidden},
	{target: domain.ErrForbidden, status: http.StatusForbidden},
	{target: domain.ErrTimeout, status: http.StatusServiceUnavailable, fixed: "Request timed out, please retry"},
	{target: domain.ErrDependencyUnavailable, status: http.StatusServiceUnavailable, fixed: "Service temporarily unavailable"},
}

// errorResponder maps service errors to HTTP responses. Internal detail
// is only exposed when exposeDetail is set.
type errorResponder struct {
	exposeDetail bool
}

func (e errorResponder) respond(w http.ResponseWriter, r *http.Request, err error) {
	for _, rule := range errorRules {
		if !errors.Is(err, rule.target) {
			continue
		}
		msg := rule.fixed
		if msg == "" {
			msg = publicMessage(err, rule.target)
		}
		if rule.status >= http.StatusInternalServerError {
			slog.Warn("request degraded", "request_id", chimiddleware.GetReqID(r.Context()), "err", err)
		}
		writeError(w, rule.status, msg)
		return
	}

	slog.Error("request failed", "request_id", chimiddleware.GetReqID(r.Context()),
		"method", r.Method, "path", r.URL.Path, "err", err)
	env := MessageEnvelope{Error: "Internal server error", Message: "Something went wrong"}
	if e.exposeDetail {
		env.Message = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, env)
}

// publicMessage strips the sentinel suffix so only the service's own
// wording reaches the client.
func publicMessage(err, sentinel error) string {
	if msg, ok := strings.CutSuffix(err.Error(), ": "+sentinel.Error()); ok {
		return msg
	}
	return sentinel.Error()
}
