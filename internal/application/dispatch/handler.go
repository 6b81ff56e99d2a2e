package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/go-user-auth/internal/domain"
)

type sender interface {
	SendVerification(ctx context.Context, to, token string) error
}

// Handler turns queued verification messages into sent emails. A message
// is acknowledged only after the send succeeded.
type Handler struct {
	sender        sender
	maxDeliveries int
	retryDelay    time.Duration
}

type HandlerDeps struct {
	Sender sender
	// MaxDeliveries bounds redelivery; zero retries forever.
	MaxDeliveries int
	RetryDelay    time.Duration
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		sender:        deps.Sender,
		maxDeliveries: deps.MaxDeliveries,
		retryDelay:    deps.RetryDelay,
	}
}

// Handle processes one delivery. deliveryCount is the number of earlier
// attempts for the same message.
func (h *Handler) Handle(ctx context.Context, body []byte, deliveryCount int) domain.DispatchOutcome {
	var msg domain.DispatchMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		slog.Error("dispatch: undecodable message dropped", "err", err)
		return domain.DispatchReject
	}
	if strings.TrimSpace(msg.Email) == "" || msg.Token == "" {
		slog.Error("dispatch: incomplete message dropped", "has_email", msg.Email != "", "has_token", msg.Token != "")
		return domain.DispatchReject
	}

	err := h.sender.SendVerification(ctx, msg.Email, msg.Token)
	if err == nil {
		slog.Info("dispatch: verification email sent", "to", msg.Email)
		return domain.DispatchAck
	}

	attempt := deliveryCount + 1
	if h.maxDeliveries > 0 && attempt >= h.maxDeliveries {
		slog.Error("dispatch: giving up on verification email", "to", msg.Email, "attempts", attempt, "err", err)
		return domain.DispatchReject
	}
	slog.Warn("dispatch: send failed, requeueing", "to", msg.Email, "attempt", attempt, "err", err)

	// a short pause keeps a broken transport from spinning the queue
	if h.retryDelay > 0 {
		t := time.NewTimer(h.retryDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	return domain.DispatchRequeue
}
