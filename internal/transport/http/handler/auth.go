package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-user-auth/internal/application/session"
	"github.com/go-user-auth/internal/application/user"
	"github.com/go-user-auth/internal/domain"
	"github.com/go-user-auth/internal/pkg/validate"
	"github.com/go-user-auth/internal/transport/http/middleware"
)

type redeemer interface {
	Redeem(ctx context.Context, token string) error
}

// CookieOptions controls the session cookies.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthHandler serves registration, verification and the session endpoints.
type AuthHandler struct {
	users        user.Service
	verification redeemer
	sessions     session.Service
	cookies      CookieOptions
	errs         errorResponder
}

type AuthHandlerDeps struct {
	Users        user.Service
	Verification redeemer
	Sessions     session.Service
	Cookies      CookieOptions
	ExposeErrors bool
}

func NewAuthHandler(deps AuthHandlerDeps) *AuthHandler {
	return &AuthHandler{
		users:        deps.Users,
		verification: deps.Verification,
		sessions:     deps.Sessions,
		cookies:      deps.Cookies,
		errs:         errorResponder{exposeDetail: deps.ExposeErrors},
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, token, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterEnvelope{
		Message: "Registration successful, verification email sent.",
		Token:   token,
		User:    acct,
	})
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	if err := h.verification.Redeem(r.Context(), token); err != nil {
		h.errs.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Email verified successfully."})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	h.setCookie(w, middleware.AccessCookie, res.Tokens.Access.Value, h.cookies.AccessTTL)
	h.setCookie(w, middleware.RefreshCookie, res.Tokens.Refresh.Value, h.cookies.RefreshTTL)
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Message:      "Login successful",
		AccessToken:  res.Tokens.Access.Value,
		RefreshToken: res.Tokens.Refresh.Value,
		User:         res.Account,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := refreshToken(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "Refresh token required")
		return
	}
	access, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	h.setCookie(w, middleware.AccessCookie, access.Value, h.cookies.AccessTTL)
	writeJSON(w, http.StatusOK, RefreshEnvelope{Message: "Access token refreshed", AccessToken: access.Value})
}

// Logout always succeeds and clears both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, _ := refreshToken(r); token != "" {
		h.sessions.Logout(r.Context(), token)
	}
	h.clearCookie(w, middleware.AccessCookie)
	h.clearCookie(w, middleware.RefreshCookie)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Logged out successfully"})
}

// refreshToken reads the cookie first and the JSON body second.
func refreshToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(middleware.RefreshCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(r, &body, false); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return body.RefreshToken, nil
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
