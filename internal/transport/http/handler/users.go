package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-user-auth/internal/application/user"
	"github.com/go-user-auth/internal/domain"
	"github.com/go-user-auth/internal/pkg/validate"
)

// UserHandler handles user CRUD endpoints. All routes sit behind the session middleware.
type UserHandler struct {
	svc  user.Service
	errs errorResponder
}

func NewUserHandler(svc user.Service, exposeErrors bool) *UserHandler {
	return &UserHandler{svc: svc, errs: errorResponder{exposeDetail: exposeErrors}}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	users, next, err := h.svc.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	if users == nil {
		users = []domain.Account{}
	}
	writeJSON(w, http.StatusOK, UsersPageEnvelope{Data: users, NextCursor: next})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errs.respond(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
