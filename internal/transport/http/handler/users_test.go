package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-user-auth/internal/application/session"
	"github.com/go-user-auth/internal/domain"
	"github.com/go-user-auth/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.Account, string, error) {
	args := m.Called(ctx, req)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.String(1), args.Error(2)
	}
	return nil, "", args.Error(2)
}

func (m *mockUserSvc) List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error) {
	args := m.Called(ctx, limit, cursor)
	return args.Get(0).([]domain.Account), args.String(1), args.Error(2)
}

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.Account, error) {
	args := m.Called(ctx, userID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.Account, error) {
	args := m.Called(ctx, userID, req)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req domain.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*session.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Refresh(ctx context.Context, token string) (domain.IssuedToken, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(domain.IssuedToken), args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, token string) { m.Called(ctx, token) }

func (m *mockSessionSvc) Revoke(ctx context.Context, accountID string) { m.Called(ctx, accountID) }

type mockRedeemer struct{ mock.Mock }

func (m *mockRedeemer) Redeem(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

// --- helpers ---

func userRouter(svc *mockUserSvc) http.Handler {
	h := NewUserHandler(svc, false)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithIdentity(r.Context(), &domain.Identity{UserID: "u1"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/users", h.List)
	r.Get("/users/{id}", h.Get)
	r.Put("/users/{id}", h.Update)
	r.Delete("/users/{id}", h.Delete)
	return r
}

func jsonReq(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func ptr[T any](v T) *T { return &v }

// --- tests ---

func TestGetUser_NotFound(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetUser_OmitsPasswordHash(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Get", mock.Anything, "u1").Return(&domain.Account{ID: "u1", Email: "a@test.com", PasswordHash: "$2a$secret"}, nil)

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/u1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestListUsers_PassesPagination(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("List", mock.Anything, 20, "abc").Return([]domain.Account{{ID: "u2"}}, "def", nil)

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users?limit=20&cursor=abc", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var env UsersPageEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "def", env.NextCursor)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "u2", env.Data[0].ID)
}

func TestUpdateUser_UnknownFieldRejected(t *testing.T) {
	svc := &mockUserSvc{}

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, jsonReq(http.MethodPut, "/users/u1", `{"is_verified":true}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_ValidationError(t *testing.T) {
	svc := &mockUserSvc{}

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, jsonReq(http.MethodPut, "/users/u1", `{"phone_number":"12ab"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Update", mock.Anything, "u1", domain.UpdateUserRequest{FirstName: ptr("Bobby")}).
		Return(&domain.Account{ID: "u1", FirstName: "Bobby"}, nil)

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, jsonReq(http.MethodPut, "/users/u1", `{"first_name":"Bobby"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	var a domain.Account
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
	assert.Equal(t, "Bobby", a.FirstName)
	svc.AssertExpectations(t)
}

func TestUpdateUser_EmailRefused(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Update", mock.Anything, "u1", mock.Anything).
		Return(nil, domain.ErrBadRequest)

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, jsonReq(http.MethodPut, "/users/u1", `{"email":"new@test.com"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteUser_NoContent(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Delete", mock.Anything, "u1").Return(nil)

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/users/u1", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestDeleteUser_NotFound(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Delete", mock.Anything, "missing").Return(domain.ErrNotFound)

	rr := httptest.NewRecorder()
	userRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/users/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
