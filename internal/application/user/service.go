package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-user-auth/internal/domain"
	"github.com/go-user-auth/internal/pkg/id"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type Service interface {
	// Register creates an unverified account and issues its verification
	// ticket. The returned token is the same one sent by email.
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.Account, string, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error)
	Get(ctx context.Context, userID string) (*domain.Account, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.Account, error)
	Delete(ctx context.Context, userID string) error
}

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, id string, u domain.AccountUpdate) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error)
}

type passwordHasher interface {
	Hash(plain string) (string, error)
}

type ticketIssuer interface {
	Issue(ctx context.Context, accountID, email string) (string, error)
}

type sessionRevoker interface {
	Revoke(ctx context.Context, accountID string)
}

type service struct {
	repo         accountStore
	hasher       passwordHasher
	verification ticketIssuer
	sessions     sessionRevoker
	now          func() time.Time
}

type ServiceDeps struct {
	Accounts     accountStore
	Hasher       passwordHasher
	Verification ticketIssuer
	Sessions     sessionRevoker
	Now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:         deps.Accounts,
		hasher:       deps.Hasher,
		verification: deps.Verification,
		sessions:     deps.Sessions,
		now:          now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.Account, string, error) {
	email := normalizeEmail(req.Email)

	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, "", fmt.Errorf("email already registered: %w", domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, "", err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	a := &domain.Account{
		ID:           id.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PhoneNumber:  req.PhoneNumber,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// the store enforces uniqueness again for concurrent registrations
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, "", err
	}

	token, err := s.verification.Issue(ctx, a.ID, a.Email)
	if err != nil {
		// an account without a ticket could never be verified, so undo it
		if derr := s.repo.Delete(ctx, a.ID); derr != nil {
			slog.Error("unverifiable account left behind", "user_id", a.ID, "err", derr)
		}
		return nil, "", fmt.Errorf("issue verification ticket: %w", err)
	}
	return a, token, nil
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error) {
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.List(ctx, limit, cursor)
}

func (s *service) Get(ctx context.Context, userID string) (*domain.Account, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.Account, error) {
	if req.HasEmail() {
		return nil, fmt.Errorf("email cannot be updated: %w", domain.ErrBadRequest)
	}
	u := domain.AccountUpdate{
		FirstName:   trimmed(req.FirstName),
		LastName:    trimmed(req.LastName),
		PhoneNumber: req.PhoneNumber,
	}
	if u.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	return s.repo.Update(ctx, userID, u)
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	if s.sessions != nil {
		s.sessions.Revoke(ctx, userID)
	}
	return nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
