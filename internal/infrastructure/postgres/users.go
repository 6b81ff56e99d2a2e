package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-user-auth/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, password_hash, first_name, last_name, phone_number,
		is_verified, is_active, last_login_at, created_at, updated_at`

// UserStore keeps accounts in the users table.
type UserStore struct {
	db  DBTX
	now func() time.Time
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.PhoneNumber,
		&a.IsVerified, &a.IsActive, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *UserStore) Create(ctx context.Context, a *domain.Account) error {
	query :=
		`INSERT INTO users (id, email, password_hash, first_name, last_name, phone_number,
		 is_verified, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.PhoneNumber,
		a.IsVerified, a.IsActive, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("email %s already registered: %w", a.Email, domain.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.getOne(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.getOne(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg string) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Update applies the non-nil fields of u and returns the stored account.
func (s *UserStore) Update(ctx context.Context, id string, u domain.AccountUpdate) (*domain.Account, error) {
	if u.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.FirstName != nil {
		add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		add("last_name", *u.LastName)
	}
	if u.PhoneNumber != nil {
		add("phone_number", *u.PhoneNumber)
	}
	if u.IsVerified != nil {
		add("is_verified", *u.IsVerified)
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}
	if u.LastLoginAt != nil {
		add("last_login_at", *u.LastLoginAt)
	}
	add("updated_at", s.now())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), accountColumns)

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return nil
}

// List returns up to limit accounts ordered by id, starting after cursor.
// The returned cursor is empty on the last page.
func (s *UserStore) List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error) {
	after := ""
	if cursor != "" {
		b, err := base64.RawURLEncoding.DecodeString(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		after = string(b)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE id > $1 ORDER BY id LIMIT $2`, after, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, "", fmt.Errorf("db error: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("db error: %w", err)
	}

	next := ""
	if len(accounts) > limit {
		accounts = accounts[:limit]
		next = base64.RawURLEncoding.EncodeToString([]byte(accounts[limit-1].ID))
	}
	return accounts, next, nil
}
