package domain

import (
	"encoding/json"
	"time"
)

// Account is the stored user record. ID and Email never change after creation.
type Account struct {
	ID           string     `json:"id" dynamodbav:"user_id"`
	Email        string     `json:"email" dynamodbav:"email"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`
	FirstName    string     `json:"first_name" dynamodbav:"first_name"`
	LastName     string     `json:"last_name" dynamodbav:"last_name"`
	PhoneNumber  string     `json:"phone_number" dynamodbav:"phone_number"`
	IsVerified   bool       `json:"is_verified" dynamodbav:"is_verified"`
	IsActive     bool       `json:"is_active" dynamodbav:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at" dynamodbav:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// AccountUpdate lists every field a store may change on an existing account.
// Nil pointers are left untouched.
type AccountUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	IsVerified  *bool
	IsActive    *bool
	LastLoginAt *time.Time
}

// Empty reports whether the update carries no field.
func (u AccountUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.PhoneNumber == nil &&
		u.IsVerified == nil && u.IsActive == nil && u.LastLoginAt == nil
}

type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	FirstName   string `json:"first_name" validate:"required,min=3,max=30"`
	LastName    string `json:"last_name" validate:"required,min=3,max=30"`
	PhoneNumber string `json:"phone_number" validate:"required,numeric,min=10,max=15"`
}

// UpdateUserRequest is the allow-list of client-mutable fields. Email is
// kept raw so that any "email" key, even null, can be refused explicitly.
type UpdateUserRequest struct {
	Email       json.RawMessage `json:"email"`
	FirstName   *string         `json:"first_name" validate:"omitempty,min=3,max=30"`
	LastName    *string         `json:"last_name" validate:"omitempty,min=3,max=30"`
	PhoneNumber *string         `json:"phone_number" validate:"omitempty,numeric,min=10,max=15"`
}

// HasEmail reports whether the request body carried an "email" key.
func (r UpdateUserRequest) HasEmail() bool {
	return len(r.Email) > 0
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
