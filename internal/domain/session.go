package domain

import "time"

// TokenKind separates the three signed token families. Each kind is signed
// with its own secret and carries its own audience.
type TokenKind string

const (
	TokenAccess       TokenKind = "access"
	TokenRefresh      TokenKind = "refresh"
	TokenVerification TokenKind = "email-verification"
)

// Identity is the decoded subject of a verified token.
type Identity struct {
	UserID    string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is what a successful login hands back to the client.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
