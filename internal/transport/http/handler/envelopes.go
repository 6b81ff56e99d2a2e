package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-user-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RegisterEnvelope wraps the registration response. Token is the
// verification token also sent by email.
type RegisterEnvelope struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    *domain.Account `json:"user,omitempty"`
}

// LoginEnvelope mirrors the session cookies in the body.
type LoginEnvelope struct {
	Message      string          `json:"message"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         *domain.Account `json:"user,omitempty"`
}

type RefreshEnvelope struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

// UsersPageEnvelope wraps cursor-paginated user list responses.
type UsersPageEnvelope struct {
	Data       []domain.Account `json:"data"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decodeJSON reads the request body into v. strict rejects unknown fields.
func decodeJSON(r *http.Request, v interface{}, strict bool) error {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(v)
}
