package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is what the identity provider puts inside a bearer token. The
// storefront only reads it; issuing and refreshing tokens happens elsewhere.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// Identity describes the visitor behind a request: a registered user
// (UserID set) or an anonymous session correlated by SessionToken.
type Identity struct {
	UserID       *uuid.UUID
	SessionToken string
}

func (i Identity) Authenticated() bool {
	return i.UserID != nil
}

// Label is the human-readable owner tag used in order notifications.
func (i Identity) Label() string {
	if i.UserID != nil {
		return i.UserID.String()
	}

	return "Гость"
}
