package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims identify the operator or service calling the inspection endpoints.
type Claims struct {
	Subject string
	Issuer  string
}

type Authenticator interface {
	Authenticate(r *http.Request) (Claims, error)
}

// MultiAuthenticator accepts either the static dev token or a JWT verified
// against the configured issuer's keys.
type MultiAuthenticator struct {
	DevToken string
	JWT      *JWTAuthenticator
}

func (a *MultiAuthenticator) Authenticate(r *http.Request) (Claims, error) {
	bearer, err := extractBearer(r)
	if err != nil {
		return Claims{}, err
	}

	if a.DevToken != "" && bearer == a.DevToken {
		return Claims{Subject: "dev", Issuer: "cardkit-dev"}, nil
	}
	if a.JWT != nil && strings.Count(bearer, ".") == 2 {
		return a.JWT.AuthenticateBearer(r.Context(), bearer)
	}

	return Claims{}, ErrInvalidToken
}

// Enabled reports whether any credential is configured. With none, the
// inspection endpoints stay closed.
func (a *MultiAuthenticator) Enabled() bool {
	return a != nil && (a.DevToken != "" || a.JWT != nil)
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
