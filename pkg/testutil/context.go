package testutil

import (
	"errors"
	"net/http"
	"time"

	"flightsurety/pkg/domain"
	authmw "flightsurety/pkg/platform/middleware/auth"
	"flightsurety/pkg/requestcontext"
)

// WithPrincipal stores p in the request context the way RequireAuth does.
func WithPrincipal(req *http.Request, p domain.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// WithTime pins the request time.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// PrincipalTokens is a JWT validator stand-in that reads the principal
// straight from the bearer token.
type PrincipalTokens struct{}

func (PrincipalTokens) ValidateToken(token string) (*authmw.JWTClaims, error) {
	p, err := domain.ParsePrincipal(token)
	if err != nil {
		return nil, errors.New("token is not a principal")
	}
	return &authmw.JWTClaims{Principal: p, JTI: "jti-" + token}, nil
}
