package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityContextKey is the echo.Context key holding the resolved *Identity.
const IdentityContextKey = "identity"

// Identity is the authenticated principal made available to protected handlers.
type Identity struct {
	UserID string
	Email  string
	Claims *Claims
}

// TokenVerifier verifies a raw bearer token. *TokenAuthority implements it.
type TokenVerifier interface {
	Verify(token string) Verification
}

// SubjectResolver re-resolves a verified token subject against the
// credential store. Implementations return ErrUnknownSubject when the
// subject no longer exists; any other error is treated as a server fault.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, subject string) (*Identity, error)
}

// SubjectResolverFunc adapts a function to SubjectResolver.
type SubjectResolverFunc func(ctx context.Context, subject string) (*Identity, error)

func (f SubjectResolverFunc) ResolveSubject(ctx context.Context, subject string) (*Identity, error) {
	return f(ctx, subject)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// Unauthorized builds the 401 returned for every authentication failure.
func Unauthorized(c echo.Context, message string, cause error) *echo.HTTPError {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, message).SetInternal(cause)
}

// Authenticate runs the resolution steps for a single Authorization header:
// extract the bearer token, verify it, then re-resolve its subject.
func Authenticate(ctx context.Context, header string, verifier TokenVerifier, users SubjectResolver) (*Identity, error) {
	tokenStr, err := BearerToken(header)
	if err != nil {
		return nil, err
	}

	v := verifier.Verify(tokenStr)
	if !v.Valid() {
		return nil, v.Err()
	}

	ident, err := users.ResolveSubject(ctx, v.Claims.Subject)
	if err != nil {
		return nil, err
	}
	ident.Claims = v.Claims
	return ident, nil
}

// RequireIdentity returns middleware that gates a route behind a verified
// bearer token whose subject still exists in the credential store. The
// request is rejected on the first failing step; there is no retry.
func RequireIdentity(verifier TokenVerifier, users SubjectResolver, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			ctx := c.Request().Context()
			ident, err := Authenticate(ctx, c.Request().Header.Get(echo.HeaderAuthorization), verifier, users)
			if err != nil {
				return rejection(c, err)
			}

			c.Set(IdentityContextKey, ident)
			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, ident)))

			return next(c)
		}
	}
}

func rejection(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return Unauthorized(c, "missing authorization header", err)
	case errors.Is(err, ErrExpiredToken):
		return Unauthorized(c, "token expired", err)
	case errors.Is(err, ErrInvalidToken):
		return Unauthorized(c, "invalid token", err)
	case errors.Is(err, ErrUnknownSubject):
		return Unauthorized(c, "not authenticated", err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

// WithIdentity stores ident on ctx.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(identityKey).(*Identity)
	return ident, ok && ident != nil
}

func UserIDFromContext(ctx context.Context) string {
	if ident, ok := IdentityFromContext(ctx); ok {
		return ident.UserID
	}
	return ""
}
