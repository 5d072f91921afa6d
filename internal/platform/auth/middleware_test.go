package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func knownUsers(emails ...string) SubjectResolverFunc {
	set := make(map[string]bool, len(emails))
	for _, e := range emails {
		set[e] = true
	}
	return func(_ context.Context, subject string) (*Identity, error) {
		if !set[subject] {
			return nil, ErrUnknownSubject
		}
		return &Identity{UserID: "id-" + subject, Email: subject}, nil
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/auth/me")
	err := mw(okHandler)(c)
	return rec, c, err
}

func expectStatus(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
	return httpErr
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"", "", ErrMissingCredentials},
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer abc", "abc", nil},
		{"Basic dXNlcjpwYXNz", "", ErrInvalidToken},
		{"Bearer", "", ErrInvalidToken},
		{"Bearer    ", "", ErrInvalidToken},
		{"abc.def.ghi", "", ErrInvalidToken},
	}

	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("BearerToken(%q): expected error %v, got %v", tt.header, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("BearerToken(%q): expected %q, got %q", tt.header, tt.want, got)
		}
	}
}

func TestRequireIdentity_MissingHeader(t *testing.T) {
	a := newTestAuthority(t, nil)
	rec, _, err := serve(t, RequireIdentity(a, knownUsers("alice@example.com"), nil), "")

	httpErr := expectStatus(t, err, http.StatusUnauthorized)
	if httpErr.Message != "missing authorization header" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
	if rec.Header().Get(echo.HeaderWWWAuthenticate) != "Bearer" {
		t.Errorf("expected WWW-Authenticate: Bearer, got %q", rec.Header().Get(echo.HeaderWWWAuthenticate))
	}
}

func TestRequireIdentity_InvalidFormat(t *testing.T) {
	a := newTestAuthority(t, nil)
	for _, h := range []string{"Token abc", "Bearer not-a-jwt", "Bearer a.b.c"} {
		rec, _, err := serve(t, RequireIdentity(a, knownUsers("alice@example.com"), nil), h)
		httpErr := expectStatus(t, err, http.StatusUnauthorized)
		if httpErr.Message != "invalid token" {
			t.Errorf("%q: unexpected message %v", h, httpErr.Message)
		}
		if rec.Header().Get(echo.HeaderWWWAuthenticate) != "Bearer" {
			t.Errorf("%q: expected WWW-Authenticate header", h)
		}
	}
}

func TestRequireIdentity_ValidToken(t *testing.T) {
	a := newTestAuthority(t, nil)
	tok, err := a.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fromCtx *Identity
	mw := RequireIdentity(a, knownUsers("alice@example.com"), nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = mw(func(c echo.Context) error {
		fromCtx, _ = IdentityFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	ident, ok := c.Get(IdentityContextKey).(*Identity)
	if !ok {
		t.Fatal("expected identity in echo context")
	}
	if ident.Email != "alice@example.com" || ident.UserID != "id-alice@example.com" {
		t.Errorf("unexpected identity %+v", ident)
	}
	if ident.Claims == nil || ident.Claims.Subject != "alice@example.com" {
		t.Error("expected verified claims attached to identity")
	}
	if fromCtx != ident {
		t.Error("expected the same identity on the request context")
	}
}

func TestRequireIdentity_ExpiredToken(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	a := newTestAuthority(t, clock)
	tok, err := a.IssueWithTTL("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(2 * time.Minute)

	_, _, err = serve(t, RequireIdentity(a, knownUsers("alice@example.com"), nil), "Bearer "+tok)
	httpErr := expectStatus(t, err, http.StatusUnauthorized)
	if httpErr.Message != "token expired" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}

func TestRequireIdentity_UnknownSubject(t *testing.T) {
	a := newTestAuthority(t, nil)
	tok, err := a.Issue("ghost@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = serve(t, RequireIdentity(a, knownUsers("alice@example.com"), nil), "Bearer "+tok)
	httpErr := expectStatus(t, err, http.StatusUnauthorized)
	if httpErr.Message != "not authenticated" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}

func TestRequireIdentity_StoreFailure(t *testing.T) {
	a := newTestAuthority(t, nil)
	tok, err := a.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	broken := SubjectResolverFunc(func(context.Context, string) (*Identity, error) {
		return nil, errors.New("connection refused")
	})

	rec, _, err := serve(t, RequireIdentity(a, broken, nil), "Bearer "+tok)
	expectStatus(t, err, http.StatusInternalServerError)
	if rec.Header().Get(echo.HeaderWWWAuthenticate) != "" {
		t.Error("store failures must not be reported as an auth challenge")
	}
}

func TestRequireIdentity_Skipper(t *testing.T) {
	a := newTestAuthority(t, nil)
	mw := RequireIdentity(a, knownUsers(), func(echo.Context) bool { return true })

	rec, c, err := serve(t, mw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if c.Get(IdentityContextKey) != nil {
		t.Error("skipped request must not carry an identity")
	}
}

func TestAuthenticate_ReturnsTokenErrors(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	a := newTestAuthority(t, clock)
	tok, err := a.IssueWithTTL("alice@example.com", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(time.Second)

	_, err = Authenticate(context.Background(), "Bearer "+tok, a, knownUsers("alice@example.com"))
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user id, got %q", got)
	}
	ctx := WithIdentity(context.Background(), &Identity{UserID: "u-1"})
	if got := UserIDFromContext(ctx); got != "u-1" {
		t.Errorf("expected u-1, got %q", got)
	}
}
