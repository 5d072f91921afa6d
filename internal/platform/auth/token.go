package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of an access token when none is configured.
const DefaultTokenTTL = 60 * time.Minute

// Claims is the payload of an access token. The subject is the user's email.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenConfig holds the immutable settings of a TokenAuthority.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenAuthority issues and verifies HS256-signed bearer tokens. It holds no
// mutable state and is safe for concurrent use.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenAuthority(cfg TokenConfig) (*TokenAuthority, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenAuthority{
		secret: secret,
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// TTL returns the default lifetime applied by Issue.
func (a *TokenAuthority) TTL() time.Duration {
	return a.ttl
}

// Issue signs a token for subject with the default lifetime.
func (a *TokenAuthority) Issue(subject string) (string, error) {
	return a.IssueWithTTL(subject, a.ttl)
}

// IssueWithTTL signs a token for subject that expires ttl after issuance.
// Timestamps are truncated to whole seconds so that exp-iat equals ttl.
func (a *TokenAuthority) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = a.ttl
	}

	issuedAt := a.now().Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Reason explains why a token failed verification.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonMalformed
	ReasonSignature
	ReasonExpired
	ReasonMissingSubject
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "valid"
	case ReasonMalformed:
		return "malformed token"
	case ReasonSignature:
		return "signature mismatch"
	case ReasonExpired:
		return "token expired"
	case ReasonMissingSubject:
		return "token has no subject"
	default:
		return "invalid token"
	}
}

// Verification is the outcome of TokenAuthority.Verify: either Claims are
// set and Reason is ReasonNone, or Claims is nil and Reason says why.
type Verification struct {
	Claims *Claims
	Reason Reason
}

func (v Verification) Valid() bool {
	return v.Reason == ReasonNone && v.Claims != nil
}

// Err maps the outcome onto the package error taxonomy.
func (v Verification) Err() error {
	switch {
	case v.Valid():
		return nil
	case v.Reason == ReasonExpired:
		return ErrExpiredToken
	default:
		return ErrInvalidToken
	}
}

func invalid(r Reason) Verification {
	return Verification{Reason: r}
}

// Verify checks signature, structure and expiry of tokenStr. A token is
// valid only while now < exp.
func (a *TokenAuthority) Verify(tokenStr string) Verification {
	if tokenStr == "" {
		return invalid(ReasonMalformed)
	}

	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return invalid(ReasonExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return invalid(ReasonSignature)
	default:
		return invalid(ReasonMalformed)
	}
	if !token.Valid {
		return invalid(ReasonMalformed)
	}
	if claims.Subject == "" {
		return invalid(ReasonMissingSubject)
	}
	return Verification{Claims: claims}
}
