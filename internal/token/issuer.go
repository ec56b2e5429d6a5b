// Package token issues and verifies the signed session tokens that carry
// an authenticated user identity. Tokens are RS256 JWTs: the private key
// signs at issuance, the public key verifies, so verification can be
// deployed separately from issuance.
package token

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prn-tf/meridian-identity/internal/domain"
)

// Kind distinguishes the two session token flavors.
type Kind string

const (
	// KindAccess authorizes requests.
	KindAccess Kind = "access"

	// KindRefresh authorizes minting new access tokens.
	KindRefresh Kind = "refresh"
)

// Claims are the JWT claims carried by a session token.
type Claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Token is an issued session token.
type Token struct {
	// Value is the signed compact JWT.
	Value string

	// ID is the jti claim, used by the revocation deny-list.
	ID string

	// ExpiresAt is the absolute expiry.
	ExpiresAt time.Time

	// TTL is the token lifetime, also used for cookie max-age.
	TTL time.Duration
}

// Config holds the signing key pair and token lifetimes.
type Config struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Issuer creates and validates session tokens.
type Issuer struct {
	cfg Config
}

// NewIssuer creates an Issuer from the given configuration.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.PublicKey == nil {
		return nil, fmt.Errorf("token: public key is required")
	}
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("token: private key is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token: access and refresh TTLs must be positive")
	}
	return &Issuer{cfg: cfg}, nil
}

// Issue creates a signed token of the given kind bound to subject.
func (i *Issuer) Issue(kind Kind, subject string) (Token, error) {
	ttl := i.cfg.AccessTTL
	if kind == KindRefresh {
		ttl = i.cfg.RefreshTTL
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()

	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.cfg.PrivateKey)
	if err != nil {
		return Token{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return Token{
		Value:     signed,
		ID:        jti,
		ExpiresAt: expiresAt,
		TTL:       ttl,
	}, nil
}

// Verify parses and validates a token, requiring the given kind.
// Returns the subject (user id) and the jti. A bad signature, expiry,
// or kind mismatch all map to domain.ErrInvalidToken.
func (i *Issuer) Verify(raw string, kind Kind) (subject, jti string, err error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.cfg.PublicKey, nil
	})
	if err != nil {
		return "", "", domain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind {
		return "", "", domain.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", "", domain.ErrInvalidToken
	}

	return claims.Subject, claims.ID, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

// ParseKeyPair decodes a base64-encoded PEM RSA key pair, the format the
// keys are stored in configuration.
func ParseKeyPair(privateB64, publicB64 string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privPEM, err := base64.StdEncoding.DecodeString(privateB64)
	if err != nil {
		return nil, nil, fmt.Errorf("decode private key: %w", err)
	}
	pubPEM, err := base64.StdEncoding.DecodeString(publicB64)
	if err != nil {
		return nil, nil, fmt.Errorf("decode public key: %w", err)
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}

	return priv, pub, nil
}
