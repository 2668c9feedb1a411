package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is what login, registration, and refresh hand back: a short-lived
// access token and a long-lived refresh token, both RS256 JWTs.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CodecOptions configures a Codec. PrivateKeyPEM accepts PKCS1 or PKCS8.
type CodecOptions struct {
	PrivateKeyPEM []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration // defaults to DefaultAccessTokenTTL
	RefreshTTL    time.Duration // defaults to DefaultRefreshTokenTTL
}

// Codec signs and verifies both token families with a static RSA key pair.
// It is pure and safe for concurrent use; construct it once at the
// composition root and inject it.
type Codec struct {
	key        *rsa.PrivateKey
	pub        *rsa.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec parses the private key and returns a ready Codec.
func NewCodec(opts CodecOptions) (*Codec, error) {
	if opts.Issuer == "" || opts.Audience == "" {
		return nil, errors.New("jwtx: issuer and audience are required")
	}

	key, err := parseRSAPrivateKey(opts.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}

	accessTTL := opts.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := opts.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	return &Codec{
		key:        key,
		pub:        &key.PublicKey,
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// Issue signs one token with the given TTL.
func (c *Codec) Issue(principalID string, role Role, ttl time.Duration) (string, error) {
	claims := NewClaims(principalID, role, c.issuer, c.audience, ttl, time.Now().UTC())
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
}

// IssueAccess mints a short-lived access token.
func (c *Codec) IssueAccess(principalID string, role Role) (string, error) {
	return c.Issue(principalID, role, c.accessTTL)
}

// IssueRefresh mints a long-lived refresh token.
func (c *Codec) IssueRefresh(principalID string, role Role) (string, error) {
	return c.Issue(principalID, role, c.refreshTTL)
}

// IssuePair mints both families together, as login and refresh need.
func (c *Codec) IssuePair(principalID string, role Role) (TokenPair, error) {
	access, err := c.IssueAccess(principalID, role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.IssueRefresh(principalID, role)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, algorithm, issuer, audience, expiry, and payload
// completeness. Every failure collapses into ErrInvalidToken.
func (c *Codec) Verify(token string) (Claims, error) {
	return verifyRS256(token, c.pub, c.issuer, c.audience)
}

// parseRSAPrivateKey loads an RSA private key from PEM bytes. Handles both
// PKCS1 and PKCS8 because deployments hand us either.
func parseRSAPrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA private key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS1: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		key, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not an RSA private key")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}
}
