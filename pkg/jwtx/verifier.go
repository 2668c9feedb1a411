package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and returns the claims if it checks out. The
// gateway and internal services only ever hold this side of the codec.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// PublicVerifier verifies RS256 tokens from the public key alone.
type PublicVerifier struct {
	pub      *rsa.PublicKey
	issuer   string
	audience string
}

// NewPublicVerifier parses an RSA public key PEM ("PUBLIC KEY" or
// "RSA PUBLIC KEY") and returns a verifier bound to issuer and audience.
func NewPublicVerifier(pemKey []byte, issuer, audience string) (*PublicVerifier, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA public key")
	}

	var pub *rsa.PublicKey
	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS1 public key: %w", err)
		}
		pub = key
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKIX public key: %w", err)
		}
		rsaPub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("jwtx: not an RSA public key")
		}
		pub = rsaPub
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}

	return &PublicVerifier{pub: pub, issuer: issuer, audience: audience}, nil
}

func (v *PublicVerifier) Verify(token string) (Claims, error) {
	return verifyRS256(token, v.pub, v.issuer, v.audience)
}

// verifyRS256 is the single verification path for both the codec and the
// public verifier. The algorithm allow-list rejects "none" and HS256 tokens
// outright so a public key can never be abused as an HMAC secret.
func verifyRS256(tokenStr string, pub *rsa.PublicKey, issuer, audience string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if err := claims.validatePayload(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
