package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/veloramarket/velora/pkg/jwtx"
)

const (
	testIssuer   = "velora-auth"
	testAudience = "velora-api"
)

func testKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return privPEM, pubPEM
}

func testCodec(t *testing.T, priv []byte) *jwtx.Codec {
	t.Helper()

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		PrivateKeyPEM: priv,
		Issuer:        testIssuer,
		Audience:      testAudience,
	})
	require.NoError(t, err)
	return codec
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	priv, _ := testKeyPair(t)
	codec := testCodec(t, priv)

	for _, role := range []jwtx.Role{jwtx.RoleUser, jwtx.RoleSeller} {
		token, err := codec.Issue("01J0TEST", role, time.Minute)
		require.NoError(t, err)

		claims, err := codec.Verify(token)
		require.NoError(t, err)
		require.Equal(t, "01J0TEST", claims.Subject)
		require.Equal(t, role, claims.Role)
		require.Equal(t, testIssuer, claims.Issuer)
		require.Contains(t, claims.Audience, testAudience)
		require.NotNil(t, claims.ExpiresAt)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	priv, _ := testKeyPair(t)
	codec := testCodec(t, priv)

	token, err := codec.Issue("01J0TEST", jwtx.RoleUser, -time.Minute)
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestVerifyRejectsWrongIssuerAndAudience(t *testing.T) {
	t.Parallel()

	priv, pubPEM := testKeyPair(t)
	codec := testCodec(t, priv)

	token, err := codec.IssueAccess("01J0TEST", jwtx.RoleUser)
	require.NoError(t, err)

	wrongIss, err := jwtx.NewPublicVerifier(pubPEM, "someone-else", testAudience)
	require.NoError(t, err)
	_, err = wrongIss.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)

	wrongAud, err := jwtx.NewPublicVerifier(pubPEM, testIssuer, "other-api")
	require.NoError(t, err)
	_, err = wrongAud.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestVerifyRejectsAlgorithmConfusion(t *testing.T) {
	t.Parallel()

	priv, pubPEM := testKeyPair(t)
	codec := testCodec(t, priv)

	// An attacker who holds the public key signs an HS256 token using the
	// PEM bytes as the HMAC secret. The allow-list must reject it before
	// any key lookup happens.
	claims := jwtx.NewClaims("01J0EVIL", jwtx.RoleSeller, testIssuer, testAudience, time.Hour, time.Now())
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(pubPEM)
	require.NoError(t, err)

	_, err = codec.Verify(forged)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestVerifyRejectsMissingSubjectOrRole(t *testing.T) {
	t.Parallel()

	priv, _ := testKeyPair(t)
	codec := testCodec(t, priv)

	block, _ := pem.Decode(priv)
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)

	now := time.Now()

	noRole := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   "01J0TEST",
		Audience:  jwt.ClaimStrings{testAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	signed, err := noRole.SignedString(key)
	require.NoError(t, err)
	_, err = codec.Verify(signed)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)

	noSub := jwt.NewWithClaims(jwt.SigningMethodRS256, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: jwtx.RoleUser,
	})
	signed, err = noSub.SignedString(key)
	require.NoError(t, err)
	_, err = codec.Verify(signed)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestPublicVerifierMatchesCodec(t *testing.T) {
	t.Parallel()

	priv, pubPEM := testKeyPair(t)
	codec := testCodec(t, priv)

	pair, err := codec.IssuePair("01J0TEST", jwtx.RoleSeller)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	verifier, err := jwtx.NewPublicVerifier(pubPEM, testIssuer, testAudience)
	require.NoError(t, err)

	for _, token := range []string{pair.AccessToken, pair.RefreshToken} {
		claims, err := verifier.Verify(token)
		require.NoError(t, err)
		require.Equal(t, "01J0TEST", claims.Subject)
		require.Equal(t, jwtx.RoleSeller, claims.Role)
	}
}
