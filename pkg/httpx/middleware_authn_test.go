package httpx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/veloramarket/velora/pkg/httpx"
	"github.com/veloramarket/velora/pkg/jwtx"
)

func testCodec(t *testing.T) *jwtx.Codec {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		PrivateKeyPEM: privPEM,
		Issuer:        "velora-auth",
		Audience:      "velora-api",
	})
	require.NoError(t, err)
	return codec
}

func echoAuth(t *testing.T) (http.Handler, *httpx.AuthContext, *bool) {
	t.Helper()

	var got httpx.AuthContext
	var authed bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, authed = httpx.AuthFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	return h, &got, &authed
}

func TestOptionalAuthnLetsAnonymousThrough(t *testing.T) {
	t.Parallel()

	codec := testCodec(t)
	h, _, authed := echoAuth(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	httpx.Chain(h, httpx.OptionalAuthn(codec)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, *authed)
}

func TestOptionalAuthnAttachesContext(t *testing.T) {
	t.Parallel()

	codec := testCodec(t)
	h, got, authed := echoAuth(t)

	token, err := codec.IssueAccess("01J0PRINCIPAL", jwtx.RoleSeller)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	httpx.Chain(h, httpx.OptionalAuthn(codec)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, *authed)
	require.Equal(t, "01J0PRINCIPAL", got.PrincipalID)
	require.Equal(t, jwtx.RoleSeller, got.Role)
}

func TestOptionalAuthnRejectsInvalidBearer(t *testing.T) {
	t.Parallel()

	codec := testCodec(t)
	h, _, authed := echoAuth(t)

	expired, err := codec.Issue("01J0PRINCIPAL", jwtx.RoleUser, -time.Minute)
	require.NoError(t, err)

	for _, token := range []string{"garbage", expired} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		httpx.Chain(h, httpx.OptionalAuthn(codec)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, *authed)
	}
}

func TestRequireAuthnEnforcesRole(t *testing.T) {
	t.Parallel()

	codec := testCodec(t)
	h, _, _ := echoAuth(t)

	token, err := codec.IssueAccess("01J0PRINCIPAL", jwtx.RoleUser)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	httpx.Chain(h, httpx.RequireAuthn(codec, jwtx.RoleSeller)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	httpx.Chain(h, httpx.RequireAuthn(codec)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrustForwardedIdentity(t *testing.T) {
	t.Parallel()

	h, got, _ := echoAuth(t)
	guard := httpx.TrustForwardedIdentity(jwtx.RoleUser)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set(httpx.HeaderUserID, "01J0PRINCIPAL")
	req.Header.Set(httpx.HeaderUserRole, "user")
	httpx.Chain(h, guard).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "01J0PRINCIPAL", got.PrincipalID)

	// Wrong role header is unauthorized, not forbidden: the value never
	// became an identity.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set(httpx.HeaderUserID, "01J0PRINCIPAL")
	req.Header.Set(httpx.HeaderUserRole, "admin")
	httpx.Chain(h, guard).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Seller identity on a user-only route is forbidden.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set(httpx.HeaderUserID, "01J0PRINCIPAL")
	req.Header.Set(httpx.HeaderUserRole, "seller")
	httpx.Chain(h, guard).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	httpx.Chain(h, guard).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
