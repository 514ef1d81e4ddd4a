package identity

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("resolver-test-secret")

type mapPhoneSessions map[string]string

func (m mapPhoneSessions) Lookup(_ context.Context, token string) (string, error) {
	return m[token], nil
}

func signedToken(t *testing.T, secret []byte, method jwt.SigningMethod, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func TestResolveSessionToken(t *testing.T) {
	r := NewResolver(testSecret, mapPhoneSessions{})
	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, jwt.SigningMethodHS256, "u1"))

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, Identity{Kind: KindSession, UserID: "u1"}, id)
	assert.True(t, id.WriteCapable())
}

func TestResolvePrecedence(t *testing.T) {
	r := NewResolver(testSecret, mapPhoneSessions{"ph-1": "u-phone"})

	// all four channels present: the session token wins
	req := httptest.NewRequest("GET", "/cart?user_id=u-query", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, jwt.SigningMethodHS256, "u-session"))
	req.Header.Set("X-Phone-Session", "ph-1")
	req.Header.Set("X-Guest-Token", "g1")

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, KindSession, id.Kind)
	assert.Equal(t, "u-session", id.UserID)

	// without the bearer token the phone session wins
	req.Header.Del("Authorization")
	id, err = r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, KindPhone, id.Kind)
	assert.Equal(t, "u-phone", id.UserID)

	// then the query parameter
	req.Header.Del("X-Phone-Session")
	id, err = r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, KindQuery, id.Kind)
	assert.Equal(t, "u-query", id.UserID)
	assert.False(t, id.WriteCapable())

	// then the guest token
	req.URL.RawQuery = ""
	id, err = r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, Identity{Kind: KindGuest, GuestToken: "g1"}, id)
}

func TestInvalidBearerDoesNotFallThrough(t *testing.T) {
	r := NewResolver(testSecret, mapPhoneSessions{})
	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	req.Header.Set("X-Guest-Token", "g1")

	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrIdentityRequired, "a bad strong credential must not demote to guest")
}

func TestBearerWrongKeyRejected(t *testing.T) {
	r := NewResolver(testSecret, mapPhoneSessions{})
	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, []byte("another-secret"), jwt.SigningMethodHS256, "u1"))

	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestBearerWithoutSubjectRejected(t *testing.T) {
	r := NewResolver(testSecret, mapPhoneSessions{})
	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, jwt.SigningMethodHS256, ""))

	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestUnknownPhoneSessionRejected(t *testing.T) {
	r := NewResolver(testSecret, mapPhoneSessions{})
	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set("X-Phone-Session", "ph-unknown")

	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestNoChannelsRejected(t *testing.T) {
	r := NewResolver(testSecret, mapPhoneSessions{})
	req := httptest.NewRequest("GET", "/cart", nil)

	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestOwnerHoldsExactlyOneKey(t *testing.T) {
	assert.Equal(t, Owner{UserID: "u1"}, ForUser("u1").Owner())
	assert.Equal(t, Owner{GuestToken: "g1"}, ForGuest("g1").Owner())
	assert.Equal(t, "u1", ForUser("u1").Owner().Key())
	assert.Equal(t, "g1", ForGuest("g1").Owner().Key())
}
