package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users map[string]*UserRecord
}

func (f *fakeUsers) FindUserByID(_ context.Context, id string) (*UserRecord, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type fakeKeys struct {
	mu      sync.Mutex
	keys    map[string]*APIKeyRecord // by hash
	touched []string
}

func (f *fakeKeys) FindByHash(_ context.Context, hash string) (*APIKeyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.keys[hash]; ok {
		return k, nil
	}
	return nil, errors.New("api key not found")
}

func (f *fakeKeys) TouchLastUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeKeys) touchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.touched...)
}

func newTestResolver(t *testing.T) (*Resolver, *Codec, *fakeUsers, *fakeKeys) {
	t.Helper()
	codec := NewCodec("test-secret")
	users := &fakeUsers{users: map[string]*UserRecord{
		"u1": {ID: "u1", Email: "me@example.com"},
	}}
	keys := &fakeKeys{keys: map[string]*APIKeyRecord{
		HashAPIKey("px_rawkey"): {ID: "k1", UserID: "u1", Prefix: "px_rawkey", RateLimit: 42, Active: true},
		HashAPIKey("px_dead"):   {ID: "k2", UserID: "u1", Prefix: "px_dead", RateLimit: 10, Active: false},
	}}
	return NewResolver(codec, users, keys), codec, users, keys
}

func TestResolveBearerToken(t *testing.T) {
	rs, codec, _, _ := newTestResolver(t)

	token, err := codec.Issue("u1", "me@example.com")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	p := rs.Resolve(r)
	assert.Equal(t, KindUser, p.Kind)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "me@example.com", p.Email)
}

func TestResolveCookieToken(t *testing.T) {
	rs, codec, _, _ := newTestResolver(t)

	token, err := codec.Issue("u1", "me@example.com")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})

	p := rs.Resolve(r)
	assert.Equal(t, KindUser, p.Kind)
	assert.Equal(t, "u1", p.UserID)
}

func TestResolveMalformedTokenFallsThrough(t *testing.T) {
	rs, _, _, _ := newTestResolver(t)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	p := rs.Resolve(r)
	assert.Equal(t, KindAnonymous, p.Kind)
	assert.Equal(t, "1.2.3.4", p.IP)
}

func TestResolveExpiredTokenFallsThrough(t *testing.T) {
	rs, _, _, _ := newTestResolver(t)

	claims := jwt.MapClaims{
		"userId": "u1",
		"email":  "me@example.com",
		"type":   TokenTypeUser,
		"iat":    time.Now().Add(-2 * time.Hour).Unix(),
		"exp":    time.Now().Add(-time.Hour).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("Authorization", "Bearer "+expired)

	p := rs.Resolve(r)
	assert.Equal(t, KindAnonymous, p.Kind)
}

func TestResolveExpiredTokenThenAPIKey(t *testing.T) {
	// An unusable session token does not block the API-key check.
	rs, _, _, _ := newTestResolver(t)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	r.Header.Set("X-API-Key", "px_rawkey")

	p := rs.Resolve(r)
	assert.Equal(t, KindAPIKey, p.Kind)
}

func TestResolveUnknownUserFallsThrough(t *testing.T) {
	rs, codec, _, _ := newTestResolver(t)

	token, err := codec.Issue("ghost", "ghost@example.com")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	p := rs.Resolve(r)
	assert.Equal(t, KindAnonymous, p.Kind)
}

func TestResolveAPIKey(t *testing.T) {
	rs, _, _, keys := newTestResolver(t)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("X-API-Key", "px_rawkey")

	p := rs.Resolve(r)
	assert.Equal(t, KindAPIKey, p.Kind)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "k1", p.APIKeyID)
	assert.Equal(t, 42, p.RateLimit)

	// last_used is recorded off the critical path.
	assert.Eventually(t, func() bool {
		ids := keys.touchedIDs()
		return len(ids) == 1 && ids[0] == "k1"
	}, time.Second, 10*time.Millisecond)
}

func TestResolveInactiveAPIKey(t *testing.T) {
	rs, _, _, keys := newTestResolver(t)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("X-API-Key", "px_dead")

	p := rs.Resolve(r)
	assert.Equal(t, KindAnonymous, p.Kind)
	assert.Empty(t, keys.touchedIDs())
}

func TestResolveAnonymous(t *testing.T) {
	rs, _, _, _ := newTestResolver(t)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	p := rs.Resolve(r)
	assert.Equal(t, KindAnonymous, p.Kind)
	assert.Equal(t, "anonymous", p.IP)
	assert.True(t, p.Anonymous())
}

func TestResolveForwardedForFirstEntry(t *testing.T) {
	rs, _, _, _ := newTestResolver(t)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")

	p := rs.Resolve(r)
	assert.Equal(t, "9.9.9.9", p.IP)
}

func TestResolveIdempotent(t *testing.T) {
	rs, codec, _, _ := newTestResolver(t)

	token, err := codec.Issue("u1", "me@example.com")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	first := rs.Resolve(r)
	second := rs.Resolve(r)
	assert.Equal(t, first, second)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec("secret")

	token, err := codec.Issue("u1", "me@example.com")
	require.NoError(t, err)

	payload, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, "me@example.com", payload.Email)
	assert.Equal(t, TokenTypeUser, payload.Type)
}

func TestCodecRejectsWrongSecret(t *testing.T) {
	token, err := NewCodec("secret-a").Issue("u1", "me@example.com")
	require.NoError(t, err)

	_, err = NewCodec("secret-b").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
