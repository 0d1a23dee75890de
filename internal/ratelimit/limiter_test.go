package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixedge/service/internal/auth"
)

// failingStore simulates an unreachable counter backend.
type failingStore struct{}

func (failingStore) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Expire(context.Context, string, int) error {
	return errors.New("connection refused")
}

func TestCheckFixedWindow(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	const limit = 5

	// The call that brings the count to exactly limit is still admitted.
	for i := 1; i <= limit; i++ {
		res := l.Check(ctx, "upload:apikey:k1", limit, 60)
		require.True(t, res.Admitted, "call %d", i)
		assert.Equal(t, int64(i), res.Count)
		assert.Equal(t, limit-i, res.Remaining)
	}

	// The limit+1-th call in the window is the first rejected one.
	res := l.Check(ctx, "upload:apikey:k1", limit, 60)
	assert.False(t, res.Admitted)
	assert.Equal(t, limit, res.Limit)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, int64(limit+1), res.Count)
}

func TestCheckAnonymousScenario(t *testing.T) {
	// 20 uploads from one IP in a minute are all admitted; the 21st is not.
	l := New(NewMemoryStore())
	ctx := context.Background()

	tier := UploadTierFor(auth.Principal{Kind: auth.KindAnonymous, IP: "1.2.3.4"})
	require.Equal(t, "upload:1.2.3.4", tier.Key)
	require.Equal(t, AnonymousLimit, tier.Limit)

	for i := 0; i < tier.Limit; i++ {
		res := l.Check(ctx, tier.Key, tier.Limit, tier.WindowSeconds)
		require.True(t, res.Admitted)
	}
	res := l.Check(ctx, tier.Key, tier.Limit, tier.WindowSeconds)
	assert.False(t, res.Admitted)
	assert.Equal(t, 0, res.Remaining)
}

func TestCheckWindowExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	l := New(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := l.Check(ctx, "k", 2, 60)
		if i < 2 {
			require.True(t, res.Admitted)
		} else {
			require.False(t, res.Admitted)
		}
	}

	// After the window ends the counter restarts at 1.
	now = now.Add(61 * time.Second)
	res := l.Check(ctx, "k", 2, 60)
	assert.True(t, res.Admitted)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, 1, res.Remaining)
}

func TestCheckIndependentKeys(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Check(ctx, "upload:1.2.3.4", 3, 60)
	}
	require.False(t, l.Check(ctx, "upload:1.2.3.4", 3, 60).Admitted)

	// A different IP is a fresh counter.
	res := l.Check(ctx, "upload:5.6.7.8", 3, 60)
	assert.True(t, res.Admitted)
	assert.Equal(t, int64(1), res.Count)
}

func TestCheckUnconfiguredStoreAdmits(t *testing.T) {
	l := New(nil)

	for i := 0; i < 100; i++ {
		res := l.Check(context.Background(), "k", 1, 60)
		require.True(t, res.Admitted)
		assert.Equal(t, 1, res.Remaining)
	}
}

func TestCheckFailsOpen(t *testing.T) {
	l := New(failingStore{})

	res := l.Check(context.Background(), "k", 1, 60)
	assert.True(t, res.Admitted)
}

func TestUploadTierFor(t *testing.T) {
	apiKey := auth.Principal{Kind: auth.KindAPIKey, APIKeyID: "key-1", UserID: "u1", RateLimit: 5}
	userP := auth.Principal{Kind: auth.KindUser, UserID: "u1"}
	anon := auth.Principal{Kind: auth.KindAnonymous, IP: "1.2.3.4"}

	kt := UploadTierFor(apiKey)
	assert.Equal(t, "upload:apikey:key-1", kt.Key)
	assert.Equal(t, 5, kt.Limit)

	ut := UploadTierFor(userP)
	assert.Equal(t, "upload:user:u1", ut.Key)
	assert.Equal(t, UserLimit, ut.Limit)

	at := UploadTierFor(anon)
	assert.Equal(t, "upload:1.2.3.4", at.Key)
	assert.Equal(t, AnonymousLimit, at.Limit)

	// A key holder and their own user session never share a counter.
	assert.NotEqual(t, kt.Key, ut.Key)
}

func TestUploadTierForDefaultKeyLimit(t *testing.T) {
	p := auth.Principal{Kind: auth.KindAPIKey, APIKeyID: "key-2"}
	tier := UploadTierFor(p)
	assert.Equal(t, 100, tier.Limit)
}

func TestUploadTierForDistinctPrincipals(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("u%d", i)
		for _, p := range []auth.Principal{
			{Kind: auth.KindAPIKey, APIKeyID: id},
			{Kind: auth.KindUser, UserID: id},
			{Kind: auth.KindAnonymous, IP: "10.0.0." + id},
		} {
			key := UploadTierFor(p).Key
			require.False(t, seen[key], "duplicate key %q", key)
			seen[key] = true
		}
	}
}

func TestScenarioCustomKeyLimit(t *testing.T) {
	// An API key with rate_limit 5: five calls admitted, the sixth rejected
	// with limit 5 and remaining 0.
	l := New(NewMemoryStore())
	ctx := context.Background()

	p := auth.Principal{Kind: auth.KindAPIKey, APIKeyID: "key-9", RateLimit: 5}
	tier := UploadTierFor(p)

	for i := 0; i < 5; i++ {
		require.True(t, l.Check(ctx, tier.Key, tier.Limit, tier.WindowSeconds).Admitted)
	}
	res := l.Check(ctx, tier.Key, tier.Limit, tier.WindowSeconds)
	assert.False(t, res.Admitted)
	assert.Equal(t, 5, res.Limit)
	assert.Equal(t, 0, res.Remaining)
}
