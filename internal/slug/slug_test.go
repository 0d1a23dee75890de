package slug

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecords is an in-memory existence checker.
type fakeRecords struct {
	taken map[string]bool
	err   error
}

func (f *fakeRecords) Exists(_ context.Context, s string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.taken[s], nil
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"My Cool Pic!!", "my-cool-pic"},
		{"  hello  world  ", "hello-world"},
		{"UPPER", "upper"},
		{"already-fine", "already-fine"},
		{"a--b---c", "a-b-c"},
		{"-leading-and-trailing-", "leading-and-trailing"},
		{"tabs\tand\nnewlines", "tabs-and-newlines"},
		{"émoji🎉stuff", "mojistuff"},
		{"!!!", ""},
		{"", ""},
		{"mixed_under scores", "mixedunder-scores"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"My Cool Pic!!", "  x y z  ", "a--b", "launch", "-a-", "Ωmega cat", "12 34",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestValidateBounds(t *testing.T) {
	require.Error(t, Validate(""))
	require.Error(t, Validate("a"))
	require.NoError(t, Validate("ab"))
	require.NoError(t, Validate(strings.Repeat("x", 32)))
	require.Error(t, Validate(strings.Repeat("x", 33)))
}

func TestValidateReserved(t *testing.T) {
	for _, word := range []string{"api", "admin", "dashboard", "login", "docs", "upload", "static"} {
		err := Validate(word)
		require.ErrorIs(t, err, ErrInvalidCustomID, "word %q", word)
	}
	// "i" is reserved but also fails the length check; either way it is invalid.
	require.Error(t, Validate("i"))

	// Near-misses are fine.
	require.NoError(t, Validate("apis"))
	require.NoError(t, Validate("administrator"))
}

func TestAllocateCustom(t *testing.T) {
	records := &fakeRecords{taken: map[string]bool{}}
	a := NewAllocator(records)

	got, err := a.Allocate(context.Background(), "My Cool Pic!!")
	require.NoError(t, err)
	assert.Equal(t, "my-cool-pic", got)
}

func TestAllocateReserved(t *testing.T) {
	a := NewAllocator(&fakeRecords{taken: map[string]bool{}})

	_, err := a.Allocate(context.Background(), "admin")
	require.ErrorIs(t, err, ErrInvalidCustomID)
	assert.Contains(t, err.Error(), "reserved")
}

func TestAllocateTaken(t *testing.T) {
	a := NewAllocator(&fakeRecords{taken: map[string]bool{"launch": true}})

	_, err := a.Allocate(context.Background(), "launch")
	var taken *TakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, "launch", taken.Slug)
	require.Len(t, taken.Suggestions, 3)
	for _, s := range taken.Suggestions {
		assert.True(t, strings.HasPrefix(s, "launch"), "suggestion %q", s)
		assert.NotEqual(t, "launch", s)
	}
}

func TestAllocateAcceptedThenTaken(t *testing.T) {
	records := &fakeRecords{taken: map[string]bool{}}
	a := NewAllocator(records)
	ctx := context.Background()

	got, err := a.Allocate(ctx, "my-slug")
	require.NoError(t, err)

	// Once a record exists under the slug, resubmission collides.
	records.taken[got] = true
	_, err = a.Allocate(ctx, got)
	var taken *TakenError
	require.ErrorAs(t, err, &taken)
}

func TestAllocateStoreError(t *testing.T) {
	a := NewAllocator(&fakeRecords{err: errors.New("store down")})

	_, err := a.Allocate(context.Background(), "whatever")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCustomID)
}

func TestAllocateRandom(t *testing.T) {
	// The random path performs no existence check, so a fully-taken store
	// must not matter.
	a := NewAllocator(&fakeRecords{err: errors.New("store down")})

	pattern := regexp.MustCompile(`^[a-z0-9]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		got, err := a.Allocate(context.Background(), "")
		require.NoError(t, err)
		assert.Regexp(t, pattern, got)
		seen[got] = true
	}
	assert.Greater(t, len(seen), 45, "random IDs should rarely collide")
}

func TestSuggestionsShape(t *testing.T) {
	s := Suggestions("base")
	require.Len(t, s, 3)
	assert.Regexp(t, `^base-[0-9a-z]+$`, s[0])
	assert.Regexp(t, `^base-[0-9a-z]{3}$`, s[1])
	assert.Regexp(t, `^base[0-9]{1,3}$`, s[2])
}
