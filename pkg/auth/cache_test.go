package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMinter struct {
	clock clockwork.Clock
	ttl   time.Duration
	mints map[string]int
	err   error
}

func (m *countingMinter) Mint(ctx context.Context, scope string) (Token, error) {
	if m.err != nil {
		return Token{}, m.err
	}
	m.mints[scope]++
	return Token{
		Value:  fmt.Sprintf("%s-%d", scope, m.mints[scope]),
		Expiry: m.clock.Now().Add(m.ttl),
	}, nil
}

func TestCacheReusesUntilMargin(t *testing.T) {
	clock := clockwork.NewFakeClock()
	minter := &countingMinter{clock: clock, ttl: 60 * time.Second, mints: map[string]int{}}
	cache := NewCache(minter, clock)
	ctx := context.Background()

	tok, err := cache.Token(ctx, "installation-1")
	require.NoError(t, err)
	assert.Equal(t, "installation-1-1", tok)

	// 40s of validity left, more than the margin
	clock.Advance(20 * time.Second)
	tok, err = cache.Token(ctx, "installation-1")
	require.NoError(t, err)
	assert.Equal(t, "installation-1-1", tok)
	assert.Equal(t, 1, minter.mints["installation-1"])

	// 20s left, inside the margin
	clock.Advance(20 * time.Second)
	tok, err = cache.Token(ctx, "installation-1")
	require.NoError(t, err)
	assert.Equal(t, "installation-1-2", tok)
	assert.Equal(t, 2, minter.mints["installation-1"])
}

func TestCacheScopesAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	minter := &countingMinter{clock: clock, ttl: time.Hour, mints: map[string]int{}}
	cache := NewCache(minter, clock)
	ctx := context.Background()

	a, _ := cache.Token(ctx, "a")
	b, _ := cache.Token(ctx, "b")
	assert.NotEqual(t, a, b)
	cache.Token(ctx, "a")
	assert.Equal(t, 1, minter.mints["a"])
	assert.Equal(t, 1, minter.mints["b"])
}

func TestCacheMintErrorPropagates(t *testing.T) {
	minter := &countingMinter{err: errors.New("identity provider down"), mints: map[string]int{}}
	cache := NewCache(minter, clockwork.NewFakeClock())
	_, err := cache.Token(context.Background(), "a")
	assert.EqualError(t, err, "identity provider down")
}

func TestTokenSource(t *testing.T) {
	cache := NewCache(MinterFunc(func(ctx context.Context, scope string) (Token, error) {
		return Token{Value: "tok-" + scope, Expiry: time.Now().Add(time.Hour)}, nil
	}), nil)
	tok, err := cache.TokenSource(context.Background(), "42").Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-42", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
}
