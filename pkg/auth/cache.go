// Package auth mints and caches short-lived bearer tokens for the
// external APIs sacar talks to.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
)

// ExpiryMargin is how long before its stated expiry a cached token
// stops being handed out.
const ExpiryMargin = 30 * time.Second

type Token struct {
	Value  string
	Expiry time.Time
}

// Minter obtains a new token for a scope. What a scope means is up to
// the minter: an installation id for GitHub, an OAuth scope for GCP.
type Minter interface {
	Mint(ctx context.Context, scope string) (Token, error)
}

type MinterFunc func(ctx context.Context, scope string) (Token, error)

func (f MinterFunc) Mint(ctx context.Context, scope string) (Token, error) {
	return f(ctx, scope)
}

// Cache holds the most recent token per scope. Concurrent misses may
// each mint; the last one to finish wins.
type Cache struct {
	minter Minter
	clock  clockwork.Clock

	mu     sync.Mutex
	tokens map[string]Token
}

func NewCache(m Minter, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		minter: m,
		clock:  clock,
		tokens: map[string]Token{},
	}
}

func (c *Cache) Token(ctx context.Context, scope string) (string, error) {
	c.mu.Lock()
	tok, ok := c.tokens[scope]
	c.mu.Unlock()
	if ok && tok.Expiry.After(c.clock.Now().Add(ExpiryMargin)) {
		return tok.Value, nil
	}

	tok, err := c.minter.Mint(ctx, scope)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.tokens[scope] = tok
	c.mu.Unlock()
	return tok.Value, nil
}

// TokenSource adapts the cache for use with oauth2 transports. The
// tokens it returns carry no expiry; freshness is the cache's job.
func (c *Cache) TokenSource(ctx context.Context, scope string) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, cache: c, scope: scope}
}

type tokenSource struct {
	ctx   context.Context
	cache *Cache
	scope string
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	value, err := s.cache.Token(s.ctx, s.scope)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: value, TokenType: "Bearer"}, nil
}
