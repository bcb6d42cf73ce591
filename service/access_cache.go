package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/observability"
	"github.com/layer-3/garant/ports"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultAccessCacheTTL is how long a verdict is served from cache
	DefaultAccessCacheTTL = 30 * time.Second

	accessKeyPrefix = "access_check:"

	// sharedQueryTimeout bounds a de-duplicated chain query no caller can cancel
	sharedQueryTimeout = 30 * time.Second
)

// AccessCache memoizes TokenChecker verdicts per normalized request
type AccessCache struct {
	store    ports.Store
	provider ports.ChainProvider
	checker  *TokenChecker
	clock    time2.Clock
	ttl      time.Duration

	inflight singleflight.Group
}

// NewAccessCache creates a cache in front of checker
func NewAccessCache(store ports.Store, provider ports.ChainProvider, checker *TokenChecker, clock time2.Clock, ttl time.Duration) *AccessCache {
	if clock == nil {
		clock = time2.DefaultClock
	}
	if ttl <= 0 {
		ttl = DefaultAccessCacheTTL
	}
	return &AccessCache{
		store:    store,
		provider: provider,
		checker:  checker,
		clock:    clock,
		ttl:      ttl,
	}
}

// CacheKey derives the store key from every field of req except Recheck
func CacheKey(req core.AccessRequest) string {
	tokenID, minBalance := "", ""
	if req.TokenID != nil {
		tokenID = req.TokenID.String()
	}
	if req.MinBalance != nil {
		minBalance = req.MinBalance.String()
	}

	return accessKeyPrefix + strings.Join([]string{
		strconv.FormatInt(req.ChainID, 10),
		string(req.Standard),
		req.Contract.Hex(),
		req.Address.Hex(),
		tokenID,
		minBalance,
	}, ":")
}

// Resolve returns a cached verdict for req when one is live and Recheck is unset,
// otherwise queries the chain and caches the fresh verdict. Failures are not cached.
func (c *AccessCache) Resolve(ctx context.Context, req core.AccessRequest) (core.AccessResult, error) {
	key := CacheKey(req)

	if req.Recheck {
		observability.AccessCacheTotal.WithLabelValues("bypass").Inc()
	} else if result, ok := c.lookup(ctx, key); ok {
		observability.AccessCacheTotal.WithLabelValues("hit").Inc()
		return result, nil
	} else {
		observability.AccessCacheTotal.WithLabelValues("miss").Inc()
	}

	// The shared query outlives any single caller; each caller stops waiting on its own ctx.
	flight := c.inflight.DoChan(key, func() (any, error) {
		queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedQueryTimeout)
		defer cancel()
		return c.refresh(queryCtx, key, req)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return core.AccessResult{}, ctx.Err()
	}
	if res.Err != nil {
		observability.AccessChecksTotal.WithLabelValues(string(req.Standard), "error").Inc()
		return core.AccessResult{}, res.Err
	}

	result := res.Val.(core.AccessResult)
	if result.OK {
		observability.AccessChecksTotal.WithLabelValues(string(req.Standard), "granted").Inc()
	} else {
		observability.AccessChecksTotal.WithLabelValues(string(req.Standard), "denied").Inc()
	}
	return result, nil
}

// Invalidate drops the cached verdict for req
func (c *AccessCache) Invalidate(ctx context.Context, req core.AccessRequest) error {
	return c.store.Delete(ctx, CacheKey(req))
}

func (c *AccessCache) lookup(ctx context.Context, key string) (core.AccessResult, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("Access cache read failed")
		}
		return core.AccessResult{}, false
	}

	var result core.AccessResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable access cache entry")
		return core.AccessResult{}, false
	}

	if !c.clock.Now().Before(result.ExpiresAt) {
		return core.AccessResult{}, false
	}

	result.Cached = true
	return result, true
}

func (c *AccessCache) refresh(ctx context.Context, key string, req core.AccessRequest) (core.AccessResult, error) {
	// a flight started after the previous one wrote its verdict reuses it
	if !req.Recheck {
		if result, ok := c.lookup(ctx, key); ok {
			return result, nil
		}
	}

	client, err := c.provider.Client(ctx, req.ChainID)
	if err != nil {
		return core.AccessResult{}, err
	}

	holding, err := c.checker.Check(ctx, client, req)
	if err != nil {
		return core.AccessResult{}, err
	}

	now := c.clock.Now()
	result := core.AccessResult{
		OK:        holding.OK,
		Balance:   holding.Balance.String(),
		CheckedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return core.AccessResult{}, fmt.Errorf("failed to encode access result: %w", err)
	}

	// A failed write only costs a repeated chain query later
	if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Access cache write failed")
	}

	return result, nil
}
