package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/ports"
)

const (
	// DefaultNonceTTL is how long an issued challenge stays usable
	DefaultNonceTTL = 5 * time.Minute

	// nonceRetention keeps expired challenges around long enough to report them as expired
	nonceRetention = time.Minute

	nonceBytes = 32
)

type storedChallenge struct {
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NonceRegistry issues and consumes single-use challenges keyed by address
type NonceRegistry struct {
	store ports.Store
	clock time2.Clock
	ttl   time.Duration
}

// NewNonceRegistry creates a registry on top of store
func NewNonceRegistry(store ports.Store, clock time2.Clock, ttl time.Duration) *NonceRegistry {
	if clock == nil {
		clock = time2.DefaultClock
	}
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceRegistry{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

func nonceKey(address string) string {
	return "nonce:" + address
}

// Issue generates a new challenge for address, superseding any previous one
func (r *NonceRegistry) Issue(ctx context.Context, address string) (core.Challenge, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return core.Challenge{}, err
	}

	nonce, err := generateNonce()
	if err != nil {
		return core.Challenge{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := r.clock.Now()
	stored := storedChallenge{
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("failed to encode challenge: %w", err)
	}

	if err := r.store.Set(ctx, nonceKey(addr), string(payload), r.ttl+nonceRetention); err != nil {
		return core.Challenge{}, fmt.Errorf("failed to store challenge: %w", err)
	}

	return stored.challenge(addr), nil
}

// Lookup returns the live challenge for address without consuming it
func (r *NonceRegistry) Lookup(ctx context.Context, address string) (core.Challenge, error) {
	challenge, _, err := r.load(ctx, address)
	return challenge, err
}

// Consume removes the challenge for address if it holds nonce.
// Of several concurrent callers at most one succeeds; the others get ErrNonceNotFound.
func (r *NonceRegistry) Consume(ctx context.Context, address, nonce string) (core.Challenge, error) {
	challenge, raw, err := r.load(ctx, address)
	if err != nil {
		return core.Challenge{}, err
	}

	if challenge.Nonce != nonce {
		return core.Challenge{}, core.ErrNonceMismatch
	}

	removed, err := r.store.CompareAndDelete(ctx, nonceKey(challenge.Address), raw)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !removed {
		return core.Challenge{}, core.ErrNonceNotFound
	}

	challenge.Consumed = true
	return challenge, nil
}

// load fetches and decodes the stored challenge, dropping it when expired
func (r *NonceRegistry) load(ctx context.Context, address string) (core.Challenge, string, error) {
	addr := canonical(address)
	key := nonceKey(addr)

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Challenge{}, "", core.ErrNonceNotFound
		}
		return core.Challenge{}, "", fmt.Errorf("failed to load challenge: %w", err)
	}

	var stored storedChallenge
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return core.Challenge{}, "", fmt.Errorf("failed to decode challenge: %w", err)
	}

	challenge := stored.challenge(addr)
	if challenge.Expired(r.clock.Now()) {
		// only remove the entry we read, a fresh one may have been issued meanwhile
		if _, err := r.store.CompareAndDelete(ctx, key, raw); err != nil {
			return core.Challenge{}, "", fmt.Errorf("failed to drop expired challenge: %w", err)
		}
		return core.Challenge{}, "", core.ErrNonceExpired
	}

	return challenge, raw, nil
}

func (s storedChallenge) challenge(address string) core.Challenge {
	return core.Challenge{
		Address:   address,
		Nonce:     s.Nonce,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// generateNonce generates a secure random hex nonce
func generateNonce() (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return hex.EncodeToString(nonce), nil
}
