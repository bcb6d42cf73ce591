package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/layer-3/garant/adapters/store"
	"github.com/layer-3/garant/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func TestNonceRegistry_Issue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	challenge, err := env.nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	assert.Equal(t, strings.ToLower(testAddress), challenge.Address)
	assert.Len(t, challenge.Nonce, 64)
	assert.Equal(t, env.clock.Now(), challenge.IssuedAt)
	assert.Equal(t, challenge.IssuedAt.Add(DefaultNonceTTL), challenge.ExpiresAt)
	assert.False(t, challenge.Consumed)

	stored, err := env.nonces.Lookup(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, challenge.Nonce, stored.Nonce)
}

func TestNonceRegistry_IssueInvalidAddress(t *testing.T) {
	env := newTestEnv(t)

	for _, address := range []string{"", "hello", "0x1234", "Ab5801a7D398351b8bE11C439e05C5B3259aeC9B"} {
		_, err := env.nonces.Issue(context.Background(), address)
		assert.ErrorIs(t, err, core.ErrInvalidAddress, address)
	}
	assert.Zero(t, env.store.Len())
}

func TestNonceRegistry_IssueStoreFailure(t *testing.T) {
	registry := NewNonceRegistry(failingStore{}, time2.NewMockClock(time.Now()), DefaultNonceTTL)

	_, err := registry.Issue(context.Background(), testAddress)
	assert.ErrorContains(t, err, "store unavailable")
}

func TestNonceRegistry_IssueSupersedes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.nonces.Issue(ctx, testAddress)
	require.NoError(t, err)
	second, err := env.nonces.Issue(ctx, testAddress)
	require.NoError(t, err)
	require.NotEqual(t, first.Nonce, second.Nonce)

	_, err = env.nonces.Consume(ctx, testAddress, first.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceMismatch)

	consumed, err := env.nonces.Consume(ctx, testAddress, second.Nonce)
	require.NoError(t, err)
	assert.True(t, consumed.Consumed)
}

func TestNonceRegistry_ConsumeOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	challenge, err := env.nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	// addresses are matched case-insensitively
	_, err = env.nonces.Consume(ctx, strings.ToLower(testAddress), challenge.Nonce)
	require.NoError(t, err)

	_, err = env.nonces.Consume(ctx, testAddress, challenge.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceNotFound)

	_, err = env.nonces.Lookup(ctx, testAddress)
	assert.ErrorIs(t, err, core.ErrNonceNotFound)
}

func TestNonceRegistry_MismatchKeepsChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	challenge, err := env.nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	_, err = env.nonces.Consume(ctx, testAddress, "deadbeefdeadbeef")
	assert.ErrorIs(t, err, core.ErrNonceMismatch)

	_, err = env.nonces.Consume(ctx, testAddress, challenge.Nonce)
	assert.NoError(t, err)
}

func TestNonceRegistry_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	challenge, err := env.nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	env.clock.Advance(DefaultNonceTTL - time.Second)
	_, err = env.nonces.Lookup(ctx, testAddress)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Second)
	_, err = env.nonces.Consume(ctx, testAddress, challenge.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceExpired)

	// the expired entry is removed on first sight
	_, err = env.nonces.Consume(ctx, testAddress, challenge.Nonce)
	assert.ErrorIs(t, err, core.ErrNonceNotFound)
}

func TestNonceRegistry_CustomTTL(t *testing.T) {
	clock := time2.NewMockClock(time.Now())
	registry := NewNonceRegistry(store.NewMemoryStore(testContext(t), clock), clock, time.Minute)
	ctx := context.Background()

	challenge, err := registry.Issue(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, challenge.IssuedAt.Add(time.Minute), challenge.ExpiresAt)

	clock.Advance(time.Minute + time.Second)
	_, err = registry.Lookup(ctx, testAddress)
	assert.ErrorIs(t, err, core.ErrNonceExpired)
}

func TestNonceRegistry_ConcurrentConsume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	challenge, err := env.nonces.Issue(ctx, testAddress)
	require.NoError(t, err)

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.nonces.Consume(ctx, testAddress, challenge.Nonce)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, core.ErrNonceNotFound)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
