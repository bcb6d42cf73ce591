package credential

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/layer-3/garant/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAddress = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	testNonce   = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
)

func TestPlainIssuer_RoundTrip(t *testing.T) {
	issuer := NewPlainIssuer()

	token, err := issuer.Issue("0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266", testNonce)
	require.NoError(t, err)
	assert.Equal(t, testAddress+":"+testNonce, token)

	identity, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, testAddress, identity.Address)
	assert.Equal(t, testNonce, identity.Nonce)
}

func TestPlainIssuer_Malformed(t *testing.T) {
	issuer := NewPlainIssuer()

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", testAddress},
		{"too many parts", testAddress + ":" + testNonce + ":extra"},
		{"bad address", "0xnothex:" + testNonce},
		{"missing prefix", testAddress[2:] + ":" + testNonce},
		{"empty nonce", testAddress + ":"},
		{"non hex nonce", testAddress + ":not-a-nonce"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := issuer.Parse(tc.token)
			assert.ErrorIs(t, err, core.ErrMalformedCredential)
		})
	}
}

func newJWTIssuer(t *testing.T, clock time2.Clock) (*ecdsa.PrivateKey, *JWTIssuer) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	issuer := NewJWTIssuer(key, clock, JWTConfig{
		Issuer:   "garant",
		Audience: "garant:session",
		TTL:      time.Hour,
	})
	return key, issuer.(*JWTIssuer)
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	clock := time2.NewMockClock(time.Now())
	_, issuer := newJWTIssuer(t, clock)

	token, err := issuer.Issue(testAddress, testNonce)
	require.NoError(t, err)

	identity, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, core.Identity{Address: testAddress, Nonce: testNonce}, identity)
}

func TestJWTIssuer_Expired(t *testing.T) {
	clock := time2.NewMockClock(time.Now())
	_, issuer := newJWTIssuer(t, clock)

	token, err := issuer.Issue(testAddress, testNonce)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, core.ErrCredentialExpired)
}

func TestJWTIssuer_ForeignKey(t *testing.T) {
	clock := time2.NewMockClock(time.Now())
	_, issuer := newJWTIssuer(t, clock)
	_, other := newJWTIssuer(t, clock)

	token, err := other.Issue(testAddress, testNonce)
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, core.ErrMalformedCredential)

	// a plain credential is not a JWT
	_, err = issuer.Parse(testAddress + ":" + testNonce)
	assert.ErrorIs(t, err, core.ErrMalformedCredential)
}
