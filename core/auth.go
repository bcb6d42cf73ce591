package core

import "time"

// Challenge represents an authentication challenge
type Challenge struct {
	Address   string    // Lower-case hex address of the user
	Nonce     string    // Random nonce to be embedded in the signed message
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
	Consumed  bool      // Set once the challenge has been used
}

// Expired reports whether the challenge is past its expiry at t
func (c Challenge) Expired(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// AuthMessage is the subset of a Sign-In with Ethereum message used for validation
type AuthMessage struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string
}

// Identity is what a bearer credential proves
type Identity struct {
	Address string // Lower-case hex address
	Nonce   string // Nonce consumed when the credential was minted
}
