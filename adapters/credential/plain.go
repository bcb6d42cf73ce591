package credential

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/ports"
)

const separator = ":"

// PlainIssuer mints "<address>:<nonce>" bearer strings.
// Possession is the only proof; there is no expiry or revocation.
type PlainIssuer struct{}

// NewPlainIssuer creates a plain credential issuer
func NewPlainIssuer() ports.CredentialIssuer {
	return PlainIssuer{}
}

// Issue binds address to the nonce that was consumed to verify it
func (PlainIssuer) Issue(address, nonce string) (string, error) {
	address = strings.ToLower(address)
	if !common.IsHexAddress(address) || !validNonce(nonce) {
		return "", core.ErrMalformedCredential
	}
	return address + separator + nonce, nil
}

// Parse splits a plain credential and returns the embedded identity
func (PlainIssuer) Parse(credential string) (core.Identity, error) {
	parts := strings.Split(credential, separator)
	if len(parts) != 2 {
		return core.Identity{}, core.ErrMalformedCredential
	}

	address, nonce := parts[0], parts[1]
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) || !validNonce(nonce) {
		return core.Identity{}, core.ErrMalformedCredential
	}

	return core.Identity{Address: strings.ToLower(address), Nonce: nonce}, nil
}

func validNonce(nonce string) bool {
	if nonce == "" {
		return false
	}
	_, err := hex.DecodeString(nonce)
	return err == nil
}
