package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/garant/core"
)

const signatureLength = 65

// VerifierConfig binds signed messages to one deployment
type VerifierConfig struct {
	Domain        string
	URI           string
	AllowedChains []int64
}

// Verification is the outcome of a successful Verify
type Verification struct {
	Address    string // lower-case hex
	Nonce      string
	ChainID    int64
	VerifiedAt time.Time
}

// Verifier validates signed sign-in messages against issued challenges
type Verifier struct {
	nonces  *NonceRegistry
	clock   time2.Clock
	domain  string
	uri     string
	allowed map[int64]struct{}
}

// NewVerifier creates a verifier consuming challenges from nonces
func NewVerifier(nonces *NonceRegistry, clock time2.Clock, cfg VerifierConfig) *Verifier {
	if clock == nil {
		clock = time2.DefaultClock
	}
	allowed := make(map[int64]struct{}, len(cfg.AllowedChains))
	for _, id := range cfg.AllowedChains {
		allowed[id] = struct{}{}
	}
	return &Verifier{
		nonces:  nonces,
		clock:   clock,
		domain:  cfg.Domain,
		uri:     cfg.URI,
		allowed: allowed,
	}
}

// Verify checks message and signature for address and consumes the challenge on success.
// A rejected call leaves the challenge in place.
func (v *Verifier) Verify(ctx context.Context, address, message, signature string) (Verification, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != signatureLength {
		return Verification{}, core.ErrMalformedSignature
	}

	msg, err := ParseAuthMessage(message)
	if err != nil {
		return Verification{}, err
	}

	addr := canonical(address)
	challenge, err := v.nonces.Lookup(ctx, addr)
	if err != nil {
		return Verification{}, err
	}
	if msg.Nonce != challenge.Nonce {
		return Verification{}, core.ErrNonceMismatch
	}

	if _, ok := v.allowed[msg.ChainID]; !ok {
		return Verification{}, core.ErrChainNotAllowed
	}

	now := v.clock.Now()
	if msg.ExpirationTime != nil && now.After(*msg.ExpirationTime) {
		return Verification{}, core.ErrMessageExpired
	}
	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return Verification{}, core.ErrMessageNotYetValid
	}

	if msg.Domain != v.domain {
		return Verification{}, core.ErrDomainMismatch
	}
	if msg.URI != v.uri {
		return Verification{}, core.ErrURIMismatch
	}

	if canonical(msg.Address) != addr {
		return Verification{}, core.ErrAddressMismatch
	}

	signer, err := recoverSigner(message, sig)
	if err != nil {
		return Verification{}, err
	}
	if canonical(signer.Hex()) != addr {
		return Verification{}, core.ErrInvalidSignature
	}

	consumed, err := v.nonces.Consume(ctx, addr, msg.Nonce)
	if err != nil {
		if errors.Is(err, core.ErrNonceNotFound) || errors.Is(err, core.ErrNonceExpired) || errors.Is(err, core.ErrNonceMismatch) {
			return Verification{}, err
		}
		return Verification{}, fmt.Errorf("%w: %v", core.ErrVerificationFailed, err)
	}

	return Verification{
		Address:    addr,
		Nonce:      consumed.Nonce,
		ChainID:    msg.ChainID,
		VerifiedAt: now,
	}, nil
}

// recoverSigner returns the account that produced an EIP-191 personal signature over message
func recoverSigner(message string, sig []byte) (signer common.Address, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", core.ErrVerificationFailed, r)
		}
	}()

	rsv := make([]byte, signatureLength)
	copy(rsv, sig)
	if rsv[crypto.RecoveryIDOffset] >= 27 {
		rsv[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
