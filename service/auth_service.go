package service

import (
	"context"
	"fmt"

	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/observability"
	"github.com/layer-3/garant/ports"
	"github.com/rs/zerolog/log"
)

// AuthService handles authentication business logic
type AuthService struct {
	nonces      *NonceRegistry
	verifier    *Verifier
	credentials ports.CredentialIssuer
	eventPub    ports.EventPublisher
}

// NewAuthService creates a new authentication service.
// eventPub may be nil.
func NewAuthService(
	nonces *NonceRegistry,
	verifier *Verifier,
	credentials ports.CredentialIssuer,
	eventPub ports.EventPublisher,
) *AuthService {
	return &AuthService{
		nonces:      nonces,
		verifier:    verifier,
		credentials: credentials,
		eventPub:    eventPub,
	}
}

// CreateChallenge issues a nonce for address
func (s *AuthService) CreateChallenge(ctx context.Context, address string) (core.Challenge, error) {
	challenge, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return core.Challenge{}, err
	}

	observability.NoncesIssuedTotal.Inc()
	return challenge, nil
}

// Login verifies a signed message and returns a bearer credential for the signer
func (s *AuthService) Login(ctx context.Context, address, message, signature string) (string, string, error) {
	verification, err := s.verifier.Verify(ctx, address, message, signature)
	if err != nil {
		observability.VerificationsTotal.WithLabelValues(core.Reason(err)).Inc()
		return "", "", err
	}

	token, err := s.credentials.Issue(verification.Address, verification.Nonce)
	if err != nil {
		observability.VerificationsTotal.WithLabelValues(core.Reason(core.ErrVerificationFailed)).Inc()
		return "", "", fmt.Errorf("%w: failed to issue credential: %v", core.ErrVerificationFailed, err)
	}

	observability.VerificationsTotal.WithLabelValues("ok").Inc()

	// The nonce is already consumed, a lost event must not undo the login
	if s.eventPub != nil {
		if err := s.eventPub.PublishVerified(ctx, verification.Address, verification.ChainID, verification.VerifiedAt); err != nil {
			log.Warn().Err(err).Str("address", verification.Address).Msg("Failed to publish verified event")
		}
	}

	return token, verification.Address, nil
}

// Authenticate resolves a bearer credential into the identity it carries
func (s *AuthService) Authenticate(credential string) (core.Identity, error) {
	return s.credentials.Parse(credential)
}
