package credential

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/ports"
)

// DefaultJWTTTL is the lifetime of a signed credential
const DefaultJWTTTL = 24 * time.Hour

// JWTConfig configures the signed credential scheme
type JWTConfig struct {
	Issuer   string
	Audience string
	TTL      time.Duration
}

// JWTIssuer mints ES256 signed credentials with an expiry
type JWTIssuer struct {
	signKey *ecdsa.PrivateKey
	clock   time2.Clock
	cfg     JWTConfig
}

// NewJWTIssuer creates a signed credential issuer
func NewJWTIssuer(signKey *ecdsa.PrivateKey, clock time2.Clock, cfg JWTConfig) ports.CredentialIssuer {
	if clock == nil {
		clock = time2.DefaultClock
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultJWTTTL
	}
	return &JWTIssuer{signKey: signKey, clock: clock, cfg: cfg}
}

// Issue signs a credential for address
func (j *JWTIssuer) Issue(address, nonce string) (string, error) {
	if !common.IsHexAddress(address) || nonce == "" {
		return "", core.ErrMalformedCredential
	}

	now := j.clock.Now()
	claims := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(address),
			ID:        nonce,
			Issuer:    j.cfg.Issuer,
			Audience:  jwt.ClaimStrings{j.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}

	return signedToken, nil
}

// Parse validates the signature, issuer, audience and expiry of a credential
func (j *JWTIssuer) Parse(credential string) (core.Identity, error) {
	token, err := jwt.ParseWithClaims(credential, &CredentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(j.cfg.Audience),
		jwt.WithIssuer(j.cfg.Issuer),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.Identity{}, core.ErrCredentialExpired
		}
		return core.Identity{}, fmt.Errorf("%w: %v", core.ErrMalformedCredential, err)
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid || !common.IsHexAddress(claims.Subject) {
		return core.Identity{}, core.ErrMalformedCredential
	}

	return core.Identity{Address: claims.Subject, Nonce: claims.ID}, nil
}
