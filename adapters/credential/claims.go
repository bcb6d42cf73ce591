package credential

import "github.com/golang-jwt/jwt/v5"

// CredentialClaims are the standard claims of a signed credential.
// Subject is the verified address, ID the consumed nonce.
type CredentialClaims struct {
	jwt.RegisteredClaims
}
