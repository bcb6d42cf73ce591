package ports

import "github.com/layer-3/garant/core"

// CredentialIssuer mints and reads bearer credentials for verified addresses
type CredentialIssuer interface {
	Issue(address, nonce string) (string, error)
	Parse(credential string) (core.Identity, error)
}
