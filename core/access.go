package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Standard identifies a token interface
type Standard string

const (
	StandardERC20   Standard = "erc20"
	StandardERC721  Standard = "erc721"
	StandardERC1155 Standard = "erc1155"
)

// Valid reports whether s is one of the supported standards
func (s Standard) Valid() bool {
	switch s {
	case StandardERC20, StandardERC721, StandardERC1155:
		return true
	}
	return false
}

// NativeAsset is the contract address that selects the chain's native balance
var NativeAsset = common.Address{}

// AccessRequest describes a single ownership or balance predicate
type AccessRequest struct {
	Address    common.Address
	ChainID    int64
	Standard   Standard
	Contract   common.Address
	TokenID    *big.Int // required for erc1155, optional otherwise
	MinBalance *big.Int // nil means 1
	Recheck    bool
}

// Threshold returns the minimum balance, defaulting to one base unit
func (r AccessRequest) Threshold() *big.Int {
	if r.MinBalance == nil {
		return big.NewInt(1)
	}
	return r.MinBalance
}

// Holding is the raw outcome of an on-chain check
type Holding struct {
	OK      bool
	Balance *big.Int
}

// AccessResult is a cached or fresh verdict for an AccessRequest
type AccessResult struct {
	OK        bool      `json:"ok"`
	Balance   string    `json:"balance"`
	Cached    bool      `json:"-"`
	CheckedAt time.Time `json:"checked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
