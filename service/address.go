package service

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/garant/core"
)

// NormalizeAddress returns the lower-case hex form of a 0x-prefixed address
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", core.ErrInvalidAddress
	}
	if !common.IsHexAddress(address) {
		return "", core.ErrInvalidAddress
	}
	return strings.ToLower(address), nil
}

// ChecksumAddress parses a 0x-prefixed address into its EIP-55 form
func ChecksumAddress(address string) (common.Address, error) {
	if _, err := NormalizeAddress(address); err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(address), nil
}

// canonical lower-cases an address without validating it
func canonical(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
