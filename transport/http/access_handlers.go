package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/service"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// maxSafeInteger is the largest integer a JSON number can carry without loss in most clients
var maxSafeInteger = decimal.NewFromInt(1<<53 - 1)

type accessCheckRequest struct {
	Address    string          `json:"address" binding:"required"`
	ChainID    *int64          `json:"chainId" binding:"required"`
	Standard   string          `json:"standard" binding:"required,oneof=erc20 erc721 erc1155"`
	Contract   string          `json:"contract" binding:"required"`
	TokenID    json.RawMessage `json:"tokenId"`
	MinBalance json.RawMessage `json:"minBalance"`
	Recheck    bool            `json:"recheck"`
}

// AccessHandlers contains HTTP handlers for token gating
type AccessHandlers struct {
	cache *service.AccessCache
}

// NewAccessHandlers creates new access handlers
func NewAccessHandlers(cache *service.AccessCache) *AccessHandlers {
	return &AccessHandlers{
		cache: cache,
	}
}

// Check evaluates whether an address holds the requested tokens
func (h *AccessHandlers) Check(c *gin.Context) {
	var body accessCheckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		invalidBody(c, err)
		return
	}

	address, err := service.ChecksumAddress(body.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}
	contract, err := service.ChecksumAddress(body.Contract)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract"})
		return
	}

	tokenID, err := parseAmount(body.TokenID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tokenId"})
		return
	}
	minBalance, err := parseAmount(body.MinBalance)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid minBalance"})
		return
	}

	req := core.AccessRequest{
		Address:    address,
		ChainID:    *body.ChainID,
		Standard:   core.Standard(body.Standard),
		Contract:   contract,
		TokenID:    tokenID,
		MinBalance: minBalance,
		Recheck:    body.Recheck,
	}

	if req.Standard == core.StandardERC1155 && req.TokenID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrTokenIDRequired.Error()})
		return
	}

	if identity, ok := identityFrom(c); ok && !strings.EqualFold(identity.Address, address.Hex()) {
		c.JSON(http.StatusForbidden, gin.H{"error": core.ErrAddressMismatch.Error()})
		return
	}

	result, err := h.cache.Resolve(c.Request.Context(), req)
	if err != nil {
		var callErr *core.ContractCallError
		switch {
		case errors.Is(err, core.ErrChainNotConfigured), errors.Is(err, core.ErrTokenIDRequired), errors.Is(err, core.ErrUnsupportedStandard):
			c.JSON(http.StatusBadRequest, gin.H{"error": core.Reason(err)})
		case errors.As(err, &callErr):
			log.Warn().Err(err).Int64("chain_id", req.ChainID).Str("contract", contract.Hex()).Msg("Access check failed")
			response := echo(req)
			response["ok"] = false
			response["balance"] = "0"
			response["error"] = callErr.Cause
			c.JSON(http.StatusBadRequest, response)
		default:
			log.Error().Err(err).Int64("chain_id", req.ChainID).Msg("Access check fault")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "access check failed"})
		}
		return
	}

	response := echo(req)
	response["ok"] = result.OK
	response["balance"] = result.Balance
	response["cached"] = result.Cached
	response["checkedAt"] = result.CheckedAt.UnixMilli()
	c.JSON(http.StatusOK, response)
}

// echo renders the normalized request fields returned with every verdict
func echo(req core.AccessRequest) gin.H {
	response := gin.H{
		"chainId":  req.ChainID,
		"standard": req.Standard,
		"contract": req.Contract.Hex(),
		"address":  req.Address.Hex(),
	}
	if req.TokenID != nil {
		response["tokenId"] = req.TokenID.String()
	}
	return response
}

// parseAmount accepts a non-negative integer given as a digit string or a safe JSON number.
// An absent or null value yields nil.
func parseAmount(raw json.RawMessage) (*big.Int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" || strings.TrimLeft(s, "0123456789") != "" {
			return nil, errors.New("not a decimal integer")
		}
		value, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, errors.New("not a decimal integer")
		}
		return value, nil
	}

	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil, err
	}
	if !d.IsInteger() || d.IsNegative() || d.GreaterThan(maxSafeInteger) {
		return nil, errors.New("not a safe non-negative integer")
	}
	return d.BigInt(), nil
}
