package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// devPrivateKey is the first well-known local development account. Never fund it.
const devPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type loginOptions struct {
	baseURL string
	key     string
	domain  string
	uri     string
	chainID int64
	timeout time.Duration
}

func newLogin() *cobra.Command {
	opts := loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run the sign-in flow against a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger("info", true)
			return login(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8787", "server base URL")
	cmd.Flags().StringVar(&opts.key, "key", devPrivateKey, "hex private key to sign with")
	cmd.Flags().StringVar(&opts.domain, "domain", "localhost", "domain placed in the message")
	cmd.Flags().StringVar(&opts.uri, "uri", "http://localhost:8787", "uri placed in the message")
	cmd.Flags().Int64Var(&opts.chainID, "chain-id", 1, "chain id placed in the message")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per request timeout")

	return cmd
}

func login(ctx context.Context, opts loginOptions) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.key, "0x"))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	client := &http.Client{Timeout: opts.timeout}
	baseURL := strings.TrimRight(opts.baseURL, "/")

	log.Info().Str("address", address).Msg("Requesting nonce")
	var nonceResp struct {
		Nonce string `json:"nonce"`
		Error string `json:"error"`
	}
	if err := postJSON(ctx, client, baseURL+"/auth/nonce", map[string]string{"address": address}, &nonceResp); err != nil {
		return err
	}
	if nonceResp.Nonce == "" {
		return fmt.Errorf("no nonce issued: %s", nonceResp.Error)
	}

	message := service.FormatAuthMessage(core.AuthMessage{
		Domain:    opts.domain,
		Address:   address,
		Statement: "Sign in with Ethereum to Garant",
		URI:       opts.uri,
		Version:   "1",
		ChainID:   opts.chainID,
		Nonce:     nonceResp.Nonce,
		IssuedAt:  time.Now(),
	})
	log.Info().Msg("Signing message:\n" + message)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	var verifyResp struct {
		OK      bool   `json:"ok"`
		Token   string `json:"token"`
		Address string `json:"address"`
		Error   string `json:"error"`
	}
	err = postJSON(ctx, client, baseURL+"/auth/verify", map[string]string{
		"address":   address,
		"message":   message,
		"signature": hexutil.Encode(sig),
	}, &verifyResp)
	if err != nil {
		return err
	}
	if !verifyResp.OK {
		return fmt.Errorf("verification rejected: %s", verifyResp.Error)
	}
	log.Info().Str("token", verifyResp.Token).Msg("Verified")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/auth/me", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+verifyResp.Token)

	var meResp struct {
		Authenticated bool   `json:"authenticated"`
		Address       string `json:"address"`
	}
	if err := doJSON(client, req, &meResp); err != nil {
		return err
	}
	if !meResp.Authenticated {
		return fmt.Errorf("credential was not accepted by /auth/me")
	}

	log.Info().Str("address", meResp.Address).Msg("Sign-in flow completed")
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(client, req, out)
}

// doJSON decodes the response body into out regardless of status, error bodies carry the reason
func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: unexpected response (%d): %s", req.Method, req.URL.Path, resp.StatusCode, data)
	}
	return nil
}
