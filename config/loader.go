package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// rpcEnv maps the per-chain RPC variables to their chain id
var rpcEnv = map[string]int64{
	"RPC_URL_MAINNET":      ChainMainnet,
	"RPC_URL_BASE":         ChainBase,
	"RPC_URL_SEPOLIA":      ChainSepolia,
	"RPC_URL_BASE_SEPOLIA": ChainBaseSepolia,
}

// Load loads configuration from defaults, an optional YAML file and the environment.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := discoverConfigFile(configPath); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the explicit path, then GARANT_CONFIG, then ./garant.yaml if present.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("GARANT_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("garant.yaml"); err == nil {
		return "garant.yaml"
	}
	return ""
}

// loadYAMLFile reads a YAML file into cfg. Absent fields keep their defaults.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	setString := func(target *string, names ...string) {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				*target = v
			}
		}
	}
	setString(&cfg.Server.Addr, "GARANT_ADDR")
	setString(&cfg.Redis.URL, "REDIS_URL", "GARANT_REDIS_URL")
	setString(&cfg.Auth.Domain, "SIWE_DOMAIN", "GARANT_DOMAIN")
	setString(&cfg.Auth.URI, "GARANT_URI")
	setString(&cfg.Auth.Credential.Scheme, "GARANT_CREDENTIAL_SCHEME")
	setString(&cfg.Auth.Credential.Issuer, "JWT_ISSUER", "GARANT_JWT_ISSUER")
	setString(&cfg.Auth.Credential.Audience, "JWT_AUDIENCE", "GARANT_JWT_AUDIENCE")
	setString(&cfg.Auth.Credential.KeyFile, "GARANT_JWT_KEY_FILE")
	setString(&cfg.Logger.Level, "GARANT_LOG_LEVEL")

	if v := os.Getenv("PORT"); v != "" && os.Getenv("GARANT_ADDR") == "" {
		cfg.Server.Addr = ":" + v
	}

	if v := os.Getenv("ALLOWED_CHAIN_IDS"); v != "" {
		chains, err := parseChainList(v)
		if err != nil {
			return fmt.Errorf("ALLOWED_CHAIN_IDS: %w", err)
		}
		cfg.Auth.AllowedChains = chains
	}

	if v := os.Getenv("NONCE_TTL_SECONDS"); v != "" {
		ttl, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("NONCE_TTL_SECONDS: %w", err)
		}
		cfg.Auth.NonceTTL = ttl
	}
	if v := os.Getenv("SESSION_TTL_SECONDS"); v != "" {
		ttl, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("SESSION_TTL_SECONDS: %w", err)
		}
		cfg.Auth.Credential.TTL = ttl
	}
	if v := os.Getenv("GARANT_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GARANT_CACHE_TTL: %w", err)
		}
		cfg.Access.CacheTTL = ttl
	}

	for name, target := range map[string]*bool{
		"GARANT_REQUIRE_AUTH":   &cfg.Access.RequireAuth,
		"GARANT_EVENTS_ENABLED": &cfg.Events.Enabled,
		"GARANT_LOG_PRETTY":     &cfg.Logger.Pretty,
	} {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*target = b
		}
	}

	if cfg.Chains == nil {
		cfg.Chains = make(map[int64]string)
	}
	for name, chainID := range rpcEnv {
		if v := os.Getenv(name); v != "" {
			cfg.Chains[chainID] = v
		}
	}

	return nil
}

func parseChainList(v string) ([]int64, error) {
	var chains []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		chains = append(chains, id)
	}
	return chains, nil
}

func parseSeconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
