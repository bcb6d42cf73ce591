// Package config holds the garant service configuration.
//
// Configuration is layered:
//  1. Built-in defaults
//  2. YAML config file (explicit path, GARANT_CONFIG env, ./garant.yaml)
//  3. Environment variable overrides
//  4. Validation
package config

import "time"

// Well-known chain ids with a dedicated RPC_URL_* variable
const (
	ChainMainnet     int64 = 1
	ChainBase        int64 = 8453
	ChainSepolia     int64 = 11155111
	ChainBaseSepolia int64 = 84532
)

// Credential schemes
const (
	SchemePlain = "plain"
	SchemeJWT   = "jwt"
)

// Config holds all configuration for the service.
type Config struct {
	Server ServerConfig     `yaml:"server"`
	Redis  RedisConfig      `yaml:"redis"`
	Auth   AuthConfig       `yaml:"auth"`
	Access AccessConfig     `yaml:"access"`
	Chains map[int64]string `yaml:"chains"` // chain id -> RPC URL
	Events EventsConfig     `yaml:"events"`
	Logger LoggerConfig     `yaml:"logger"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // default: ":8787"
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// RedisConfig selects the Redis-backed store. An empty URL keeps state in memory.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds sign-in settings.
type AuthConfig struct {
	Domain        string           `yaml:"domain"`         // default: "localhost"
	URI           string           `yaml:"uri"`            // default: "http://localhost:8787"
	AllowedChains []int64          `yaml:"allowed_chains"` // default: [1, 8453, 11155111]
	NonceTTL      time.Duration    `yaml:"nonce_ttl"`      // default: 5m
	Credential    CredentialConfig `yaml:"credential"`
}

// CredentialConfig selects how verified sessions are represented.
type CredentialConfig struct {
	Scheme   string        `yaml:"scheme"`   // "plain" or "jwt", default: "plain"
	Issuer   string        `yaml:"issuer"`   // jwt only
	Audience string        `yaml:"audience"` // jwt only
	TTL      time.Duration `yaml:"ttl"`      // jwt only, default: 24h
	KeyFile  string        `yaml:"key_file"` // PEM encoded P-256 key; generated at startup when empty
}

// AccessConfig holds token gating settings.
type AccessConfig struct {
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // default: 30s
	RequireAuth bool          `yaml:"require_auth"` // default: false
}

// EventsConfig toggles sign-in event publishing.
type EventsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// LoggerConfig holds zerolog settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Pretty bool   `yaml:"pretty"` // console writer instead of JSON
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8787",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Domain:        "localhost",
			URI:           "http://localhost:8787",
			AllowedChains: []int64{ChainMainnet, ChainBase, ChainSepolia},
			NonceTTL:      5 * time.Minute,
			Credential: CredentialConfig{
				Scheme:   SchemePlain,
				Issuer:   "garant",
				Audience: "garant",
				TTL:      24 * time.Hour,
			},
		},
		Access: AccessConfig{
			CacheTTL: 30 * time.Second,
		},
		Chains: map[int64]string{},
		Events: EventsConfig{
			Enabled: true,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}
