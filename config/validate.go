package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}

	if c.Auth.Domain == "" {
		errs = append(errs, fmt.Errorf("auth.domain is required"))
	}
	if u, err := url.Parse(c.Auth.URI); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("auth.uri must be an absolute URL, got %q", c.Auth.URI))
	}
	if len(c.Auth.AllowedChains) == 0 {
		errs = append(errs, fmt.Errorf("auth.allowed_chains must not be empty"))
	}
	for _, id := range c.Auth.AllowedChains {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("auth.allowed_chains must be positive, got %d", id))
		}
	}
	if c.Auth.NonceTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.nonce_ttl must be > 0, got %v", c.Auth.NonceTTL))
	}

	switch c.Auth.Credential.Scheme {
	case SchemePlain:
	case SchemeJWT:
		if c.Auth.Credential.TTL <= 0 {
			errs = append(errs, fmt.Errorf("auth.credential.ttl must be > 0, got %v", c.Auth.Credential.TTL))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.credential.scheme must be %q or %q, got %q", SchemePlain, SchemeJWT, c.Auth.Credential.Scheme))
	}

	if c.Access.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("access.cache_ttl must be > 0, got %v", c.Access.CacheTTL))
	}

	for id, rpcURL := range c.Chains {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("chains: chain id must be positive, got %d", id))
		}
		if u, err := url.Parse(rpcURL); rpcURL != "" && (err != nil || u.Scheme == "") {
			errs = append(errs, fmt.Errorf("chains.%d: invalid rpc url %q", id, rpcURL))
		}
	}

	if c.Redis.URL != "" {
		if _, err := url.Parse(c.Redis.URL); err != nil {
			errs = append(errs, fmt.Errorf("redis.url: %w", err))
		}
	}

	return errors.Join(errs...)
}
