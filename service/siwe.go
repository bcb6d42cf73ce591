package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/layer-3/garant/core"
)

const (
	siweHeaderSuffix = " wants you to sign in with your Ethereum account:"
	siweVersion      = "1"
	minNonceLength   = 8

	fieldURI            = "URI"
	fieldVersion        = "Version"
	fieldChainID        = "Chain ID"
	fieldNonce          = "Nonce"
	fieldIssuedAt       = "Issued At"
	fieldExpirationTime = "Expiration Time"
	fieldNotBefore      = "Not Before"
	fieldRequestID      = "Request ID"
	fieldResources      = "Resources"
)

// ParseAuthMessage reads the fields of a Sign-In with Ethereum message that are
// needed for verification. Ordering of the tagged fields is not enforced.
func ParseAuthMessage(raw string) (core.AuthMessage, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return core.AuthMessage{}, malformed("message too short")
	}

	var msg core.AuthMessage

	domain, ok := strings.CutSuffix(lines[0], siweHeaderSuffix)
	if !ok || domain == "" || strings.ContainsAny(domain, " \t") {
		return core.AuthMessage{}, malformed("invalid header")
	}
	msg.Domain = domain

	if _, err := NormalizeAddress(lines[1]); err != nil || lines[1] != strings.TrimSpace(lines[1]) {
		return core.AuthMessage{}, malformed("invalid address line")
	}
	msg.Address = lines[1]

	i := 2
	var statement []string
	for ; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], fieldURI+": ") {
			break
		}
		if lines[i] != "" {
			statement = append(statement, lines[i])
		}
	}
	msg.Statement = strings.Join(statement, "\n")

	seen := make(map[string]bool)
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}

		if line == fieldResources+":" {
			resources, err := parseResources(lines[i+1:])
			if err != nil {
				return core.AuthMessage{}, err
			}
			msg.Resources = resources
			break
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return core.AuthMessage{}, malformed("unexpected line %q", line)
		}
		if seen[key] {
			return core.AuthMessage{}, malformed("duplicate field %q", key)
		}
		seen[key] = true

		if err := setField(&msg, key, value); err != nil {
			return core.AuthMessage{}, err
		}
	}

	for _, required := range []string{fieldURI, fieldVersion, fieldChainID, fieldNonce, fieldIssuedAt} {
		if !seen[required] {
			return core.AuthMessage{}, malformed("missing field %q", required)
		}
	}

	return msg, nil
}

func setField(msg *core.AuthMessage, key, value string) error {
	switch key {
	case fieldURI:
		if value == "" {
			return malformed("empty uri")
		}
		msg.URI = value
	case fieldVersion:
		if value != siweVersion {
			return malformed("unsupported version %q", value)
		}
		msg.Version = value
	case fieldChainID:
		chainID, err := strconv.ParseInt(value, 10, 64)
		if err != nil || chainID <= 0 {
			return malformed("invalid chain id %q", value)
		}
		msg.ChainID = chainID
	case fieldNonce:
		if !validNonce(value) {
			return malformed("invalid nonce")
		}
		msg.Nonce = value
	case fieldIssuedAt:
		t, err := parseTimestamp(value)
		if err != nil {
			return err
		}
		msg.IssuedAt = t
	case fieldExpirationTime:
		t, err := parseTimestamp(value)
		if err != nil {
			return err
		}
		msg.ExpirationTime = &t
	case fieldNotBefore:
		t, err := parseTimestamp(value)
		if err != nil {
			return err
		}
		msg.NotBefore = &t
	case fieldRequestID:
		msg.RequestID = value
	default:
		return malformed("unknown field %q", key)
	}
	return nil
}

func parseResources(lines []string) ([]string, error) {
	var resources []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		resource, ok := strings.CutPrefix(line, "- ")
		if !ok {
			return nil, malformed("invalid resource line %q", line)
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, malformed("invalid timestamp %q", value)
	}
	return t, nil
}

func validNonce(nonce string) bool {
	if len(nonce) < minNonceLength {
		return false
	}
	for _, r := range nonce {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// FormatAuthMessage renders msg in the Sign-In with Ethereum text layout
func FormatAuthMessage(msg core.AuthMessage) string {
	var b strings.Builder

	b.WriteString(msg.Domain + siweHeaderSuffix + "\n")
	b.WriteString(msg.Address + "\n")
	b.WriteString("\n")
	if msg.Statement != "" {
		b.WriteString(msg.Statement + "\n")
		b.WriteString("\n")
	}

	version := msg.Version
	if version == "" {
		version = siweVersion
	}

	fmt.Fprintf(&b, "%s: %s\n", fieldURI, msg.URI)
	fmt.Fprintf(&b, "%s: %s\n", fieldVersion, version)
	fmt.Fprintf(&b, "%s: %d\n", fieldChainID, msg.ChainID)
	fmt.Fprintf(&b, "%s: %s\n", fieldNonce, msg.Nonce)
	fmt.Fprintf(&b, "%s: %s", fieldIssuedAt, formatTimestamp(msg.IssuedAt))
	if msg.ExpirationTime != nil {
		fmt.Fprintf(&b, "\n%s: %s", fieldExpirationTime, formatTimestamp(*msg.ExpirationTime))
	}
	if msg.NotBefore != nil {
		fmt.Fprintf(&b, "\n%s: %s", fieldNotBefore, formatTimestamp(*msg.NotBefore))
	}
	if msg.RequestID != "" {
		fmt.Fprintf(&b, "\n%s: %s", fieldRequestID, msg.RequestID)
	}
	if len(msg.Resources) > 0 {
		fmt.Fprintf(&b, "\n%s:", fieldResources)
		for _, resource := range msg.Resources {
			b.WriteString("\n- " + resource)
		}
	}

	return b.String()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
