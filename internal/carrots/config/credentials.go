package config

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// ParseStrategy selects how a credential payload is decoded.
type ParseStrategy int

const (
	// ParseStrict accepts JSON only.
	ParseStrict ParseStrategy = iota
	// ParseWithBase64Fallback retries a payload that fails JSON parsing as
	// base64-encoded JSON when it looks like a base64 blob.
	ParseWithBase64Fallback
)

const (
	base64MinLength = 200
	privateKeyField = "private_key"
)

// ServiceAccount is a parsed service account credential document.
type ServiceAccount map[string]any

func (sa ServiceAccount) str(key string) string {
	s, _ := sa[key].(string)
	return s
}

func (sa ServiceAccount) Type() string      { return sa.str("type") }
func (sa ServiceAccount) ProjectID() string { return sa.str("project_id") }

func (sa ServiceAccount) HasPrivateKey() bool {
	return sa.str(privateKeyField) != ""
}

// JSON re-encodes the credential for client libraries that take raw bytes.
func (sa ServiceAccount) JSON() ([]byte, error) {
	return json.Marshal(map[string]any(sa))
}

// ParseCredentials decodes the raw value of env var name into a ServiceAccount.
func ParseCredentials(name, raw string, strategy ParseStrategy) (ServiceAccount, error) {
	sa, err := decodeServiceAccount([]byte(raw))
	if err == nil {
		return sa, nil
	}
	if strategy == ParseWithBase64Fallback && LooksLikeBase64(raw) {
		decoded, decErr := decodeBase64(raw)
		if decErr != nil {
			return nil, invalid(name, "invalid JSON (base64 decode attempted): %v", decErr)
		}
		sa, decErr = decodeServiceAccount(decoded)
		if decErr != nil {
			return nil, invalid(name, "invalid JSON (base64 decode attempted): %v", decErr)
		}
		return sa, nil
	}
	return nil, invalid(name, "invalid JSON: %v", err)
}

// LooksLikeBase64 is a cheap heuristic that never matches ordinary JSON.
func LooksLikeBase64(value string) bool {
	if len(value) <= base64MinLength {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(value), "{") {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=', r == '\r', r == '\n':
		default:
			return false
		}
	}
	return true
}

// NormalizePrivateKey turns literal "\n" sequences in private_key into newlines.
func NormalizePrivateKey(sa ServiceAccount) ServiceAccount {
	if sa == nil {
		return sa
	}
	key, ok := sa[privateKeyField].(string)
	if ok && strings.Contains(key, `\n`) {
		sa[privateKeyField] = strings.ReplaceAll(key, `\n`, "\n")
	}
	return sa
}

func decodeServiceAccount(data []byte) (ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, err
	}
	if sa == nil {
		return nil, errNotAnObject
	}
	return sa, nil
}

func decodeBase64(raw string) ([]byte, error) {
	cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	if strings.HasSuffix(cleaned, "=") {
		return base64.StdEncoding.DecodeString(cleaned)
	}
	return base64.RawStdEncoding.DecodeString(cleaned)
}
