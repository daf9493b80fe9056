// Package vault stores frkbsyncd's admin bearer token and its user-key
// allowlist in the OS keychain, with environment variable and plain-file
// fallbacks for headless deployments.
package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "frkbsync"

// adminTokenAccount is the fixed keychain account name under which the
// admin bearer token is stored (there is only ever one).
const adminTokenAccount = "admin-token"

// userKeyPrefix namespaces allowlisted user keys within the keychain so
// they don't collide with adminTokenAccount.
const userKeyPrefix = "user:"

// Vault provides secure secret storage using the OS keychain, with
// fallback to environment variables.
type Vault struct{}

// New creates a new Vault instance.
func New() *Vault {
	return &Vault{}
}

// SetAdminToken stores the admin bearer token (§6: "a separate admin
// token gates force-unlock and diagnostics endpoints") in the OS keychain.
func (v *Vault) SetAdminToken(token string) error {
	return keyring.Set(serviceName, adminTokenAccount, token)
}

// GetAdminToken retrieves the admin bearer token. It checks the OS
// keychain first, then falls back to the FRKBSYNC_ADMIN_TOKEN
// environment variable.
func (v *Vault) GetAdminToken() (string, error) {
	secret, err := keyring.Get(serviceName, adminTokenAccount)
	if err == nil && secret != "" {
		return secret, nil
	}
	if val := os.Getenv("FRKBSYNC_ADMIN_TOKEN"); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("no admin token found: not in keychain and FRKBSYNC_ADMIN_TOKEN not set")
}

// DeleteAdminToken removes the admin bearer token from the OS keychain.
func (v *Vault) DeleteAdminToken() error {
	return keyring.Delete(serviceName, adminTokenAccount)
}

// AllowUserKey adds userKey to the keychain-backed allowlist. The stored
// value is a marker, not a secret — presence is what matters.
func (v *Vault) AllowUserKey(userKey string) error {
	return keyring.Set(serviceName, userKeyPrefix+userKey, "allowed")
}

// RevokeUserKey removes userKey from the allowlist.
func (v *Vault) RevokeUserKey(userKey string) error {
	return keyring.Delete(serviceName, userKeyPrefix+userKey)
}

// IsUserKeyAllowed reports whether userKey is present in the allowlist.
func (v *Vault) IsUserKeyAllowed(userKey string) bool {
	secret, err := keyring.Get(serviceName, userKeyPrefix+userKey)
	return err == nil && secret != ""
}

// ResolveKeyRef parses a reference to a secret and retrieves it.
// Supported formats:
//   - "keyring://frkbsync/admin-token" (preferred)
//   - "keychain:frkbsync/admin-token" (legacy)
//   - "env:VARIABLE_NAME" (environment variable)
//   - "file:///path/to/token" (plain-text file)
func (v *Vault) ResolveKeyRef(keyRef string) (string, error) {
	if strings.HasPrefix(keyRef, "keyring://") {
		path := strings.TrimPrefix(keyRef, "keyring://")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://frkbsync/<account>\")", keyRef)
		}
		secret, err := keyring.Get(serviceName, parts[1])
		if err != nil {
			return "", fmt.Errorf("reading keyring account %q: %w", parts[1], err)
		}
		return secret, nil
	}

	if strings.HasPrefix(keyRef, "keychain:") {
		path := strings.TrimPrefix(keyRef, "keychain:")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid key reference path: %q (expected \"frkbsync/<account>\")", path)
		}
		secret, err := keyring.Get(serviceName, parts[1])
		if err != nil {
			return "", fmt.Errorf("reading keychain account %q: %w", parts[1], err)
		}
		return secret, nil
	}

	if strings.HasPrefix(keyRef, "env:") {
		envVar := strings.TrimPrefix(keyRef, "env:")
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("environment variable %q is not set", envVar)
	}

	if strings.HasPrefix(keyRef, "file://") {
		filePath := strings.TrimPrefix(keyRef, "file://")
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading key file %q: %w", filePath, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("key file %q is empty", filePath)
		}
		return secret, nil
	}

	return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://frkbsync/<account>\", \"keychain:frkbsync/<account>\", \"env:VARIABLE_NAME\", or \"file:///path/to/token\")", keyRef)
}
