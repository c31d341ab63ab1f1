package secrets

import (
	"fmt"
	"os"

	"filippo.io/age"
)

// Resolver resolves named secrets for backend ${ENV_VAR} substitution.
// Lookup order: process environment, then the toolhost .env file.
// ENC[age:...] values from the .env file are decrypted with the identity.
type Resolver struct {
	dotenvPath string
	identity   *age.X25519Identity
}

// NewResolver creates a Resolver. The identity may be nil when no encrypted
// values are in use.
func NewResolver(dotenvPath string, identity *age.X25519Identity) *Resolver {
	return &Resolver{dotenvPath: dotenvPath, identity: identity}
}

// Get resolves a secret by name. Returns an error if the name is unknown or
// an encrypted value cannot be decrypted.
func (r *Resolver) Get(name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}

	entries, err := Entries(r.dotenvPath)
	if err != nil {
		return "", err
	}
	v, ok := entries[name]
	if !ok {
		return "", fmt.Errorf("secret %q is not set", name)
	}

	if IsEncrypted(v) {
		if r.identity == nil {
			return "", fmt.Errorf("secret %q is encrypted but no age key is loaded", name)
		}
		return Decrypt(v, r.identity)
	}
	return v, nil
}
