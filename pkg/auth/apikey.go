// Package auth gates the HTTP API with pre-shared keys. The display
// frontend and the setup app each carry one; nothing else on the network
// may talk to the backend.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidKey is returned when no configured key matches.
var ErrInvalidKey = errors.New("invalid api key")

// Key is one configured API key. Value is either the plaintext key or a
// bcrypt hash of it; hashes are recognized by their "$2" prefix.
type Key struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

func (k Key) hashed() bool {
	return strings.HasPrefix(k.Value, "$2")
}

// Keyring authenticates presented keys against the configured set.
type Keyring struct {
	keys []Key
}

// NewKeyring creates a Keyring. An empty key set authenticates nothing;
// pairing the ring with the middleware then locks the API shut, which is
// the safe default for a misconfigured device.
func NewKeyring(keys []Key) *Keyring {
	return &Keyring{keys: keys}
}

// Empty reports whether no keys are configured.
func (r *Keyring) Empty() bool {
	return len(r.keys) == 0
}

// Authenticate checks presented against every configured key and returns
// the matching key's name. Plaintext keys compare in constant time; hashed
// keys go through bcrypt.
func (r *Keyring) Authenticate(presented string) (string, error) {
	if presented == "" {
		return "", ErrInvalidKey
	}

	for _, k := range r.keys {
		if k.hashed() {
			if bcrypt.CompareHashAndPassword([]byte(k.Value), []byte(presented)) == nil {
				return k.Name, nil
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(k.Value), []byte(presented)) == 1 {
			return k.Name, nil
		}
	}
	return "", ErrInvalidKey
}

// HashKey bcrypt-hashes a plaintext key for storage in the config file.
func HashKey(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
