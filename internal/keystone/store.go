package keystone

import (
	"encoding/json"

	"github.com/zalando/go-keyring"

	"github.com/openstack-tools/barbican-cli/internal/logging"
)

// keyringService is the service name tokens are filed under in the OS
// credential store.
const keyringService = "barbican-cli"

// TokenStore persists tokens across process invocations. Stores are
// best-effort: failures degrade to re-issuing a token, never to a hard
// error.
type TokenStore interface {
	Load(key string) (*Token, bool)
	Save(key string, tok *Token)
	Clear(key string)
}

// KeyringStore keeps tokens in the operating system keyring (Secret
// Service on Linux, Keychain on macOS, Credential Manager on Windows).
type KeyringStore struct {
	service string
	logger  *logging.Logger
}

// NewKeyringStore creates a keyring-backed token store.
func NewKeyringStore(logger *logging.Logger) *KeyringStore {
	if logger == nil {
		logger = logging.New(false, false)
	}
	return &KeyringStore{service: keyringService, logger: logger}
}

func (k *KeyringStore) Load(key string) (*Token, bool) {
	raw, err := keyring.Get(k.service, key)
	if err != nil {
		if err != keyring.ErrNotFound {
			k.logger.Debug("Keyring read failed: %v", err)
		}
		return nil, false
	}

	var tok Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		k.logger.Debug("Discarding unparseable keyring token: %v", err)
		_ = keyring.Delete(k.service, key)
		return nil, false
	}
	if tok.Expired() {
		_ = keyring.Delete(k.service, key)
		return nil, false
	}
	return &tok, true
}

func (k *KeyringStore) Save(key string, tok *Token) {
	// The catalog is not persisted: it can be large, and a re-issued
	// token is cheap when endpoint discovery is actually needed.
	slim := Token{ID: tok.ID, ExpiresAt: tok.ExpiresAt}
	raw, err := json.Marshal(slim)
	if err != nil {
		return
	}
	if err := keyring.Set(k.service, key, string(raw)); err != nil {
		k.logger.Debug("Keyring write failed: %v", err)
	}
}

func (k *KeyringStore) Clear(key string) {
	if err := keyring.Delete(k.service, key); err != nil && err != keyring.ErrNotFound {
		k.logger.Debug("Keyring delete failed: %v", err)
	}
}
