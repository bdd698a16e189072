// Package security stores agent secrets in the OS keyring, falling back to
// an AES-GCM encrypted vault file.
package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"stoic/internal/config"
)

const (
	keyringService = "stoic"
	vaultFile      = "vault.enc"
	saltFile       = "vault.salt"

	// Placeholder accepted in config in place of a secret.
	KeyringPlaceholder = "[keyring]"

	SecretTelegramToken = "telegram_token"
	SecretLLMAPIKey     = "llm_api_key"

	// PassphraseEnv unlocks the vault when the OS keyring is unavailable.
	PassphraseEnv = "STOIC_VAULT_PASSPHRASE"
)

var ErrSecretNotFound = errors.New("secret not found")

// KeyStore manages secrets. Primary: OS keyring. Fallback: encrypted file.
type KeyStore struct {
	encryptionKey []byte // nil disables the vault
	vaultPath     string
}

// NewKeyStore creates a key store whose vault lives in dir. masterKey may be
// nil when only the keyring is used.
func NewKeyStore(dir string, masterKey []byte) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &KeyStore{
		encryptionKey: masterKey,
		vaultPath:     filepath.Join(dir, vaultFile),
	}, nil
}

// OpenDefault opens the key store under ~/.stoic, deriving the vault key
// from PassphraseEnv when it is set.
func OpenDefault() (*KeyStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ".stoic")

	var key []byte
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		salt, err := loadOrCreateSalt(filepath.Join(dir, saltFile))
		if err != nil {
			return nil, fmt.Errorf("vault salt: %w", err)
		}
		key = DeriveKey(pass, salt)
	}
	return NewKeyStore(dir, key)
}

func loadOrCreateSalt(path string) ([]byte, error) {
	if salt, err := os.ReadFile(path); err == nil && len(salt) == saltLen {
		return salt, nil
	}
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return salt, os.WriteFile(path, salt, 0600)
}

// Set stores a secret, trying the keyring first.
func (ks *KeyStore) Set(name, value string) error {
	if err := keyring.Set(keyringService, name, value); err == nil {
		return nil
	}
	return ks.setInVault(name, value)
}

// Get retrieves a secret.
func (ks *KeyStore) Get(name string) (string, error) {
	if val, err := keyring.Get(keyringService, name); err == nil {
		return val, nil
	}
	return ks.getFromVault(name)
}

// Delete removes a secret from both stores.
func (ks *KeyStore) Delete(name string) error {
	_ = keyring.Delete(keyringService, name)
	return ks.deleteFromVault(name)
}

// ResolveSecrets replaces KeyringPlaceholder values in cfg with stored secrets.
func (ks *KeyStore) ResolveSecrets(cfg *config.Config) error {
	var errs []error
	if tg := cfg.Notifications.Telegram; tg != nil && tg.Token == KeyringPlaceholder {
		v, err := ks.Get(SecretTelegramToken)
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram token: %w", err))
		} else {
			tg.Token = v
		}
	}
	if cfg.LLM.APIKey == KeyringPlaceholder {
		v, err := ks.Get(SecretLLMAPIKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("llm api key: %w", err))
		} else {
			cfg.LLM.APIKey = v
		}
	}
	return errors.Join(errs...)
}

// MaskKey returns a masked version of a secret for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

func (ks *KeyStore) loadVault() (map[string]string, error) {
	data, err := os.ReadFile(ks.vaultPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	if ks.encryptionKey == nil {
		return nil, fmt.Errorf("vault locked: set %s", PassphraseEnv)
	}

	plaintext, err := Decrypt(string(data), ks.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt vault: %w", err)
	}

	var vault map[string]string
	if err := json.Unmarshal(plaintext, &vault); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	return vault, nil
}

func (ks *KeyStore) saveVault(vault map[string]string) error {
	if ks.encryptionKey == nil {
		return fmt.Errorf("vault locked: set %s", PassphraseEnv)
	}

	data, err := json.Marshal(vault)
	if err != nil {
		return err
	}

	encrypted, err := Encrypt(data, ks.encryptionKey)
	if err != nil {
		return err
	}
	return os.WriteFile(ks.vaultPath, []byte(encrypted), 0600)
}

func (ks *KeyStore) setInVault(name, value string) error {
	vault, err := ks.loadVault()
	if err != nil {
		return err
	}
	vault[name] = value
	return ks.saveVault(vault)
}

func (ks *KeyStore) getFromVault(name string) (string, error) {
	vault, err := ks.loadVault()
	if err != nil {
		return "", err
	}
	val, ok := vault[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return val, nil
}

func (ks *KeyStore) deleteFromVault(name string) error {
	vault, err := ks.loadVault()
	if err != nil {
		return nil
	}
	if _, ok := vault[name]; !ok {
		return nil
	}
	delete(vault, name)
	return ks.saveVault(vault)
}
