// Package identity manages a principal's persistent signing identity: an
// ed25519 key pair whose public half is stored in plaintext and whose private
// half is encrypted with the principal's passphrase using age's scrypt-based
// passphrase encryption. The unlocked private key is held in memory only.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

// Manager handles generating, storing, and unlocking a principal identity.
type Manager struct {
	publicKeyPath  string
	privateKeyPath string
}

// NewManager creates a Manager from configuration.
func NewManager(cfg config.IdentityConfig) *Manager {
	return &Manager{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a new ed25519 key pair, stores the public key in plaintext
// (hex), and encrypts the private key with the passphrase using age's
// scrypt-based passphrase encryption.
func (m *Manager) Setup(passphrase string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.publicKeyPath), 0700); err != nil {
		return fmt.Errorf("creating public key directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.privateKeyPath), 0700); err != nil {
		return fmt.Errorf("creating private key directory: %w", err)
	}

	if err := os.WriteFile(m.publicKeyPath, []byte(hex.EncodeToString(pub)+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	privFile, err := os.OpenFile(m.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.WriteString(w, hex.EncodeToString(priv)+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}

	return nil
}

// PrincipalID returns the principal identity string for the stored public
// key.
func (m *Manager) PrincipalID() (string, error) {
	pub, err := m.loadPublicKey()
	if err != nil {
		return "", err
	}
	return market.PrincipalID(pub), nil
}

// Unlock decrypts the private key using the passphrase and returns a Signer
// holding the unlocked key in memory. Returns an error if the passphrase is
// incorrect.
func (m *Manager) Unlock(passphrase string) (market.Signer, error) {
	privData, err := os.ReadFile(m.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(bytes.NewReader(privData), scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	keyData, err := io.ReadAll(decReader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted private key: %w", err)
	}

	keyHex := strings.TrimSpace(string(keyData))
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(keyBytes), ed25519.PrivateKeySize)
	}

	return &KeySigner{priv: ed25519.PrivateKey(keyBytes)}, nil
}

// IsConfigured returns true if both key files exist.
func (m *Manager) IsConfigured() bool {
	if _, err := os.Stat(m.publicKeyPath); err != nil {
		return false
	}
	if _, err := os.Stat(m.privateKeyPath); err != nil {
		return false
	}
	return true
}

// loadPublicKey reads the public key from disk and parses it.
func (m *Manager) loadPublicKey() (ed25519.PublicKey, error) {
	data, err := os.ReadFile(m.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key is %d bytes, want %d", len(keyBytes), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(keyBytes), nil
}

// KeySigner holds an unlocked ed25519 private key for signing access
// requests during a session.
type KeySigner struct {
	priv ed25519.PrivateKey
}

var _ market.Signer = (*KeySigner)(nil)

// NewKeySigner wraps an in-memory private key. Used by tests and by flows
// that generate throwaway identities.
func NewKeySigner(priv ed25519.PrivateKey) *KeySigner {
	return &KeySigner{priv: priv}
}

// Public returns the signer's public key.
func (s *KeySigner) Public() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// Sign signs the message with the unlocked private key.
func (s *KeySigner) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, message), nil
}
