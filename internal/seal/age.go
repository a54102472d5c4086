// Package seal implements the sealed-value primitive. The age-backed sealer
// stores each value encrypted to the authority's X25519 recipient alongside a
// per-handle grant list; the value is unreadable, even by the storing
// authority, until the authority identity is unlocked and the requesting
// principal holds a view grant.
package seal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"

	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

// AgeSealer implements market.Sealer using filippo.io/age with X25519 keys.
// The public recipient is stored in plaintext; the private identity is
// encrypted with the authority's passphrase using age's scrypt-based
// passphrase encryption. Sealed values live as files under the store
// directory, one .age blob and one .grants list per handle.
type AgeSealer struct {
	recipientPath string
	identityPath  string
	storeDir      string
	idgen         market.IDGenerator

	mu       sync.Mutex
	identity age.Identity // set by Unlock, held in memory only
}

var _ market.Sealer = (*AgeSealer)(nil)

// NewAgeSealer creates a new AgeSealer from configuration.
func NewAgeSealer(cfg config.SealerConfig, idgen market.IDGenerator) *AgeSealer {
	if idgen == nil {
		idgen = market.UUIDGenerator{}
	}
	return &AgeSealer{
		recipientPath: cfg.RecipientPath,
		identityPath:  cfg.IdentityPath,
		storeDir:      cfg.StoreDir,
		idgen:         idgen,
	}
}

// Setup generates a new X25519 key pair, stores the public recipient in
// plaintext, and encrypts the private identity with the passphrase using
// age's scrypt-based passphrase encryption.
func (s *AgeSealer) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, dir := range []string{filepath.Dir(s.recipientPath), filepath.Dir(s.identityPath), s.storeDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating sealer directory: %w", err)
		}
	}

	if err := os.WriteFile(s.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing recipient: %w", err)
	}

	idFile, err := os.OpenFile(s.identityPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating identity file: %w", err)
	}
	defer idFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(idFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted identity: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted identity: %w", err)
	}

	return nil
}

// Unlock decrypts the authority identity using the passphrase and holds it
// in memory for the session. The unlocked identity is never written to disk.
func (s *AgeSealer) Unlock(passphrase string) error {
	idData, err := os.ReadFile(s.identityPath)
	if err != nil {
		return fmt.Errorf("reading identity file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(bytes.NewReader(idData), scrypt)
	if err != nil {
		return fmt.Errorf("decrypting identity: %w", err)
	}

	keyData, err := io.ReadAll(decReader)
	if err != nil {
		return fmt.Errorf("reading decrypted identity: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return fmt.Errorf("parsing identity: %w", err)
	}

	if len(identities) == 0 {
		return fmt.Errorf("no identities found in identity file")
	}

	s.mu.Lock()
	s.identity = identities[0]
	s.mu.Unlock()
	return nil
}

// IsConfigured returns true if both key files exist.
func (s *AgeSealer) IsConfigured() bool {
	if _, err := os.Stat(s.recipientPath); err != nil {
		return false
	}
	if _, err := os.Stat(s.identityPath); err != nil {
		return false
	}
	return true
}

// Seal encrypts raw to the authority recipient and stores it under a fresh
// handle with an empty grant list.
func (s *AgeSealer) Seal(raw []byte) (string, error) {
	recipient, err := s.loadRecipient()
	if err != nil {
		return "", fmt.Errorf("loading recipient: %w", err)
	}

	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return "", fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return "", fmt.Errorf("sealing value: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing sealed value: %w", err)
	}

	handle := s.idgen.New()
	if err := os.MkdirAll(s.storeDir, 0700); err != nil {
		return "", fmt.Errorf("creating store directory: %w", err)
	}
	if err := os.WriteFile(s.blobPath(handle), sealed.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("writing sealed value: %w", err)
	}
	if err := os.WriteFile(s.grantsPath(handle), nil, 0600); err != nil {
		return "", fmt.Errorf("writing grant list: %w", err)
	}

	return handle, nil
}

// GrantView permits principal to later unseal the value. Idempotent:
// granting an already-granted principal is a no-op.
func (s *AgeSealer) GrantView(handle, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grants, err := s.readGrants(handle)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if g == principal {
			return nil
		}
	}

	f, err := os.OpenFile(s.grantsPath(handle), os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("opening grant list: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, principal); err != nil {
		return fmt.Errorf("appending grant: %w", err)
	}
	return nil
}

// Unseal decrypts the sealed value for a granted principal.
func (s *AgeSealer) Unseal(handle, principal string) ([]byte, error) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	if identity == nil {
		return nil, fmt.Errorf("sealer is locked: call Unlock first")
	}

	grants, err := s.readGrants(handle)
	if err != nil {
		return nil, err
	}
	granted := false
	for _, g := range grants {
		if g == principal {
			granted = true
			break
		}
	}
	if !granted {
		return nil, fmt.Errorf("%w: principal has no view grant for handle %s", market.ErrNotAuthorized, handle)
	}

	sealed, err := os.ReadFile(s.blobPath(handle))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: sealed handle %s", market.ErrNotFound, handle)
		}
		return nil, fmt.Errorf("reading sealed value: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		return nil, fmt.Errorf("unsealing value: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading unsealed value: %w", err)
	}
	return raw, nil
}

func (s *AgeSealer) blobPath(handle string) string {
	return filepath.Join(s.storeDir, handle+".age")
}

func (s *AgeSealer) grantsPath(handle string) string {
	return filepath.Join(s.storeDir, handle+".grants")
}

// readGrants returns the grant list for a handle, one principal per line.
func (s *AgeSealer) readGrants(handle string) ([]string, error) {
	data, err := os.ReadFile(s.grantsPath(handle))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: sealed handle %s", market.ErrNotFound, handle)
		}
		return nil, fmt.Errorf("reading grant list: %w", err)
	}

	var grants []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			grants = append(grants, line)
		}
	}
	return grants, nil
}

// loadRecipient reads the public recipient from disk and parses it.
func (s *AgeSealer) loadRecipient() (age.Recipient, error) {
	pubData, err := os.ReadFile(s.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading recipient: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing recipient: %w", err)
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in recipient file")
	}

	return recipients[0], nil
}
