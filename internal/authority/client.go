package authority

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"filippo.io/age"

	"github.com/gracehamilton0/secret-picture/internal/market"
)

// Client is the requester side of the key-release protocol. For each request
// it generates a fresh age session identity and a random nonce, builds and
// signs the access request, submits it, and decrypts the wrapped secret with
// the session identity. The session identity lives only for the duration of
// one call.
type Client struct {
	authority market.Authority
	clock     market.Clock
	ttl       time.Duration
}

var _ market.KeyClient = (*Client)(nil)

// NewClient creates a key client submitting to the given authority. ttl is
// the validity window stamped on each request.
func NewClient(authority market.Authority, clock market.Clock, ttl time.Duration) *Client {
	if clock == nil {
		clock = market.RealClock{}
	}
	return &Client{
		authority: authority,
		clock:     clock,
		ttl:       ttl,
	}
}

// RequestSecret obtains the raw identity secret for an item the signer is
// authorized on.
func (c *Client) RequestSecret(ctx context.Context, itemID int64, sealedHandle string, signer market.Signer) ([]byte, error) {
	session, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating session identity: %w", err)
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	req, err := market.NewAccessRequest(signer.Public(), itemID, sealedHandle,
		session.Recipient().String(), c.clock.Now(), c.ttl, nonce)
	if err != nil {
		return nil, fmt.Errorf("building access request: %w", err)
	}
	signed, err := market.SignRequest(req, signer)
	if err != nil {
		return nil, fmt.Errorf("signing access request: %w", err)
	}

	wrapped, err := c.authority.Submit(ctx, signed)
	if err != nil {
		return nil, err
	}

	raw, err := decryptWithIdentity(session, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrapping released secret: %w", err)
	}
	return raw, nil
}

func decryptWithIdentity(identity *age.X25519Identity, wrapped []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(wrapped), identity)
	if err != nil {
		return nil, fmt.Errorf("opening encrypted secret: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted secret: %w", err)
	}
	return raw, nil
}
