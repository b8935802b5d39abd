// Package signer abstracts the external signing capability. The daemon never
// prompts for keys; callers inject any implementation (a local key, a remote
// bunker, a hardware signer).
package signer

import (
	"context"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Signer signs events on behalf of the acting user.
type Signer interface {
	// PublicKey returns the hex public key of the acting user.
	PublicKey() string
	// Sign signs evt in place, setting its id, pubkey, and signature.
	Sign(ctx context.Context, evt *nostr.Event) error
}

// KeySigner signs with a locally held private key.
type KeySigner struct {
	sk string
	pk string
}

// NewKeySigner accepts a private key in hex or nsec bech32 form.
func NewKeySigner(key string) (*KeySigner, error) {
	sk := strings.TrimSpace(key)
	if sk == "" {
		return nil, fmt.Errorf("signer: empty private key")
	}
	if strings.HasPrefix(sk, "nsec") {
		prefix, val, err := nip19.Decode(sk)
		if err != nil {
			return nil, fmt.Errorf("signer: decode nsec: %w", err)
		}
		if prefix != "nsec" {
			return nil, fmt.Errorf("signer: expected nsec prefix, got %s", prefix)
		}
		sk = val.(string)
	}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("signer: derive public key: %w", err)
	}
	return &KeySigner{sk: sk, pk: pk}, nil
}

// NewEphemeralSigner generates a throwaway key, useful in tests.
func NewEphemeralSigner() *KeySigner {
	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)
	return &KeySigner{sk: sk, pk: pk}
}

// PublicKey implements Signer.
func (k *KeySigner) PublicKey() string { return k.pk }

// Sign implements Signer.
func (k *KeySigner) Sign(_ context.Context, evt *nostr.Event) error {
	if err := evt.Sign(k.sk); err != nil {
		return fmt.Errorf("signer: sign event: %w", err)
	}
	return nil
}
