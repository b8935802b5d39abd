// Package profile models the read-only profile projection fetched from
// kind-0 metadata events. Profiles are owned by the relay network, may be
// stale or absent, and unparseable records are dropped rather than surfaced
// as errors.
package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Profile is the projection of a kind-0 metadata event.
type Profile struct {
	PubKey      string `json:"pubkey"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	NIP05       string `json:"nip05,omitempty"`
	LUD16       string `json:"lud16,omitempty"`
	LUD06       string `json:"lud06,omitempty"`
}

// metadata is the wire shape of kind-0 content.
type metadata struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Picture     string `json:"picture"`
	NIP05       string `json:"nip05"`
	LUD16       string `json:"lud16"`
	LUD06       string `json:"lud06"`
}

// FromEvent parses a kind-0 event into a Profile. Returns nil for events of
// the wrong kind or with unparseable content.
func FromEvent(evt *nostr.Event) *Profile {
	if evt == nil || evt.Kind != nostr.KindProfileMetadata {
		return nil
	}
	var m metadata
	if err := json.Unmarshal([]byte(evt.Content), &m); err != nil {
		return nil
	}
	return &Profile{
		PubKey:      evt.PubKey,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Picture:     m.Picture,
		NIP05:       m.NIP05,
		LUD16:       m.LUD16,
		LUD06:       m.LUD06,
	}
}

// Label returns the best available human-readable name, falling back to the
// shortened npub form.
func (p *Profile) Label() string {
	if p == nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Name != "" {
		return p.Name
	}
	return ShortKey(p.PubKey)
}

// PaymentAddress returns the lightning address (lud16 preferred, lud06
// otherwise) or empty when the profile exposes none.
func (p *Profile) PaymentAddress() string {
	if p == nil {
		return ""
	}
	if p.LUD16 != "" {
		return p.LUD16
	}
	return p.LUD06
}

// LNURLEndpoint resolves a lud16 lightning address (name@domain) to its
// LNURL-pay endpoint URL. lud06 bech32 values are not handled here.
func LNURLEndpoint(lud16 string) (string, error) {
	name, domain, ok := strings.Cut(lud16, "@")
	if !ok || name == "" || domain == "" || strings.ContainsAny(domain, "/ ") {
		return "", fmt.Errorf("profile: invalid lightning address %q", lud16)
	}
	return fmt.Sprintf("https://%s/.well-known/lnurlp/%s", domain, name), nil
}

// ShortKey renders a pubkey as a truncated npub (npub1abcd…wxyz). Falls back
// to truncating the hex form when encoding fails.
func ShortKey(pubkey string) string {
	npub, err := nip19.EncodePublicKey(pubkey)
	if err != nil {
		if len(pubkey) > 12 {
			return pubkey[:12] + "…"
		}
		return pubkey
	}
	return npub[:9] + "…" + npub[len(npub)-4:]
}
