package mention

import (
	"regexp"

	"github.com/daybook-labs/daybook/internal/profile"
)

// renderPattern re-detects canonical mentions in committed text. The length
// bound distinguishes complete identifiers from truncated fragments.
var renderPattern = regexp.MustCompile(`nostr:(?:npub1|nprofile1)[023456789acdefghjklmnpqrstuvwxyz]{58,}`)

// Resolver looks up a cached or fetched profile for a pubkey; nil means
// unresolved.
type Resolver func(pubkey string) *profile.Profile

// Render substitutes every canonical mention in committed text with a
// resolved display label (@name) when the referenced profile is available,
// or a truncated identity otherwise. Undecodable identifiers are left
// untouched.
func Render(text string, resolve Resolver) string {
	return renderPattern.ReplaceAllStringFunc(text, func(match string) string {
		ident := match[len(Scheme):]
		pk, ok := decodeIdentifier(ident)
		if !ok {
			return match
		}
		if resolve != nil {
			if p := resolve(pk); p != nil {
				return "@" + p.Label()
			}
		}
		return "@" + profile.ShortKey(pk)
	})
}

// Mentions returns the pubkeys of every canonical mention in committed text,
// in order of appearance, deduplicated.
func Mentions(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, match := range renderPattern.FindAllString(text, -1) {
		pk, ok := decodeIdentifier(match[len(Scheme):])
		if !ok {
			continue
		}
		if _, dup := seen[pk]; dup {
			continue
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}
	return out
}
