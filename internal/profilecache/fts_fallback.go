//go:build !sqlite_fts5

package profilecache

import (
	"database/sql"
	"fmt"

	"github.com/daybook-labs/daybook/internal/profile"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; Search falls back to LIKE over the profiles table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ *profile.Profile) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (c *Cache) Search(query string, limit int) ([]profile.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	like := "%" + query + "%"
	rows, err := c.conn.Query(`
		SELECT pubkey, name, display_name, nip05, lud16, lud06, picture
		FROM profiles
		WHERE name LIKE ? OR display_name LIKE ? OR nip05 LIKE ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("profilecache: search: %w", err)
	}
	return scanProfiles(rows)
}
