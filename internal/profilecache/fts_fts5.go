//go:build sqlite_fts5

package profilecache

import (
	"database/sql"
	"fmt"

	"github.com/daybook-labs/daybook/internal/profile"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS profiles_fts USING fts5(
			pubkey UNINDEXED,
			name,
			display_name,
			nip05,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, p *profile.Profile) error {
	_, _ = tx.Exec(`DELETE FROM profiles_fts WHERE pubkey = ?`, p.PubKey)
	_, err := tx.Exec(`INSERT INTO profiles_fts (pubkey, name, display_name, nip05) VALUES (?, ?, ?, ?)`,
		p.PubKey, p.Name, p.DisplayName, p.NIP05)
	if err != nil {
		return fmt.Errorf("profilecache: upsert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 search over cached profile names.
func (c *Cache) Search(query string, limit int) ([]profile.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := c.conn.Query(`
		SELECT p.pubkey, p.name, p.display_name, p.nip05, p.lud16, p.lud06, p.picture
		FROM profiles_fts f
		JOIN profiles p ON p.pubkey = f.pubkey
		WHERE profiles_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("profilecache: search: %w", err)
	}
	return scanProfiles(rows)
}
