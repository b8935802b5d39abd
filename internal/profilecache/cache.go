// Package profilecache provides a SQLite-backed cache of kind-0 profile
// metadata with optional FTS5 name search. The cache lets committed mentions
// and recipient listings resolve display labels without a relay round trip;
// it is a convenience projection, never a source of truth.
package profilecache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/daybook-labs/daybook/internal/profile"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
	pubkey       TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	nip05        TEXT NOT NULL DEFAULT '',
	lud16        TEXT NOT NULL DEFAULT '',
	lud06        TEXT NOT NULL DEFAULT '',
	picture      TEXT NOT NULL DEFAULT '',
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_profiles_updated ON profiles(updated_at);
`

// Cache wraps a sql.DB with profile cache operations.
type Cache struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Cache, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("profilecache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("profilecache: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("profilecache: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("profilecache: apply fts schema: %w", err)
	}
	return &Cache{conn: conn}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.conn.Close()
}

// Upsert inserts or replaces the cached projection for p.PubKey.
func (c *Cache) Upsert(p *profile.Profile) error {
	if p == nil || p.PubKey == "" {
		return fmt.Errorf("profilecache: nil or keyless profile")
	}
	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("profilecache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO profiles (pubkey, name, display_name, nip05, lud16, lud06, picture, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			name         = excluded.name,
			display_name = excluded.display_name,
			nip05        = excluded.nip05,
			lud16        = excluded.lud16,
			lud06        = excluded.lud06,
			picture      = excluded.picture,
			updated_at   = excluded.updated_at
	`, p.PubKey, p.Name, p.DisplayName, p.NIP05, p.LUD16, p.LUD06, p.Picture, time.Now())
	if err != nil {
		return fmt.Errorf("profilecache: upsert: %w", err)
	}

	if err := ftsUpsert(tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// Get returns the cached profile for pubkey, or nil when absent.
func (c *Cache) Get(pubkey string) (*profile.Profile, error) {
	var p profile.Profile
	err := c.conn.QueryRow(`
		SELECT pubkey, name, display_name, nip05, lud16, lud06, picture
		FROM profiles WHERE pubkey = ?
	`, pubkey).Scan(&p.PubKey, &p.Name, &p.DisplayName, &p.NIP05, &p.LUD16, &p.LUD06, &p.Picture)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profilecache: get: %w", err)
	}
	return &p, nil
}

// GetMany returns the cached profiles for the given pubkeys, keyed by pubkey.
// Missing keys are simply absent from the result.
func (c *Cache) GetMany(pubkeys []string) (map[string]*profile.Profile, error) {
	out := make(map[string]*profile.Profile, len(pubkeys))
	for _, pk := range pubkeys {
		p, err := c.Get(pk)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out[pk] = p
		}
	}
	return out, nil
}

func scanProfiles(rows *sql.Rows) ([]profile.Profile, error) {
	defer rows.Close()
	var out []profile.Profile
	for rows.Next() {
		var p profile.Profile
		if err := rows.Scan(&p.PubKey, &p.Name, &p.DisplayName, &p.NIP05, &p.LUD16, &p.LUD06, &p.Picture); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
