// Package archive persists generated manifests in a SQLite database so
// operators can inspect and replay what was published to the backend.
package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/piligrim-code/manifesto/pkg/errors"
	"github.com/piligrim-code/manifesto/pkg/manifest"
)

const manifestTable = "manifests"

// Record is one archived manifest.
type Record struct {
	Key       string
	Domain    string
	AppID     string
	Version   string
	CreatedAt time.Time
	Payload   []byte
}

// Archive is a SQLite-backed manifest archive.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) an archive at the given path and ensures schema.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "open archive", err).WithContext("path", path)
	}
	a := &Archive{db: db}
	if err := a.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// NewWithDB wraps an existing database handle and ensures schema.
func NewWithDB(db *sql.DB) (*Archive, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInvalidInput, "db is nil", nil)
	}
	a := &Archive{db: db}
	if err := a.ensureSchema(); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + manifestTable + ` (
			key TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			app_id TEXT NOT NULL,
			version TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_` + manifestTable + `_domain ON ` + manifestTable + `(domain);`,
		`CREATE INDEX IF NOT EXISTS idx_` + manifestTable + `_created ON ` + manifestTable + `(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.Exec(stmt); err != nil {
			return errors.New(errors.CodeStorage, "ensure schema", err)
		}
	}
	return nil
}

// Save archives a manifest together with its wire form and returns the
// archive key.
func (a *Archive) Save(ctx context.Context, m manifest.Manifest, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", errors.New(errors.CodeInvalidInput, "payload is required", nil)
	}
	key := uuid.NewString()
	now := time.Now().UTC().UnixMilli()
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO `+manifestTable+` (key, domain, app_id, version, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, m.Domain, m.ID, m.Version, now, payload,
	)
	if err != nil {
		return "", errors.New(errors.CodeStorage, "save manifest", err).
			WithContext("domain", m.Domain)
	}
	return key, nil
}

// Latest returns the most recently archived manifest for a domain.
// Returns nil without error when the domain has no archived manifests.
func (a *Archive) Latest(ctx context.Context, domain string) (*Record, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT key, domain, app_id, version, created_at, payload
		 FROM `+manifestTable+`
		 WHERE domain = ?
		 ORDER BY created_at DESC, key DESC
		 LIMIT 1`,
		domain,
	)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "load latest manifest", err).
			WithContext("domain", domain)
	}
	return rec, nil
}

// List returns all archived manifests, newest first.
func (a *Archive) List(ctx context.Context) ([]Record, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT key, domain, app_id, version, created_at, payload
		 FROM `+manifestTable+`
		 ORDER BY created_at DESC, key DESC`,
	)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "list manifests", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, errors.New(errors.CodeStorage, "scan manifest row", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeStorage, "iterate manifests", err)
	}
	return records, nil
}

func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var rec Record
	var createdAt int64
	if err := scan(&rec.Key, &rec.Domain, &rec.AppID, &rec.Version, &createdAt, &rec.Payload); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &rec, nil
}
