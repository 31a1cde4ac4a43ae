package entity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

type SQLiteConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path" default:"data/entities.db"`
}

// SQLiteStore keeps entities in two tables: entities and attributes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	// One connection keeps pragmas in effect and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS entities (
    guid             INTEGER PRIMARY KEY,
    kind             TEXT NOT NULL,
    subtype          TEXT NOT NULL DEFAULT '',
    owner_guid       INTEGER NOT NULL DEFAULT 0,
    mime_type        TEXT NOT NULL DEFAULT '',
    hidden           INTEGER NOT NULL DEFAULT 0,
    content_owner    INTEGER NOT NULL DEFAULT 0,
    content_filename TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS attributes (
    guid  INTEGER NOT NULL REFERENCES entities(guid) ON DELETE CASCADE,
    name  TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (guid, name)
);
`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, guid int64) (*Entity, error) {
	var (
		e            = &Entity{GUID: guid, Attributes: Attributes{}}
		kind         string
		hidden       bool
		contentOwner int64
		contentName  string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT kind, subtype, owner_guid, mime_type, hidden, content_owner, content_filename
FROM entities WHERE guid = ?`, guid).
		Scan(&kind, &e.Subtype, &e.OwnerGUID, &e.MimeType, &hidden, &contentOwner, &contentName)
	if err == sql.ErrNoRows {
		return nil, notFound(guid)
	}
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", guid, err)
	}
	e.Kind = Kind(kind)
	e.Hidden = hidden
	if contentName != "" {
		e.Content = &StoredFile{Owner: contentOwner, Filename: contentName}
	}
	if err := checkVisible(ctx, e); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM attributes WHERE guid = ?`, guid)
	if err != nil {
		return nil, fmt.Errorf("load attributes of %d: %w", guid, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		e.Attributes[name] = value
	}
	return e, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	var contentOwner int64
	var contentName string
	if e.Content != nil {
		contentOwner, contentName = e.Content.Owner, e.Content.Filename
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO entities (guid, kind, subtype, owner_guid, mime_type, hidden, content_owner, content_filename)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(guid) DO UPDATE SET
    kind = excluded.kind,
    subtype = excluded.subtype,
    owner_guid = excluded.owner_guid,
    mime_type = excluded.mime_type,
    hidden = excluded.hidden,
    content_owner = excluded.content_owner,
    content_filename = excluded.content_filename`,
		e.GUID, string(e.Kind), e.Subtype, e.OwnerGUID, e.MimeType, e.Hidden, contentOwner, contentName)
	if err != nil {
		return fmt.Errorf("store entity %d: %w", e.GUID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE guid = ?`, e.GUID); err != nil {
		return err
	}
	if err := upsertAttributes(ctx, tx, e.GUID, e.Attributes); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetAttributes(ctx context.Context, guid int64, attrs Attributes) error {
	if err := validateAttributes(attrs); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE guid = ?`, guid).Scan(&exists)
	if err == sql.ErrNoRows {
		return notFound(guid)
	}
	if err != nil {
		return err
	}
	if err := upsertAttributes(ctx, tx, guid, attrs); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertAttributes(ctx context.Context, tx *sql.Tx, guid int64, attrs Attributes) error {
	if len(attrs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO attributes (guid, name, value) VALUES (?, ?, ?)
ON CONFLICT(guid, name) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for name, value := range attrs {
		if _, err := stmt.ExecContext(ctx, guid, name, value); err != nil {
			return fmt.Errorf("store attribute %s of %d: %w", name, guid, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
