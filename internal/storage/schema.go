package storage

import (
	"fmt"
	"log"
	"time"
)

// currentSchemaVersion is the current database schema version.
// Increment this when making schema changes and add migration logic.
const currentSchemaVersion = 2

// Record kind discriminators. The original document store held both record
// kinds in one collection distinguished by a "type" field; the relational
// schema keeps the discriminator values as the canonical kind names so
// exports and the UI wire format stay compatible.
const (
	KindService = "service"
	KindOrigin  = "origin"
)

// initSchema creates the required tables if they don't exist.
// Uses IF NOT EXISTS to make the operation idempotent.
func (s *SQLiteStore) initSchema() error {
	// Schema version table tracks database migrations.
	// This allows future schema changes to be applied incrementally.
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	// Check current version
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	// Apply migrations based on current version
	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if version < 2 {
		if err := s.migrateToV2(); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	return nil
}

// migrateToV1 creates the initial schema: paired services and approved origins.
func (s *SQLiteStore) migrateToV1() error {
	log.Printf("storage: applying migration to schema version 1")

	// A service is one approved external application. The (service_name,
	// service_key) pair identifies one approval; the UNIQUE constraint
	// backs the idempotent re-pair fast path.
	const servicesTable = `
		CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_name TEXT NOT NULL,
			service_image_url TEXT NOT NULL,
			service_key TEXT NOT NULL,
			added_on TEXT NOT NULL,
			UNIQUE (service_name, service_key)
		);
	`

	if _, err := s.db.Exec(servicesTable); err != nil {
		return fmt.Errorf("create services table: %w", err)
	}

	// Origins approved by the user through the UI. This cache is owned by
	// the UI approval flow but shares the bridge's store.
	const originsTable = `
		CREATE TABLE IF NOT EXISTS origins (
			origin TEXT PRIMARY KEY,
			added TEXT NOT NULL,
			is_verified INTEGER NOT NULL DEFAULT 0
		);
	`

	if _, err := s.db.Exec(originsTable); err != nil {
		return fmt.Errorf("create origins table: %w", err)
	}

	return s.recordVersion(1)
}

// migrateToV2 adds the pairing audit table.
// Every approve/reject decision is recorded for later review.
func (s *SQLiteStore) migrateToV2() error {
	log.Printf("storage: applying migration to schema version 2")

	const auditTable = `
		CREATE TABLE IF NOT EXISTS pairing_audit (
			id TEXT PRIMARY KEY,
			nonce TEXT NOT NULL,
			service_name TEXT NOT NULL,
			decision TEXT NOT NULL,
			decided_at TEXT NOT NULL,
			source TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(auditTable); err != nil {
		return fmt.Errorf("create pairing_audit table: %w", err)
	}

	return s.recordVersion(2)
}

// recordVersion marks a migration as applied.
func (s *SQLiteStore) recordVersion(version int) error {
	_, err := s.db.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		version,
		time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	return nil
}
