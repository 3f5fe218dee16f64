package storage

// origins.go contains SQLiteStore methods for the UI's approved-origin
// cache. Origins are approved from the UI process; the bridge only loads
// them back at startup and hands them to the UI on its start signal.

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// Origin represents a web origin the user approved from the UI.
type Origin struct {
	Origin     string    `json:"origin"`
	Added      time.Time `json:"added"`
	IsVerified bool      `json:"isVerified"`
}

// Kind returns the record kind discriminator shared with the UI wire format.
func (o *Origin) Kind() string { return KindOrigin }

// ApproveOrigin persists an approved origin.
// Uses INSERT OR REPLACE so re-approving an origin refreshes its timestamp.
func (s *SQLiteStore) ApproveOrigin(origin *Origin) error {
	if origin == nil {
		return errors.New("origin cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: saving approved origin %q", origin.Origin)

	const query = `
		INSERT OR REPLACE INTO origins (origin, added, is_verified)
		VALUES (?, ?, ?)
	`

	_, err := s.db.Exec(query,
		origin.Origin,
		origin.Added.Format(time.RFC3339Nano),
		origin.IsVerified,
	)
	if err != nil {
		return fmt.Errorf("save origin: %w", err)
	}

	return nil
}

// GetOrigin retrieves an approved origin.
// Returns nil, nil if the origin has not been approved.
func (s *SQLiteStore) GetOrigin(origin string) (*Origin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `SELECT origin, added, is_verified FROM origins WHERE origin = ?`

	var (
		o     Origin
		added string
	)
	err := s.db.QueryRow(query, origin).Scan(&o.Origin, &added, &o.IsVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get origin: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, added)
	if err != nil {
		return nil, fmt.Errorf("parse added: %w", err)
	}
	o.Added = t

	return &o, nil
}

// ListOrigins returns all approved origins, oldest first.
func (s *SQLiteStore) ListOrigins() ([]*Origin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `SELECT origin, added, is_verified FROM origins ORDER BY added ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query origins: %w", err)
	}
	defer rows.Close()

	var origins []*Origin
	for rows.Next() {
		var (
			o     Origin
			added string
		)
		if err := rows.Scan(&o.Origin, &added, &o.IsVerified); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, added)
		if err != nil {
			return nil, fmt.Errorf("parse added: %w", err)
		}
		o.Added = t
		origins = append(origins, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate origin rows: %w", err)
	}

	return origins, nil
}

// RemoveOrigin deletes an approved origin.
// Returns nil if the origin does not exist (idempotent delete).
func (s *SQLiteStore) RemoveOrigin(origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: removing approved origin %q", origin)

	_, err := s.db.Exec("DELETE FROM origins WHERE origin = ?", origin)
	if err != nil {
		return fmt.Errorf("remove origin: %w", err)
	}

	return nil
}
