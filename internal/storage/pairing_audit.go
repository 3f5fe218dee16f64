package storage

// pairing_audit.go records every pairing decision for later review.
// Rejections never create a Service row, so without the audit trail a
// rejected prompt would leave no trace at all.

import (
	"fmt"
	"log"
	"time"
)

// PairingAuditEntry is one recorded pairing decision.
type PairingAuditEntry struct {
	// ID is a unique identifier for this entry.
	ID string

	// Nonce correlates the entry with the prompt that produced it.
	Nonce string

	// ServiceName is the application that requested pairing.
	ServiceName string

	// Decision is "approved", "rejected" or "expired".
	Decision string

	// DecidedAt is when the decision was recorded.
	DecidedAt time.Time

	// Source is who decided: "user" for an explicit UI decision,
	// "timeout" when the optional expiry elapsed.
	Source string
}

// SavePairingAudit persists an audit entry.
func (s *SQLiteStore) SavePairingAudit(entry *PairingAuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT INTO pairing_audit
			(id, nonce, service_name, decision, decided_at, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		entry.ID,
		entry.Nonce,
		entry.ServiceName,
		entry.Decision,
		entry.DecidedAt.Format(time.RFC3339Nano),
		entry.Source,
	)
	if err != nil {
		return fmt.Errorf("save pairing audit: %w", err)
	}

	return nil
}

// ListPairingAudit returns audit entries, newest first, up to limit.
// A limit of 0 returns all entries.
func (s *SQLiteStore) ListPairingAudit(limit int) ([]*PairingAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, nonce, service_name, decision, decided_at, source
		FROM pairing_audit
		ORDER BY decided_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pairing audit: %w", err)
	}
	defer rows.Close()

	var entries []*PairingAuditEntry
	for rows.Next() {
		var (
			entry     PairingAuditEntry
			decidedAt string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.Nonce,
			&entry.ServiceName,
			&entry.Decision,
			&decidedAt,
			&entry.Source,
		)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, decidedAt)
		if err != nil {
			return nil, fmt.Errorf("parse decided_at: %w", err)
		}
		entry.DecidedAt = t
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}

	log.Printf("storage: listed %d pairing audit entries", len(entries))
	return entries, nil
}
