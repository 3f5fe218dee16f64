package storage

// services.go contains SQLiteStore methods for paired service CRUD.
// A service is an external application the user has explicitly approved
// for access to the device's wallet capabilities.

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// Service represents one approved external application.
// The (ServiceName, ServiceKey) pair identifies one approval; the key is
// the caller-supplied credential from the authorization header.
type Service struct {
	ServiceName     string    `json:"serviceName"`
	ServiceImageURL string    `json:"serviceImageUrl"`
	ServiceKey      string    `json:"serviceKey"`
	AddedOn         time.Time `json:"addedOn"`
}

// Kind returns the record kind discriminator shared with the UI wire format.
func (s *Service) Kind() string { return KindService }

// InsertService persists an approved service.
// Uses INSERT OR IGNORE so that re-inserting the same (name, key) pair is
// idempotent: the first approval wins and the store keeps exactly one row.
func (s *SQLiteStore) InsertService(service *Service) error {
	if service == nil {
		return errors.New("service cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: saving paired service %q", service.ServiceName)

	const query = `
		INSERT OR IGNORE INTO services
			(service_name, service_image_url, service_key, added_on)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		service.ServiceName,
		service.ServiceImageURL,
		service.ServiceKey,
		service.AddedOn.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save service: %w", err)
	}

	return nil
}

// FindService retrieves a paired service by its (name, key) pair.
// Returns nil, nil if no such pairing exists - that is the expected
// "not yet paired" signal that drives the prompt flow, not an error.
func (s *SQLiteStore) FindService(serviceName, serviceKey string) (*Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `
		SELECT service_name, service_image_url, service_key, added_on
		FROM services
		WHERE service_name = ? AND service_key = ?
	`

	service, err := scanService(s.db.QueryRow(query, serviceName, serviceKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find service: %w", err)
	}

	return service, nil
}

// ListServices returns all paired services, oldest approval first.
func (s *SQLiteStore) ListServices() ([]*Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `
		SELECT service_name, service_image_url, service_key, added_on
		FROM services
		ORDER BY added_on ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var services []*Service
	for rows.Next() {
		service, err := scanServiceRows(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, service)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service rows: %w", err)
	}

	log.Printf("storage: listed %d paired services", len(services))
	return services, nil
}

// RemoveService deletes pairings matching the given name and key and
// returns how many rows were removed. An empty key matches every pairing
// for that name (the UI's "remove service" action unpairs by name).
// Removing a service that does not exist is not an error (count 0).
func (s *SQLiteStore) RemoveService(serviceName, serviceKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: removing paired service %q", serviceName)

	var (
		result sql.Result
		err    error
	)
	if serviceKey == "" {
		result, err = s.db.Exec("DELETE FROM services WHERE service_name = ?", serviceName)
	} else {
		result, err = s.db.Exec(
			"DELETE FROM services WHERE service_name = ? AND service_key = ?",
			serviceName, serviceKey,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("remove service: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return int(removed), nil
}

// scanService scans a single row into a Service.
func scanService(row *sql.Row) (*Service, error) {
	var (
		service Service
		addedOn string
	)

	err := row.Scan(
		&service.ServiceName,
		&service.ServiceImageURL,
		&service.ServiceKey,
		&addedOn,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, addedOn)
	if err != nil {
		return nil, fmt.Errorf("parse added_on: %w", err)
	}
	service.AddedOn = t

	return &service, nil
}

// scanServiceRows scans a row from sql.Rows into a Service.
func scanServiceRows(rows *sql.Rows) (*Service, error) {
	var (
		service Service
		addedOn string
	)

	err := rows.Scan(
		&service.ServiceName,
		&service.ServiceImageURL,
		&service.ServiceKey,
		&addedOn,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, addedOn)
	if err != nil {
		return nil, fmt.Errorf("parse added_on: %w", err)
	}
	service.AddedOn = t

	return &service, nil
}
