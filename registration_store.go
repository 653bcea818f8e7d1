package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"go-id-register/models"
)

// ErrDuplicateIdentityNumber reports a uniqueness conflict on the identity
// number. It is a distinct outcome so callers can answer with a specific
// message; retrying a duplicate insert can never succeed.
var ErrDuplicateIdentityNumber = errors.New("identity number already registered")

// RegistrationStore persists accepted registrations. Implementations must
// guarantee that of two concurrent Register calls with the same identity
// number exactly one succeeds and the other returns
// ErrDuplicateIdentityNumber.
type RegistrationStore interface {
	Register(ctx context.Context, registration models.Registration) (int64, error)
}

// ------------------------------------------------------------------------------

// PostgresRegistrationStore persists registrations in PostgreSQL. Uniqueness
// is enforced by the constraint on identity_number, not by application
// locking, so it holds under concurrent inserts across processes.
type PostgresRegistrationStore struct {
	db *sql.DB
}

func NewPostgresRegistrationStore(db *sql.DB) *PostgresRegistrationStore {
	return &PostgresRegistrationStore{db: db}
}

// EnsureSchema creates the registrations table if it does not exist yet.
func (s *PostgresRegistrationStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS registrations (
			id              BIGSERIAL PRIMARY KEY,
			full_name       TEXT        NOT NULL,
			contact_no      TEXT        NOT NULL,
			date_of_birth   DATE        NOT NULL,
			age             INTEGER     NOT NULL,
			identity_number TEXT        NOT NULL UNIQUE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure registrations schema: %w", err)
	}
	return nil
}

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

func (s *PostgresRegistrationStore) Register(ctx context.Context, registration models.Registration) (int64, error) {
	query := `
		INSERT INTO registrations (full_name, contact_no, date_of_birth, age, identity_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		registration.FullName,
		registration.ContactNo,
		registration.DateOfBirth,
		registration.Age,
		registration.IdentityNumber,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, ErrDuplicateIdentityNumber
		}
		return 0, fmt.Errorf("insert registration: %w", err)
	}
	return id, nil
}

// ------------------------------------------------------------------------------

// InMemoryRegistrationStore keeps registrations in a map. It exists for
// tests and credential-less environments; the mutex spans the duplicate
// check and the insert so the uniqueness guarantee holds under concurrency.
type InMemoryRegistrationStore struct {
	mutex    sync.Mutex
	byNumber map[string]int64
	records  []models.RegistrationRecord
	nextId   int64
	calls    int

	// FailWith, when set, makes every Register call fail with that error.
	FailWith error
}

func NewInMemoryRegistrationStore() *InMemoryRegistrationStore {
	return &InMemoryRegistrationStore{
		byNumber: make(map[string]int64),
		nextId:   1,
	}
}

func (s *InMemoryRegistrationStore) Register(_ context.Context, registration models.Registration) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.calls++
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	if _, exists := s.byNumber[registration.IdentityNumber]; exists {
		return 0, ErrDuplicateIdentityNumber
	}

	id := s.nextId
	s.nextId++
	s.byNumber[registration.IdentityNumber] = id
	s.records = append(s.records, models.RegistrationRecord{
		Id:           id,
		Registration: registration,
	})
	return id, nil
}

// RegisterCalls reports how many times Register was invoked, so tests can
// assert that shape-invalid input never reaches the store.
func (s *InMemoryRegistrationStore) RegisterCalls() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls
}

// Count reports the number of stored records.
func (s *InMemoryRegistrationStore) Count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.records)
}
