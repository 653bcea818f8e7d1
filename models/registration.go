package models

import "time"

// Registration holds the fields persisted for one accepted submission.
type Registration struct {
	FullName       string
	ContactNo      string
	DateOfBirth    time.Time
	Age            int
	IdentityNumber string
}

// RegistrationRecord is a stored registration together with its assigned id.
// Records are never mutated or deleted once written.
type RegistrationRecord struct {
	Id        int64
	CreatedAt time.Time
	Registration
}
