// Package store defines the persistence contract the import engine needs and
// an in-memory implementation of it. Database-backed implementations live in
// the pgstore and gormstore subpackages.
package store

import (
	"context"
	"errors"

	"github.com/JonMunkholm/charterops/internal/booking"
)

// ErrDuplicateID is returned by InsertBooking when the lead id is already
// taken, typically by a concurrent writer.
var ErrDuplicateID = errors.New("duplicate key: lead id already exists")

// Store is the storage collaborator of the reconciliation engine.
// Find methods return (nil, nil) when no lead matches.
type Store interface {
	FindBookingByRef(ctx context.Context, ref string) (*booking.Lead, error)
	FindBookingByTransID(ctx context.Context, transID string) (*booking.Lead, error)
	UpsertBooking(ctx context.Context, lead *booking.Lead) error
}

// Inserter creates a lead that must not exist yet. The stored lead with the
// same id, if any, is left untouched.
type Inserter interface {
	InsertBooking(ctx context.Context, lead *booking.Lead) error
}

// IDLister lists existing lead ids that start with prefix. Stores that
// implement it allow sequential id generation.
type IDLister interface {
	ListIDs(ctx context.Context, prefix string) ([]string, error)
}

// Getter fetches a lead by id, (nil, nil) when missing.
type Getter interface {
	GetBooking(ctx context.Context, id string) (*booking.Lead, error)
}
