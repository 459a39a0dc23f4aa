package trip

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a trip listing. Zero values match everything.
type ListFilter struct {
	CustomerEmail string
	Status        TripStatus
}

// TripRepository defines the persistence contract for trip aggregates.
type TripRepository interface {
	// FindByID retrieves a trip by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Trip, error)

	// FindByNumber retrieves a trip by its human-readable trip number.
	FindByNumber(ctx context.Context, number string) (*Trip, error)

	// List retrieves trips matching filter, newest first.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Trip, int64, error)

	// CountByStatus returns trip counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new trip.
	Save(ctx context.Context, trip *Trip) error

	// Update persists changes to an existing trip with optimistic locking.
	Update(ctx context.Context, trip *Trip) error
}
