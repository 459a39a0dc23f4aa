package trip

import "fmt"

// TripStatus represents the current state of a trip request in its lifecycle.
type TripStatus string

const (
	StatusPending   TripStatus = "pendente"
	StatusScheduled TripStatus = "agendado"
	StatusActive    TripStatus = "ativo"
	StatusCompleted TripStatus = "concluido"
	StatusCancelled TripStatus = "cancelado"
)

// validTransitions defines the state machine for trip status transitions.
var validTransitions = map[TripStatus][]TripStatus{
	StatusPending:   {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// IsValid returns true if the status is a recognized trip status.
func (s TripStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s TripStatus) CanTransitionTo(target TripStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s TripStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// CanBeCancelled returns true if the trip can be cancelled from this status.
func (s TripStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// CanBeRescheduled is true before the trip starts.
func (s TripStatus) CanBeRescheduled() bool {
	return s == StatusPending || s == StatusScheduled
}

// String returns the string representation of the status.
func (s TripStatus) String() string {
	return string(s)
}

// ParseTripStatus converts a string to a TripStatus, returning an error if invalid.
func ParseTripStatus(s string) (TripStatus, error) {
	status := TripStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid trip status: %s", s)
	}
	return status, nil
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []TripStatus {
	return []TripStatus{StatusPending, StatusScheduled, StatusActive, StatusCompleted, StatusCancelled}
}
