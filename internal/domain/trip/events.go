package trip

import (
	"time"

	"github.com/google/uuid"
)

// TopicTripEvents carries every trip lifecycle event.
const TopicTripEvents = "trip.events"

// Event types published on TopicTripEvents.
const (
	EventRequested   = "trip.requested"
	EventAccepted    = "trip.accepted"
	EventRescheduled = "trip.rescheduled"
	EventStarted     = "trip.started"
	EventCompleted   = "trip.completed"
	EventCancelled   = "trip.cancelled"
	EventPriced      = "trip.priced"
)

// RequestedEvent is published when a customer submits a trip.
type RequestedEvent struct {
	TripID         uuid.UUID   `json:"trip_id"`
	TripNumber     string      `json:"numero_viagem"`
	CustomerEmail  string      `json:"email_cliente"`
	ServiceType    ServiceType `json:"tipo_servico"`
	TravelDate     string      `json:"data_viagem"`
	Origin         Endpoint    `json:"origem"`
	Destination    Endpoint    `json:"destino"`
	DistanceKm     *float64    `json:"distancia_km"`
	EstimatedPrice *float64    `json:"preco_estimado"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// StatusChangedEvent is published on accept, start, complete and cancel.
type StatusChangedEvent struct {
	TripID        uuid.UUID  `json:"trip_id"`
	TripNumber    string     `json:"numero_viagem"`
	CustomerEmail string     `json:"email_cliente"`
	From          TripStatus `json:"from"`
	To            TripStatus `json:"to"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// RescheduledEvent is published when the travel date or time moves.
type RescheduledEvent struct {
	TripID     uuid.UUID `json:"trip_id"`
	TripNumber string    `json:"numero_viagem"`
	TravelDate string    `json:"data_viagem"`
	TravelTime string    `json:"horario_viagem,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PricedEvent is published when a price is attached after the request.
type PricedEvent struct {
	TripID         uuid.UUID   `json:"trip_id"`
	TripNumber     string      `json:"numero_viagem"`
	DistanceKm     *float64    `json:"distancia_km"`
	EstimatedPrice float64     `json:"preco_estimado"`
	Approximate    bool        `json:"distancia_aproximada"`
	Source         PriceSource `json:"origem_preco"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
