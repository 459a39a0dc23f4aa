package trip

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viagem-certa/service-trip/internal/domain"
)

const (
	tripNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// DateLayout is the wire format of data_viagem.
	DateLayout = "2006-01-02"

	// TimeLayout is the wire format of horario_viagem.
	TimeLayout = "15:04"
)

// PriceSource records who produced a trip's price.
type PriceSource string

const (
	PriceSourceEstimate PriceSource = "estimativa"
	PriceSourceManual   PriceSource = "manual"
)

// Pricing is the distance and price attached to a trip. Fallback marks a
// distance from the straight-line approximation.
type Pricing struct {
	DistanceKm float64
	Price      float64
	Fallback   bool
	Source     PriceSource
}

// Trip is the aggregate root for a customer's trip request.
type Trip struct {
	id            uuid.UUID
	tripNumber    string
	customerName  string
	customerEmail string
	serviceType   ServiceType
	travelDate    time.Time
	travelTime    string

	origin      Endpoint
	destination Endpoint

	distanceKm     *float64
	estimatedPrice *float64
	approximate    bool
	priceSource    PriceSource

	passenger *PassengerDetails
	cargo     *CargoDetails

	status       TripStatus
	notes        string
	cancelReason string
	acceptedAt   *time.Time
	startedAt    *time.Time
	completedAt  *time.Time
	cancelledAt  *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewTripParams holds the inputs of NewTrip.
type NewTripParams struct {
	CustomerName  string
	CustomerEmail string
	ServiceType   ServiceType
	TravelDate    time.Time
	TravelTime    string
	Origin        Endpoint
	Destination   Endpoint
	Passenger     *PassengerDetails
	Cargo         *CargoDetails
	Notes         string

	// Pricing is nil when no estimate was available at request time.
	Pricing *Pricing
}

// generateTripNumber creates a trip number in the format "VC-XXXXXX".
func generateTripNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tripNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate trip number: %w", err)
		}
		result[i] = tripNumberChars[n.Int64()]
	}
	return "VC-" + string(result), nil
}

// NewTrip creates a new Trip aggregate with status=pendente.
func NewTrip(p NewTripParams) (*Trip, error) {
	email := strings.ToLower(strings.TrimSpace(p.CustomerEmail))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.NewValidationError("email_cliente must be a valid email address")
	}
	if !p.ServiceType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid tipo_servico: %s", p.ServiceType))
	}
	if p.TravelDate.IsZero() {
		return nil, domain.NewValidationError("data_viagem is required")
	}
	travelTime, err := normalizeTravelTime(p.TravelTime)
	if err != nil {
		return nil, err
	}

	origin := p.Origin.Normalized()
	if err := origin.validate("origem"); err != nil {
		return nil, err
	}
	destination := p.Destination.Normalized()
	if err := destination.validate("destino"); err != nil {
		return nil, err
	}

	t := &Trip{
		customerName:  strings.TrimSpace(p.CustomerName),
		customerEmail: email,
		serviceType:   p.ServiceType,
		travelDate:    truncateDate(p.TravelDate),
		travelTime:    travelTime,
		origin:        origin,
		destination:   destination,
		notes:         strings.TrimSpace(p.Notes),
	}

	switch {
	case p.ServiceType.CarriesPassengers():
		if p.Passenger == nil {
			return nil, domain.NewValidationError("passenger details are required for " + string(p.ServiceType))
		}
		if err := p.Passenger.validate(); err != nil {
			return nil, err
		}
		details := *p.Passenger
		t.passenger = &details
	default:
		if p.Cargo == nil {
			return nil, domain.NewValidationError("cargo details are required for mercadoria")
		}
		if err := p.Cargo.validate(); err != nil {
			return nil, err
		}
		details := *p.Cargo
		t.cargo = &details
	}

	if p.Pricing != nil {
		if err := validatePricing(p.Pricing.DistanceKm, p.Pricing.Price); err != nil {
			return nil, err
		}
		t.setPricing(*p.Pricing)
	}

	number, err := generateTripNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.id = uuid.New()
	t.tripNumber = number
	t.status = StatusPending
	t.version = 1
	t.createdAt = now
	t.updatedAt = now
	return t, nil
}

// ReconstructParams carries persisted state into ReconstructTrip.
type ReconstructParams struct {
	ID             uuid.UUID
	TripNumber     string
	CustomerName   string
	CustomerEmail  string
	ServiceType    ServiceType
	TravelDate     time.Time
	TravelTime     string
	Origin         Endpoint
	Destination    Endpoint
	DistanceKm     *float64
	EstimatedPrice *float64
	Approximate    bool
	PriceSource    PriceSource
	Passenger      *PassengerDetails
	Cargo          *CargoDetails
	Status         TripStatus
	Notes          string
	CancelReason   string
	AcceptedAt     *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReconstructTrip rebuilds a Trip from persistence data (no validation).
func ReconstructTrip(p ReconstructParams) *Trip {
	return &Trip{
		id:             p.ID,
		tripNumber:     p.TripNumber,
		customerName:   p.CustomerName,
		customerEmail:  p.CustomerEmail,
		serviceType:    p.ServiceType,
		travelDate:     p.TravelDate,
		travelTime:     p.TravelTime,
		origin:         p.Origin,
		destination:    p.Destination,
		distanceKm:     p.DistanceKm,
		estimatedPrice: p.EstimatedPrice,
		approximate:    p.Approximate,
		priceSource:    p.PriceSource,
		passenger:      p.Passenger,
		cargo:          p.Cargo,
		status:         p.Status,
		notes:          p.Notes,
		cancelReason:   p.CancelReason,
		acceptedAt:     p.AcceptedAt,
		startedAt:      p.StartedAt,
		completedAt:    p.CompletedAt,
		cancelledAt:    p.CancelledAt,
		version:        p.Version,
		createdAt:      p.CreatedAt,
		updatedAt:      p.UpdatedAt,
	}
}

// --- Getters ---

// ID returns the trip's unique identifier.
func (t *Trip) ID() uuid.UUID { return t.id }

// TripNumber returns the human-readable trip number.
func (t *Trip) TripNumber() string { return t.tripNumber }

// CustomerName returns the name given at request time.
func (t *Trip) CustomerName() string { return t.customerName }

// CustomerEmail returns the lower-cased customer email.
func (t *Trip) CustomerEmail() string { return t.customerEmail }

// ServiceType returns the kind of transport.
func (t *Trip) ServiceType() ServiceType { return t.serviceType }

// TravelDate returns the travel date at midnight UTC.
func (t *Trip) TravelDate() time.Time { return t.travelDate }

// TravelTime returns the "HH:MM" departure time, or "" when flexible.
func (t *Trip) TravelTime() string { return t.travelTime }

// Origin returns the pickup endpoint.
func (t *Trip) Origin() Endpoint { return t.origin }

// Destination returns the drop-off endpoint.
func (t *Trip) Destination() Endpoint { return t.destination }

// DistanceKm returns the priced distance, or nil when unpriced.
func (t *Trip) DistanceKm() *float64 { return t.distanceKm }

// EstimatedPrice returns the price, or nil when unpriced.
func (t *Trip) EstimatedPrice() *float64 { return t.estimatedPrice }

// Approximate is true when the distance came from the straight-line fallback.
func (t *Trip) Approximate() bool { return t.approximate }

// PriceSource returns who priced the trip, or "" when unpriced.
func (t *Trip) PriceSource() PriceSource { return t.priceSource }

// IsPriced reports whether a price is attached.
func (t *Trip) IsPriced() bool { return t.estimatedPrice != nil }

// Passenger returns passenger details for passenger and executive trips.
func (t *Trip) Passenger() *PassengerDetails { return t.passenger }

// Cargo returns cargo details for mercadoria trips.
func (t *Trip) Cargo() *CargoDetails { return t.cargo }

// Status returns the current trip status.
func (t *Trip) Status() TripStatus { return t.status }

// Notes returns the customer's notes.
func (t *Trip) Notes() string { return t.notes }

// CancelReason returns why the trip was cancelled.
func (t *Trip) CancelReason() string { return t.cancelReason }

// AcceptedAt returns when an admin scheduled the trip.
func (t *Trip) AcceptedAt() *time.Time { return t.acceptedAt }

// StartedAt returns when the trip went active.
func (t *Trip) StartedAt() *time.Time { return t.startedAt }

// CompletedAt returns when the trip was completed.
func (t *Trip) CompletedAt() *time.Time { return t.completedAt }

// CancelledAt returns when the trip was cancelled.
func (t *Trip) CancelledAt() *time.Time { return t.cancelledAt }

// Version returns the entity version for optimistic locking.
func (t *Trip) Version() int64 { return t.version }

// CreatedAt returns the creation timestamp.
func (t *Trip) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (t *Trip) UpdatedAt() time.Time { return t.updatedAt }

// --- Behavior ---

// Accept schedules a pending trip.
func (t *Trip) Accept() error {
	if !t.status.CanTransitionTo(StatusScheduled) {
		return domain.NewInvalidStateError(string(t.status), string(StatusScheduled))
	}
	now := time.Now().UTC()
	t.status = StatusScheduled
	t.acceptedAt = &now
	t.updatedAt = now
	return nil
}

// Reject cancels a trip that was never accepted.
func (t *Trip) Reject(reason string) error {
	if t.status != StatusPending {
		return domain.NewInvalidStateError(string(t.status), string(StatusCancelled))
	}
	return t.Cancel(reason)
}

// Start transitions a scheduled trip to ativo.
func (t *Trip) Start() error {
	if !t.status.CanTransitionTo(StatusActive) {
		return domain.NewInvalidStateError(string(t.status), string(StatusActive))
	}
	now := time.Now().UTC()
	t.status = StatusActive
	t.startedAt = &now
	t.updatedAt = now
	return nil
}

// Complete transitions an active trip to concluido.
func (t *Trip) Complete() error {
	if !t.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(t.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	t.status = StatusCompleted
	t.completedAt = &now
	t.updatedAt = now
	return nil
}

// Cancel transitions the trip to cancelado if it is not in a terminal state.
func (t *Trip) Cancel(reason string) error {
	if !t.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(t.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	t.status = StatusCancelled
	t.cancelReason = strings.TrimSpace(reason)
	t.cancelledAt = &now
	t.updatedAt = now
	return nil
}

// Reschedule moves the travel date and time of a trip that has not started.
func (t *Trip) Reschedule(date time.Time, travelTime string) error {
	if !t.status.CanBeRescheduled() {
		return domain.NewInvalidStateError(string(t.status), string(t.status))
	}
	if date.IsZero() {
		return domain.NewValidationError("data_viagem is required")
	}
	normalized, err := normalizeTravelTime(travelTime)
	if err != nil {
		return err
	}
	t.travelDate = truncateDate(date)
	t.travelTime = normalized
	t.updatedAt = time.Now().UTC()
	return nil
}

// AttachEstimate prices an unpriced trip from the estimation engine.
func (t *Trip) AttachEstimate(distanceKm, price float64, approximate bool) error {
	return t.price(Pricing{DistanceKm: distanceKm, Price: price, Fallback: approximate, Source: PriceSourceEstimate})
}

// SetManualPrice prices an unpriced trip by hand. distanceKm may be 0 when
// the admin does not know it.
func (t *Trip) SetManualPrice(distanceKm, price float64) error {
	return t.price(Pricing{DistanceKm: distanceKm, Price: price, Source: PriceSourceManual})
}

func (t *Trip) price(p Pricing) error {
	if t.status.IsTerminal() {
		return domain.NewInvalidStateError(string(t.status), string(t.status))
	}
	if t.IsPriced() {
		return domain.NewConflictError(fmt.Sprintf("trip %s already has a price", t.tripNumber))
	}
	if p.Source == PriceSourceManual {
		if !isPositive(p.Price) {
			return domain.NewValidationError("preco_estimado must be positive")
		}
		if p.DistanceKm < 0 || math.IsNaN(p.DistanceKm) || math.IsInf(p.DistanceKm, 0) {
			return domain.NewValidationError("distancia_km cannot be negative")
		}
	} else if err := validatePricing(p.DistanceKm, p.Price); err != nil {
		return err
	}
	t.setPricing(p)
	t.updatedAt = time.Now().UTC()
	return nil
}

func (t *Trip) setPricing(p Pricing) {
	price := round2(p.Price)
	t.estimatedPrice = &price
	if p.DistanceKm > 0 {
		km := round2(p.DistanceKm)
		t.distanceKm = &km
	}
	t.approximate = p.Fallback
	t.priceSource = p.Source
	if t.priceSource == "" {
		t.priceSource = PriceSourceEstimate
	}
}

// IncrementVersion bumps the version for optimistic locking.
func (t *Trip) IncrementVersion() {
	t.version++
	t.updatedAt = time.Now().UTC()
}

// --- Helpers ---

func validatePricing(distanceKm, price float64) error {
	if !isPositive(distanceKm) {
		return domain.NewValidationError("distancia_km must be positive")
	}
	if !isPositive(price) {
		return domain.NewValidationError("preco_estimado must be positive")
	}
	return nil
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateDate(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func normalizeTravelTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		return "", domain.NewValidationError("horario_viagem must be HH:MM")
	}
	return parsed.Format(TimeLayout), nil
}
