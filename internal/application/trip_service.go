package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viagem-certa/service-trip/internal/domain"
	tripDomain "github.com/viagem-certa/service-trip/internal/domain/trip"
	"github.com/viagem-certa/service-trip/internal/estimate"
	"github.com/viagem-certa/service-trip/internal/kafka"
	"go.uber.org/zap"
)

const serviceName = "service-trip"

// EventPublisher writes CloudEvents to a topic. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// TripService is the application service orchestrating trip use cases.
type TripService struct {
	repo          tripDomain.TripRepository
	estimator     estimate.Estimator
	producer      EventPublisher
	logger        *zap.Logger
	inlineTimeout time.Duration
}

// NewTripService creates a new TripService. inlineTimeout bounds the estimate
// run when a trip is requested without a price.
func NewTripService(
	repo tripDomain.TripRepository,
	estimator estimate.Estimator,
	producer EventPublisher,
	logger *zap.Logger,
	inlineTimeout time.Duration,
) *TripService {
	return &TripService{
		repo:          repo,
		estimator:     estimator,
		producer:      producer,
		logger:        logger,
		inlineTimeout: inlineTimeout,
	}
}

// EstimateTrip runs the pipeline once for a pair of endpoints.
func (s *TripService) EstimateTrip(ctx context.Context, req EstimateRequest) (estimate.Outcome, error) {
	if err := validateStruct(req); err != nil {
		return estimate.Outcome{}, err
	}
	return s.estimator.Estimate(ctx, req.Origin, req.Destination), nil
}

// RequestTrip creates a pending trip. When the caller supplies no estimate the
// pipeline runs inline; a non-ready outcome leaves the trip unpriced for an
// admin to price by hand.
func (s *TripService) RequestTrip(ctx context.Context, req RequestTripRequest) (*TripDTO, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	params, err := req.toParams()
	if err != nil {
		return nil, err
	}

	if params.Pricing == nil && s.estimator != nil {
		params.Pricing = s.inlineEstimate(ctx, params.Origin, params.Destination)
	}

	tr, err := tripDomain.NewTrip(params)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, tr); err != nil {
		return nil, fmt.Errorf("failed to save trip: %w", err)
	}

	s.logger.Info("trip requested",
		zap.String("trip_id", tr.ID().String()),
		zap.String("trip_number", tr.TripNumber()),
		zap.Bool("priced", tr.IsPriced()),
	)

	evt := tripDomain.RequestedEvent{
		TripID:         tr.ID(),
		TripNumber:     tr.TripNumber(),
		CustomerEmail:  tr.CustomerEmail(),
		ServiceType:    tr.ServiceType(),
		TravelDate:     tr.TravelDate().Format(tripDomain.DateLayout),
		Origin:         tr.Origin(),
		Destination:    tr.Destination(),
		DistanceKm:     tr.DistanceKm(),
		EstimatedPrice: tr.EstimatedPrice(),
		OccurredAt:     time.Now().UTC(),
	}
	s.publishEvent(ctx, tripDomain.EventRequested, tr.ID().String(), evt)

	result := toTripDTO(tr)
	return &result, nil
}

func (s *TripService) inlineEstimate(ctx context.Context, origin, dest tripDomain.Endpoint) *tripDomain.Pricing {
	ctx, cancel := context.WithTimeout(ctx, s.inlineTimeout)
	defer cancel()

	out := s.estimator.Estimate(ctx, toPlaceQuery(origin), toPlaceQuery(dest))
	if !out.IsReady() {
		s.logger.Info("trip requested without estimate",
			zap.String("outcome", string(out.Kind)),
			zap.String("reason", out.Reason),
		)
		return nil
	}
	return &tripDomain.Pricing{
		DistanceKm: out.DistanceKm,
		Price:      out.Price,
		Fallback:   out.Fallback,
		Source:     tripDomain.PriceSourceEstimate,
	}
}

// GetTrip retrieves a single trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID uuid.UUID) (*TripDTO, error) {
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	result := toTripDTO(tr)
	return &result, nil
}

// ListCustomerTrips retrieves a customer's trips, optionally by status.
func (s *TripService) ListCustomerTrips(ctx context.Context, email, status string, page, limit int) (*domain.PaginatedResult[TripDTO], error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.NewValidationError("email is required")
	}
	filter, err := buildFilter(email, status)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter, page, limit)
}

// CancelTrip lets the customer who requested a trip cancel it.
func (s *TripService) CancelTrip(ctx context.Context, tripID uuid.UUID, email, reason string) (*TripDTO, error) {
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if tr.CustomerEmail() != normalizeEmail(email) {
		return nil, domain.NewForbiddenError("trip does not belong to this customer")
	}
	return s.transition(ctx, tr, tripDomain.EventCancelled, reason, func() error {
		return tr.Cancel(reason)
	})
}

// --- Admin methods ---

// TripStatsDTO holds trip statistics for the admin dashboard.
type TripStatsDTO struct {
	TotalTrips int64            `json:"total_viagens"`
	ByStatus   map[string]int64 `json:"por_status"`
}

// AcceptTrip schedules a pending trip.
func (s *TripService) AcceptTrip(ctx context.Context, tripID uuid.UUID) (*TripDTO, error) {
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, tr, tripDomain.EventAccepted, "", tr.Accept)
}

// RejectTrip cancels a pending trip on the admin's behalf.
func (s *TripService) RejectTrip(ctx context.Context, tripID uuid.UUID, reason string) (*TripDTO, error) {
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, tr, tripDomain.EventCancelled, reason, func() error {
		return tr.Reject(reason)
	})
}

// StartTrip marks a scheduled trip as underway.
func (s *TripService) StartTrip(ctx context.Context, tripID uuid.UUID) (*TripDTO, error) {
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, tr, tripDomain.EventStarted, "", tr.Start)
}

// CompleteTrip marks an active trip as finished.
func (s *TripService) CompleteTrip(ctx context.Context, tripID uuid.UUID) (*TripDTO, error) {
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, tr, tripDomain.EventCompleted, "", tr.Complete)
}

// RescheduleTrip moves the travel date of a trip that has not started.
func (s *TripService) RescheduleTrip(ctx context.Context, tripID uuid.UUID, req RescheduleRequest) (*TripDTO, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.TravelDate)
	if err != nil {
		return nil, err
	}

	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := tr.Reschedule(date, req.TravelTime); err != nil {
		return nil, err
	}

	tr.IncrementVersion()
	if err := s.repo.Update(ctx, tr); err != nil {
		return nil, err
	}

	evt := tripDomain.RescheduledEvent{
		TripID:     tr.ID(),
		TripNumber: tr.TripNumber(),
		TravelDate: tr.TravelDate().Format(tripDomain.DateLayout),
		TravelTime: tr.TravelTime(),
		OccurredAt: time.Now().UTC(),
	}
	s.publishEvent(ctx, tripDomain.EventRescheduled, tr.ID().String(), evt)

	result := toTripDTO(tr)
	return &result, nil
}

// SetManualPrice prices a trip the estimation engine could not.
func (s *TripService) SetManualPrice(ctx context.Context, tripID uuid.UUID, req ManualPriceRequest) (*TripDTO, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	var km float64
	if req.DistanceKm != nil {
		km = *req.DistanceKm
	}
	if err := tr.SetManualPrice(km, req.Price); err != nil {
		return nil, err
	}
	return s.savePriced(ctx, tr)
}

// AttachEstimate prices an unpriced trip from an engine outcome. It reports
// false without error when the trip was already priced or is closed.
func (s *TripService) AttachEstimate(ctx context.Context, tripID uuid.UUID, out estimate.Outcome) (bool, error) {
	if !out.IsReady() {
		return false, nil
	}
	tr, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return false, err
	}
	if tr.IsPriced() || tr.Status().IsTerminal() {
		return false, nil
	}
	if err := tr.AttachEstimate(out.DistanceKm, out.Price, out.Fallback); err != nil {
		return false, err
	}
	if _, err := s.savePriced(ctx, tr); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BackfillEstimate runs the pipeline for an unpriced trip and attaches a
// ready result.
func (s *TripService) BackfillEstimate(ctx context.Context, tripID uuid.UUID, origin, dest tripDomain.Endpoint) (bool, error) {
	out := s.estimator.Estimate(ctx, toPlaceQuery(origin), toPlaceQuery(dest))
	if !out.IsReady() {
		s.logger.Info("backfill estimate unavailable",
			zap.String("trip_id", tripID.String()),
			zap.String("outcome", string(out.Kind)),
			zap.String("reason", out.Reason),
		)
		return false, nil
	}
	return s.AttachEstimate(ctx, tripID, out)
}

// ListAllTrips returns a paginated list of all trips (admin).
func (s *TripService) ListAllTrips(ctx context.Context, status string, page, limit int) (*domain.PaginatedResult[TripDTO], error) {
	filter, err := buildFilter("", status)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter, page, limit)
}

// GetTripStats returns aggregate trip statistics (admin).
func (s *TripService) GetTripStats(ctx context.Context) (*TripStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip stats: %w", err)
	}

	byStatus := make(map[string]int64, len(tripDomain.AllStatuses()))
	for _, st := range tripDomain.AllStatuses() {
		byStatus[string(st)] = 0
	}
	var total int64
	for st, c := range counts {
		byStatus[st] = c
		total += c
	}

	return &TripStatsDTO{
		TotalTrips: total,
		ByStatus:   byStatus,
	}, nil
}

// --- Helpers ---

func (s *TripService) list(ctx context.Context, filter tripDomain.ListFilter, page, limit int) (*domain.PaginatedResult[TripDTO], error) {
	trips, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]TripDTO, len(trips))
	for i, tr := range trips {
		dtos[i] = toTripDTO(tr)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// transition applies a status change, persists it and publishes eventType.
func (s *TripService) transition(ctx context.Context, tr *tripDomain.Trip, eventType, reason string, apply func() error) (*TripDTO, error) {
	from := tr.Status()
	if err := apply(); err != nil {
		return nil, err
	}

	tr.IncrementVersion()
	if err := s.repo.Update(ctx, tr); err != nil {
		return nil, err
	}

	s.logger.Info("trip status changed",
		zap.String("trip_id", tr.ID().String()),
		zap.String("from", string(from)),
		zap.String("to", string(tr.Status())),
	)

	evt := tripDomain.StatusChangedEvent{
		TripID:        tr.ID(),
		TripNumber:    tr.TripNumber(),
		CustomerEmail: tr.CustomerEmail(),
		From:          from,
		To:            tr.Status(),
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
	s.publishEvent(ctx, eventType, tr.ID().String(), evt)

	result := toTripDTO(tr)
	return &result, nil
}

func (s *TripService) savePriced(ctx context.Context, tr *tripDomain.Trip) (*TripDTO, error) {
	tr.IncrementVersion()
	if err := s.repo.Update(ctx, tr); err != nil {
		return nil, err
	}

	evt := tripDomain.PricedEvent{
		TripID:         tr.ID(),
		TripNumber:     tr.TripNumber(),
		DistanceKm:     tr.DistanceKm(),
		EstimatedPrice: *tr.EstimatedPrice(),
		Approximate:    tr.Approximate(),
		Source:         tr.PriceSource(),
		OccurredAt:     time.Now().UTC(),
	}
	s.publishEvent(ctx, tripDomain.EventPriced, tr.ID().String(), evt)

	result := toTripDTO(tr)
	return &result, nil
}

func (s *TripService) publishEvent(ctx context.Context, eventType, key string, data interface{}) {
	if s.producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(serviceName, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = key

	if err := s.producer.PublishEvent(ctx, tripDomain.TopicTripEvents, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", tripDomain.TopicTripEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func buildFilter(email, status string) (tripDomain.ListFilter, error) {
	filter := tripDomain.ListFilter{CustomerEmail: email}
	if status != "" {
		st, err := tripDomain.ParseTripStatus(status)
		if err != nil {
			return filter, domain.NewValidationError(err.Error())
		}
		filter.Status = st
	}
	return filter, nil
}
