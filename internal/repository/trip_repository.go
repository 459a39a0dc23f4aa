package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viagem-certa/service-trip/internal/domain"
	tripDomain "github.com/viagem-certa/service-trip/internal/domain/trip"
	"gorm.io/gorm"
)

// TripModel is the GORM model for the viagens table.
type TripModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TripNumber     string          `gorm:"column:numero_viagem;uniqueIndex;not null;size:20"`
	CustomerName   string          `gorm:"column:nome_cliente;size:200"`
	CustomerEmail  string          `gorm:"column:email_cliente;index;not null;size:320"`
	ServiceType    string          `gorm:"column:tipo_servico;not null;size:20"`
	TravelDate     time.Time       `gorm:"column:data_viagem;type:date;not null"`
	TravelTime     *string         `gorm:"column:horario_viagem;size:5"`
	Origin         json.RawMessage `gorm:"column:origem;type:jsonb;not null"`
	Destination    json.RawMessage `gorm:"column:destino;type:jsonb;not null"`
	OriginCity     string          `gorm:"column:origem_cidade;size:120;not null"`
	DestCity       string          `gorm:"column:destino_cidade;size:120;not null"`
	DistanceKm     *float64        `gorm:"column:distancia_km;type:numeric(10,2)"`
	EstimatedPrice *float64        `gorm:"column:preco_estimado;type:numeric(10,2)"`
	Approximate    bool            `gorm:"column:distancia_aproximada;not null;default:false"`
	PriceSource    *string         `gorm:"column:origem_preco;size:20"`
	Passenger      json.RawMessage `gorm:"column:passageiros;type:jsonb"`
	Cargo          json.RawMessage `gorm:"column:carga;type:jsonb"`
	Status         string          `gorm:"not null;size:20;index"`
	Notes          string          `gorm:"column:observacao;size:1000"`
	CancelReason   string          `gorm:"column:motivo_cancelamento;size:500"`
	AcceptedAt     *time.Time      `gorm:""`
	StartedAt      *time.Time      `gorm:""`
	CompletedAt    *time.Time      `gorm:""`
	CancelledAt    *time.Time      `gorm:""`
	Version        int64           `gorm:"not null;default:1"`
	CreatedAt      time.Time       `gorm:"not null;index"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TripModel) TableName() string {
	return "viagens"
}

// GormTripRepository is the GORM-based implementation of TripRepository.
type GormTripRepository struct {
	db *gorm.DB
}

// NewGormTripRepository creates a new GormTripRepository.
func NewGormTripRepository(db *gorm.DB) *GormTripRepository {
	return &GormTripRepository{db: db}
}

// FindByID retrieves a trip by its unique identifier.
func (r *GormTripRepository) FindByID(ctx context.Context, id uuid.UUID) (*tripDomain.Trip, error) {
	var model TripModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Trip", id.String())
		}
		return nil, fmt.Errorf("failed to find trip by ID: %w", err)
	}
	return toDomainTrip(&model)
}

// FindByNumber retrieves a trip by its trip number.
func (r *GormTripRepository) FindByNumber(ctx context.Context, number string) (*tripDomain.Trip, error) {
	var model TripModel
	if err := r.db.WithContext(ctx).Where("numero_viagem = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Trip", number)
		}
		return nil, fmt.Errorf("failed to find trip by number: %w", err)
	}
	return toDomainTrip(&model)
}

// List retrieves trips matching filter with pagination.
func (r *GormTripRepository) List(ctx context.Context, filter tripDomain.ListFilter, page, limit int) ([]*tripDomain.Trip, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.CustomerEmail != "" {
			db = db.Where("email_cliente = ?", filter.CustomerEmail)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", string(filter.Status))
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&TripModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	var models []TripModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list trips: %w", err)
	}

	trips := make([]*tripDomain.Trip, len(models))
	for i := range models {
		tr, err := toDomainTrip(&models[i])
		if err != nil {
			return nil, 0, err
		}
		trips[i] = tr
	}

	return trips, total, nil
}

// Save persists a new trip.
func (r *GormTripRepository) Save(ctx context.Context, tr *tripDomain.Trip) error {
	model, err := toTripModel(tr)
	if err != nil {
		return fmt.Errorf("failed to convert trip to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}
	return nil
}

// Update persists changes to an existing trip with optimistic locking.
func (r *GormTripRepository) Update(ctx context.Context, tr *tripDomain.Trip) error {
	model, err := toTripModel(tr)
	if err != nil {
		return fmt.Errorf("failed to convert trip to model: %w", err)
	}

	// IncrementVersion has already run, so the stored row holds version-1.
	expectedVersion := tr.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&TripModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"data_viagem":          model.TravelDate,
			"horario_viagem":       model.TravelTime,
			"distancia_km":         model.DistanceKm,
			"preco_estimado":       model.EstimatedPrice,
			"distancia_aproximada": model.Approximate,
			"origem_preco":         model.PriceSource,
			"status":               model.Status,
			"motivo_cancelamento":  model.CancelReason,
			"accepted_at":          model.AcceptedAt,
			"started_at":           model.StartedAt,
			"completed_at":         model.CompletedAt,
			"cancelled_at":         model.CancelledAt,
			"version":              model.Version,
			"updated_at":           model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update trip: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("trip was modified by another transaction")
	}

	return nil
}

// CountByStatus returns trip counts grouped by status (admin).
func (r *GormTripRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&TripModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toTripModel(tr *tripDomain.Trip) (*TripModel, error) {
	originJSON, err := json.Marshal(tr.Origin())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal origin: %w", err)
	}

	destJSON, err := json.Marshal(tr.Destination())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal destination: %w", err)
	}

	var passengerJSON, cargoJSON json.RawMessage
	if p := tr.Passenger(); p != nil {
		if passengerJSON, err = json.Marshal(p); err != nil {
			return nil, fmt.Errorf("failed to marshal passenger details: %w", err)
		}
	}
	if c := tr.Cargo(); c != nil {
		if cargoJSON, err = json.Marshal(c); err != nil {
			return nil, fmt.Errorf("failed to marshal cargo details: %w", err)
		}
	}

	return &TripModel{
		ID:             tr.ID(),
		TripNumber:     tr.TripNumber(),
		CustomerName:   tr.CustomerName(),
		CustomerEmail:  tr.CustomerEmail(),
		ServiceType:    string(tr.ServiceType()),
		TravelDate:     tr.TravelDate(),
		TravelTime:     optionalString(tr.TravelTime()),
		Origin:         originJSON,
		Destination:    destJSON,
		OriginCity:     tr.Origin().City,
		DestCity:       tr.Destination().City,
		DistanceKm:     tr.DistanceKm(),
		EstimatedPrice: tr.EstimatedPrice(),
		Approximate:    tr.Approximate(),
		PriceSource:    optionalString(string(tr.PriceSource())),
		Passenger:      passengerJSON,
		Cargo:          cargoJSON,
		Status:         string(tr.Status()),
		Notes:          tr.Notes(),
		CancelReason:   tr.CancelReason(),
		AcceptedAt:     tr.AcceptedAt(),
		StartedAt:      tr.StartedAt(),
		CompletedAt:    tr.CompletedAt(),
		CancelledAt:    tr.CancelledAt(),
		Version:        tr.Version(),
		CreatedAt:      tr.CreatedAt(),
		UpdatedAt:      tr.UpdatedAt(),
	}, nil
}

func toDomainTrip(m *TripModel) (*tripDomain.Trip, error) {
	var origin tripDomain.Endpoint
	if err := json.Unmarshal(m.Origin, &origin); err != nil {
		return nil, fmt.Errorf("failed to unmarshal origin: %w", err)
	}

	var destination tripDomain.Endpoint
	if err := json.Unmarshal(m.Destination, &destination); err != nil {
		return nil, fmt.Errorf("failed to unmarshal destination: %w", err)
	}

	var passenger *tripDomain.PassengerDetails
	if len(m.Passenger) > 0 && string(m.Passenger) != "null" {
		var p tripDomain.PassengerDetails
		if err := json.Unmarshal(m.Passenger, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal passenger details: %w", err)
		}
		passenger = &p
	}

	var cargo *tripDomain.CargoDetails
	if len(m.Cargo) > 0 && string(m.Cargo) != "null" {
		var c tripDomain.CargoDetails
		if err := json.Unmarshal(m.Cargo, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cargo details: %w", err)
		}
		cargo = &c
	}

	status, err := tripDomain.ParseTripStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var travelTime, priceSource string
	if m.TravelTime != nil {
		travelTime = *m.TravelTime
	}
	if m.PriceSource != nil {
		priceSource = *m.PriceSource
	}

	return tripDomain.ReconstructTrip(tripDomain.ReconstructParams{
		ID:             m.ID,
		TripNumber:     m.TripNumber,
		CustomerName:   m.CustomerName,
		CustomerEmail:  m.CustomerEmail,
		ServiceType:    tripDomain.ServiceType(m.ServiceType),
		TravelDate:     m.TravelDate.UTC(),
		TravelTime:     travelTime,
		Origin:         origin,
		Destination:    destination,
		DistanceKm:     m.DistanceKm,
		EstimatedPrice: m.EstimatedPrice,
		Approximate:    m.Approximate,
		PriceSource:    tripDomain.PriceSource(priceSource),
		Passenger:      passenger,
		Cargo:          cargo,
		Status:         status,
		Notes:          m.Notes,
		CancelReason:   m.CancelReason,
		AcceptedAt:     m.AcceptedAt,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CancelledAt:    m.CancelledAt,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}), nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
