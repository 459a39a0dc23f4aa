package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/viagem-certa/service-trip/internal/domain"
	tripDomain "github.com/viagem-certa/service-trip/internal/domain/trip"
	"github.com/viagem-certa/service-trip/internal/estimate"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct tags and reports the first failing field as a
// validation error.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return domain.NewValidationError(err.Error())
}

// EndpointRequest is one end of a trip as submitted by the customer.
type EndpointRequest struct {
	Kind       string `json:"tipo" validate:"omitempty,oneof=casa rodoviaria"`
	Street     string `json:"endereco" validate:"max=200"`
	PostalCode string `json:"cep" validate:"max=9"`
	Complement string `json:"complemento" validate:"max=120"`
	District   string `json:"bairro" validate:"max=120"`
	City       string `json:"cidade" validate:"required,max=120"`
	State      string `json:"estado" validate:"required,max=40"`
}

func (e EndpointRequest) toDomain() tripDomain.Endpoint {
	return tripDomain.Endpoint{
		Kind:       tripDomain.LocationKind(e.Kind),
		Street:     e.Street,
		PostalCode: e.PostalCode,
		Complement: e.Complement,
		District:   e.District,
		City:       e.City,
		State:      e.State,
	}.Normalized()
}

// RequestTripRequest is the input for requesting a trip.
type RequestTripRequest struct {
	CustomerName  string          `json:"nome_cliente" validate:"required,max=120"`
	CustomerEmail string          `json:"email_cliente" validate:"required,email"`
	ServiceType   string          `json:"tipo_servico" validate:"required,oneof=passageiro mercadoria executivo"`
	TravelDate    string          `json:"data_viagem" validate:"required"`
	TravelTime    string          `json:"horario_viagem"`
	Origin        EndpointRequest `json:"origem"`
	Destination   EndpointRequest `json:"destino"`
	Notes         string          `json:"observacoes" validate:"max=1000"`

	Passenger *tripDomain.PassengerDetails `json:"passageiros"`
	Cargo     *tripDomain.CargoDetails     `json:"carga"`

	// DistanceKm and EstimatedPrice carry a quote the client already holds.
	// Both must be present for it to be used.
	DistanceKm          *float64 `json:"distancia_km" validate:"omitempty,gt=0"`
	EstimatedPrice      *float64 `json:"preco_estimado" validate:"omitempty,gt=0"`
	DistanceApproximate bool     `json:"distancia_aproximada"`
}

func (r RequestTripRequest) toParams() (tripDomain.NewTripParams, error) {
	date, err := parseDate(r.TravelDate)
	if err != nil {
		return tripDomain.NewTripParams{}, err
	}
	p := tripDomain.NewTripParams{
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		ServiceType:   tripDomain.ServiceType(r.ServiceType),
		TravelDate:    date,
		TravelTime:    r.TravelTime,
		Origin:        r.Origin.toDomain(),
		Destination:   r.Destination.toDomain(),
		Passenger:     r.Passenger,
		Cargo:         r.Cargo,
		Notes:         r.Notes,
	}
	if r.DistanceKm != nil && r.EstimatedPrice != nil {
		p.Pricing = &tripDomain.Pricing{
			DistanceKm: *r.DistanceKm,
			Price:      *r.EstimatedPrice,
			Fallback:   r.DistanceApproximate,
			Source:     tripDomain.PriceSourceEstimate,
		}
	}
	return p, nil
}

// EstimateRequest is the input for a one-shot estimate.
type EstimateRequest struct {
	Origin      estimate.PlaceQuery `json:"origem"`
	Destination estimate.PlaceQuery `json:"destino"`
}

// RescheduleRequest moves a trip to a new date and optional time.
type RescheduleRequest struct {
	TravelDate string `json:"data_viagem" validate:"required"`
	TravelTime string `json:"horario_viagem"`
}

// ManualPriceRequest prices a trip by hand.
type ManualPriceRequest struct {
	DistanceKm *float64 `json:"distancia_km" validate:"omitempty,gte=0"`
	Price      float64  `json:"preco_estimado" validate:"gt=0"`
}

// EndpointDTO is the API representation of a trip endpoint.
type EndpointDTO struct {
	tripDomain.Endpoint
	Summary string `json:"resumo"`
}

// TripDTO is the API representation of a trip.
type TripDTO struct {
	ID             uuid.UUID                    `json:"id"`
	TripNumber     string                       `json:"numero_viagem"`
	CustomerName   string                       `json:"nome_cliente"`
	CustomerEmail  string                       `json:"email_cliente"`
	ServiceType    string                       `json:"tipo_servico"`
	TravelDate     string                       `json:"data_viagem"`
	TravelTime     string                       `json:"horario_viagem,omitempty"`
	Origin         EndpointDTO                  `json:"origem"`
	Destination    EndpointDTO                  `json:"destino"`
	DistanceKm     *float64                     `json:"distancia_km"`
	EstimatedPrice *float64                     `json:"preco_estimado"`
	PriceText      string                       `json:"preco_formatado,omitempty"`
	Approximate    bool                         `json:"distancia_aproximada"`
	PriceSource    string                       `json:"origem_preco,omitempty"`
	Passenger      *tripDomain.PassengerDetails `json:"passageiros,omitempty"`
	Cargo          *tripDomain.CargoDetails     `json:"carga,omitempty"`
	Status         string                       `json:"status"`
	Notes          string                       `json:"observacoes,omitempty"`
	CancelReason   string                       `json:"motivo_cancelamento,omitempty"`
	AcceptedAt     *time.Time                   `json:"aceita_em,omitempty"`
	StartedAt      *time.Time                   `json:"iniciada_em,omitempty"`
	CompletedAt    *time.Time                   `json:"concluida_em,omitempty"`
	CancelledAt    *time.Time                   `json:"cancelada_em,omitempty"`
	Version        int64                        `json:"version"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

func toTripDTO(t *tripDomain.Trip) TripDTO {
	dto := TripDTO{
		ID:             t.ID(),
		TripNumber:     t.TripNumber(),
		CustomerName:   t.CustomerName(),
		CustomerEmail:  t.CustomerEmail(),
		ServiceType:    string(t.ServiceType()),
		TravelDate:     t.TravelDate().Format(tripDomain.DateLayout),
		TravelTime:     t.TravelTime(),
		Origin:         EndpointDTO{Endpoint: t.Origin(), Summary: t.Origin().Summary()},
		Destination:    EndpointDTO{Endpoint: t.Destination(), Summary: t.Destination().Summary()},
		DistanceKm:     t.DistanceKm(),
		EstimatedPrice: t.EstimatedPrice(),
		Approximate:    t.Approximate(),
		PriceSource:    string(t.PriceSource()),
		Passenger:      t.Passenger(),
		Cargo:          t.Cargo(),
		Status:         string(t.Status()),
		Notes:          t.Notes(),
		CancelReason:   t.CancelReason(),
		AcceptedAt:     t.AcceptedAt(),
		StartedAt:      t.StartedAt(),
		CompletedAt:    t.CompletedAt(),
		CancelledAt:    t.CancelledAt(),
		Version:        t.Version(),
		CreatedAt:      t.CreatedAt(),
		UpdatedAt:      t.UpdatedAt(),
	}
	if p := t.EstimatedPrice(); p != nil {
		dto.PriceText = estimate.FormatBRL(*p)
	}
	return dto
}

// toPlaceQuery maps a trip endpoint onto the estimation engine's query.
// Complement and district are left out so the street phrase stays searchable.
func toPlaceQuery(e tripDomain.Endpoint) estimate.PlaceQuery {
	kind := estimate.KindAddress
	if e.Kind == tripDomain.LocationBusStation {
		kind = estimate.KindBusStation
	}
	return estimate.PlaceQuery{
		Kind:   kind,
		Street: e.Street,
		City:   e.City,
		State:  e.State,
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(tripDomain.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, domain.NewValidationError("data_viagem must be YYYY-MM-DD")
	}
	return d, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
