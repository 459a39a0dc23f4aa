package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tripDomain "github.com/viagem-certa/service-trip/internal/domain/trip"
)

func newTrip(t *testing.T, svc tripDomain.ServiceType) *tripDomain.Trip {
	t.Helper()
	p := tripDomain.NewTripParams{
		CustomerName:  "João",
		CustomerEmail: "joao@example.com",
		ServiceType:   svc,
		TravelDate:    time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		Origin:        tripDomain.Endpoint{Kind: tripDomain.LocationBusStation, City: "Caruaru", State: "PE"},
		Destination:   tripDomain.Endpoint{Kind: tripDomain.LocationHome, Street: "Av. Boa Viagem, 1000", City: "Recife", State: "PE"},
	}
	if svc == tripDomain.ServiceCargo {
		w := 12.5
		p.Cargo = &tripDomain.CargoDetails{Description: "Eletrodoméstico", WeightKg: &w, Fragile: true}
	} else {
		p.Passenger = &tripDomain.PassengerDetails{Count: 1}
	}
	tr, err := tripDomain.NewTrip(p)
	require.NoError(t, err)
	return tr
}

func TestTripModel_RoundTrip(t *testing.T) {
	for _, svc := range []tripDomain.ServiceType{tripDomain.ServicePassenger, tripDomain.ServiceCargo} {
		t.Run(string(svc), func(t *testing.T) {
			tr := newTrip(t, svc)
			require.NoError(t, tr.AttachEstimate(131.42, 65.71, true))
			require.NoError(t, tr.Accept())

			model, err := toTripModel(tr)
			require.NoError(t, err)
			assert.Equal(t, "agendado", model.Status)
			assert.Equal(t, "Caruaru", model.OriginCity)
			assert.Nil(t, model.TravelTime)
			require.NotNil(t, model.PriceSource)
			assert.Equal(t, "estimativa", *model.PriceSource)

			back, err := toDomainTrip(model)
			require.NoError(t, err)
			assert.Equal(t, tr.ID(), back.ID())
			assert.Equal(t, tr.TripNumber(), back.TripNumber())
			assert.Equal(t, tr.Origin(), back.Origin())
			assert.Equal(t, tr.Destination(), back.Destination())
			assert.Equal(t, tr.Passenger(), back.Passenger())
			assert.Equal(t, tr.Cargo(), back.Cargo())
			assert.Equal(t, *tr.EstimatedPrice(), *back.EstimatedPrice())
			assert.True(t, back.Approximate())
			assert.Equal(t, tr.Status(), back.Status())
		})
	}
}

func TestToDomainTrip_RejectsUnknownStatus(t *testing.T) {
	model, err := toTripModel(newTrip(t, tripDomain.ServicePassenger))
	require.NoError(t, err)
	model.Status = "delivered"

	_, err = toDomainTrip(model)
	assert.Error(t, err)
}
