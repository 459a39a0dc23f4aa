package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viagem-certa/service-trip/internal/domain"
	tripDomain "github.com/viagem-certa/service-trip/internal/domain/trip"
	"github.com/viagem-certa/service-trip/internal/kafka"
	"go.uber.org/zap"
)

type fakeBackfiller struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeBackfiller) BackfillEstimate(_ context.Context, tripID uuid.UUID, _, _ tripDomain.Endpoint) (bool, error) {
	f.calls = append(f.calls, tripID)
	return f.err == nil, f.err
}

func requestedMessage(t *testing.T, evt tripDomain.RequestedEvent) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-trip", tripDomain.EventRequested, evt)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Value: raw}
}

func newTestConsumer(svc EstimateBackfiller) *EstimateBackfillConsumer {
	return &EstimateBackfillConsumer{service: svc, logger: zap.NewNop()}
}

func TestHandleMessage_BackfillsUnpricedTrip(t *testing.T) {
	svc := &fakeBackfiller{}
	c := newTestConsumer(svc)
	id := uuid.New()

	err := c.handleMessage(context.Background(), requestedMessage(t, tripDomain.RequestedEvent{
		TripID:      id,
		Origin:      tripDomain.Endpoint{Kind: tripDomain.LocationBusStation, City: "Caruaru", State: "PE"},
		Destination: tripDomain.Endpoint{Kind: tripDomain.LocationBusStation, City: "Recife", State: "PE"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, svc.calls)
}

func TestHandleMessage_SkipsPricedTrip(t *testing.T) {
	svc := &fakeBackfiller{}
	c := newTestConsumer(svc)
	price := 21.1

	err := c.handleMessage(context.Background(), requestedMessage(t, tripDomain.RequestedEvent{
		TripID:         uuid.New(),
		EstimatedPrice: &price,
	}))
	require.NoError(t, err)
	assert.Empty(t, svc.calls)
}

func TestHandleMessage_IgnoresOtherEventsAndGarbage(t *testing.T) {
	svc := &fakeBackfiller{}
	c := newTestConsumer(svc)

	ce, err := kafka.NewCloudEvent("service-trip", tripDomain.EventAccepted, tripDomain.StatusChangedEvent{TripID: uuid.New()})
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: raw}))
	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: []byte(`{"type":"trip.requested","data":"x"}`)}))
	assert.Empty(t, svc.calls)
}

func TestHandleMessage_ErrorHandling(t *testing.T) {
	t.Run("missing trip is dropped", func(t *testing.T) {
		c := newTestConsumer(&fakeBackfiller{err: domain.NewNotFoundError("Trip", "x")})
		assert.NoError(t, c.handleMessage(context.Background(), requestedMessage(t, tripDomain.RequestedEvent{TripID: uuid.New()})))
	})

	t.Run("store failure is retried", func(t *testing.T) {
		boom := errors.New("connection refused")
		c := newTestConsumer(&fakeBackfiller{err: boom})
		err := c.handleMessage(context.Background(), requestedMessage(t, tripDomain.RequestedEvent{TripID: uuid.New()}))
		assert.ErrorIs(t, err, boom)
	})
}
