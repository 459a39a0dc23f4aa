//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/viagem-certa/service-trip/internal/application"
	"github.com/viagem-certa/service-trip/internal/database"
	tripDomain "github.com/viagem-certa/service-trip/internal/domain/trip"
	"github.com/viagem-certa/service-trip/internal/estimate"
	tripEvents "github.com/viagem-certa/service-trip/internal/events"
	"github.com/viagem-certa/service-trip/internal/kafka"
	"github.com/viagem-certa/service-trip/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// tripStack holds wired-up trip service components.
type tripStack struct {
	Service         *application.TripService
	Consumer        *tripEvents.EstimateBackfillConsumer
	Upstream        *fakeUpstream
	CleanupProducer func()
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers and
// applies the SQL migrations.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_viagens",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_viagens",
		SSLMode:  "disable",
	}

	// Poll until the pool can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbConfig, zap.NewNop())
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(db, "migrations", zap.NewNop()))

	// Start Redis for the estimate caches.
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(redisHost, redisPort.Port())})
	require.NoError(t, rdb.Ping(ctx).Err())

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, tripDomain.TopicTripEvents)

	cleanup := func() {
		_ = rdb.Close()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		Redis:        rdb,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// fakeUpstream stands in for Nominatim and OSRM. Places are matched by the
// city name appearing in the search phrase.
type fakeUpstream struct {
	Nominatim *httptest.Server
	OSRM      *httptest.Server
	searches  atomic.Int64
	routes    atomic.Int64
}

var testPlaces = map[string][2]float64{
	"Caruaru": {-8.2845, -35.9699},
	"Recife":  {-8.0476, -34.8770},
	"Olinda":  {-8.0089, -34.8553},
}

func newFakeUpstream(t *testing.T, routeMeters float64) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.Nominatim = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		q := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		for city, p := range testPlaces {
			if strings.Contains(q, city) {
				fmt.Fprintf(w, `[{"lat":"%v","lon":"%v"}]`, p[0], p[1])
				return
			}
		}
		_, _ = w.Write([]byte("[]"))
	}))
	f.OSRM = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.routes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"code":"Ok","routes":[{"distance":%v}]}`, routeMeters)
	}))
	t.Cleanup(func() {
		f.Nominatim.Close()
		f.OSRM.Close()
	})
	return f
}

// newPipeline builds the estimate pipeline against up, caching through rdb
// when it is not nil.
func newPipeline(up *fakeUpstream, rdb *redis.Client, logger *zap.Logger) *estimate.Pipeline {
	var searcher estimate.PlaceSearcher = estimate.NewNominatimSearcher(up.Nominatim.URL, "viagem-certa-test", 5*time.Second)
	var router estimate.Router = estimate.NewOSRMRouter(up.OSRM.URL, "viagem-certa-test", 5*time.Second, logger)
	if rdb != nil {
		store := estimate.NewRedisStore(rdb)
		searcher = estimate.NewCachedSearcher(searcher, store, time.Hour, logger)
		router = estimate.NewCachedRouter(router, store, time.Hour, logger)
	}
	return estimate.NewPipeline(estimate.NewPlaceGeocoder(searcher, logger), router, estimate.NewFlatRatePricing(), logger)
}

// unavailableEstimator makes every inline estimate fail so trips are saved
// unpriced.
type unavailableEstimator struct{}

func (unavailableEstimator) Estimate(context.Context, estimate.PlaceQuery, estimate.PlaceQuery) estimate.Outcome {
	return estimate.Unavailable(estimate.ReasonDistanceFailed)
}

// setupTripStack wires up the full trip service stack. The request path uses
// inline, the backfill consumer uses the fake upstream.
func setupTripStack(t *testing.T, infra *testInfra, inline estimate.Estimator) *tripStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	up := newFakeUpstream(t, 131420)
	repo := repository.NewGormTripRepository(infra.DB)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)

	requestSvc := application.NewTripService(repo, inline, producer, logger, 5*time.Second)
	backfillSvc := application.NewTripService(repo, newPipeline(up, infra.Redis, logger), producer, logger, 5*time.Second)

	groupID := fmt.Sprintf("test-trip-%s", uuid.New().String()[:8])
	consumer := tripEvents.NewEstimateBackfillConsumer(infra.KafkaBrokers, groupID, backfillSvc, logger)

	return &tripStack{
		Service:         requestSvc,
		Consumer:        consumer,
		Upstream:        up,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

func tripRequest(email string) application.RequestTripRequest {
	return application.RequestTripRequest{
		CustomerName:  "Teste Integração",
		CustomerEmail: email,
		ServiceType:   "passageiro",
		TravelDate:    "2026-12-01",
		Origin:        application.EndpointRequest{Kind: "rodoviaria", City: "Caruaru", State: "PE"},
		Destination:   application.EndpointRequest{Kind: "casa", Street: "Rua do Bom Jesus, 200", City: "Recife", State: "PE"},
		Passenger:     &tripDomain.PassengerDetails{Count: 1},
	}
}

// waitForTripPrice polls the viagens table until a price is set.
func waitForTripPrice(t *testing.T, db *gorm.DB, tripID uuid.UUID, timeout time.Duration) repository.TripModel {
	t.Helper()
	var result repository.TripModel
	require.Eventually(t, func() bool {
		var model repository.TripModel
		if err := db.Where("id = ?", tripID).First(&model).Error; err != nil {
			return false
		}
		if model.EstimatedPrice != nil {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "trip %s was never priced", tripID)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
