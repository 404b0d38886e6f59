package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/events"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/httpapi"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/identity"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/realtime"
	sqliteadapter "github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/sqlite"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/sqlite/gormsqlite"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/usecase"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/obs"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/migrations"
)

type Config struct {
	Addr                string
	DBPath              string
	JWTSecret           string
	OrderPrefix         string
	MaxSequenceAttempts int
	WebhookURL          string
	WebhookSecret       string
	DispatchInterval    time.Duration
	HandshakeRate       float64
	HandshakeBurst      int
	AllowedOrigins      []string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func openDB(ctx context.Context, path string) (*gormsqlite.DB, error) {
	db, err := gormsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(ctx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store exposes the administrative use cases the CLI needs without starting the
// HTTP server or the dispatcher.
type Store struct {
	db     *gormsqlite.DB
	Actors *usecase.ActorService
	Grants *usecase.GrantService
}

func OpenStore(ctx context.Context, dbPath string) (*Store, error) {
	db, err := openDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	actors := sqliteadapter.NewActorRepository(db)
	return &Store{
		db:     db,
		Actors: usecase.NewActorService(actors),
		Grants: usecase.NewGrantService(sqliteadapter.NewGrantRepository(db), actors),
	}, nil
}

func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	sqlDB, err := s.db.WriteSQLDB()
	if err != nil {
		return 0, err
	}
	return migrations.Version(ctx, sqlDB)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	if cfg.JWTSecret == "" {
		return nil, nil, errors.New("jwt secret is required")
	}
	verifier, err := identity.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}

	db, err := openDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	metrics := obs.NewMetrics(nil)

	actorRepo := sqliteadapter.NewActorRepository(db)
	grantRepo := sqliteadapter.NewGrantRepository(db)
	requestRepo := sqliteadapter.NewPermissionRequestRepository(db)
	notificationRepo := sqliteadapter.NewNotificationRepository(db)
	notificationStore := sqliteadapter.NewNotificationStore(db)
	orderStore := sqliteadapter.NewOrderStore(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	registry := realtime.NewRegistry()
	sinks := []string{usecase.SinkLive, usecase.SinkLog}
	router := events.NewTopicRouter().
		Handle(usecase.SinkLive, events.NewLivePublisher(registry, metrics)).
		Handle(usecase.SinkLog, events.NewLogPublisher())
	if cfg.WebhookURL != "" {
		router.Handle(usecase.SinkWebhook, events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0))
		sinks = append(sinks, usecase.SinkWebhook)
	}

	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, router, cfg.DispatchInterval, 100, metrics)

	authService := usecase.NewAuthService(verifier, actorRepo)
	notifier := usecase.NewNotificationService(notificationStore, notificationRepo, dispatcher, sinks, metrics)
	permissions := usecase.NewPermissionService(grantRepo, requestRepo, actorRepo, notificationStore, notifier, metrics)
	sequence := usecase.NewSequenceGenerator(orderStore, cfg.OrderPrefix)
	orders := usecase.NewOrderService(orderStore, permissions, notifier, sequence, cfg.MaxSequenceAttempts, metrics)

	handler := httpapi.NewHandler(httpapi.Services{
		Auth:          authService,
		Permissions:   permissions,
		Grants:        usecase.NewGrantService(grantRepo, actorRepo),
		Notifications: notifier,
		Orders:        orders,
	},
		httpapi.WithLive(realtime.NewHandler(authService, registry, cfg.AllowedOrigins), httpapi.RateLimitConfig{
			PerSecond: cfg.HandshakeRate,
			Burst:     cfg.HandshakeBurst,
		}),
		httpapi.WithMetrics(metrics.Handler(), metrics.Instrument),
	)

	dispatcher.Start(context.Background())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}
