// Package server wires the delegated-session and file-delivery components
// together and manages their lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/skilltreehq/mentor-platform/internal/composer"
	appconfig "github.com/skilltreehq/mentor-platform/internal/config"
	"github.com/skilltreehq/mentor-platform/internal/delegated"
	"github.com/skilltreehq/mentor-platform/internal/delivery"
	"github.com/skilltreehq/mentor-platform/internal/graph"
	"github.com/skilltreehq/mentor-platform/internal/monitoring"
	"github.com/skilltreehq/mentor-platform/internal/store"
	"github.com/skilltreehq/mentor-platform/internal/tokencache"
	"github.com/skilltreehq/mentor-platform/pkg/httpmiddleware"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
	"github.com/skilltreehq/mentor-platform/pkg/metrics"
)

// FileDelivery is the result of delivering one file: the created drive item
// and the link chosen for sharing it.
type FileDelivery struct {
	File *delivery.UploadedFile
	Link delivery.ShareableLink
}

// Server holds the wired application components and manages their lifecycle.
type Server struct {
	cfg      *appconfig.AppConfig
	log      logger.Logger
	pool     *pgxpool.Pool
	store    store.SessionStore
	resolver delegated.Resolver
	pipeline *delivery.Pipeline
	composer *composer.Composer
	metrics  *metrics.Metrics
	cancel   context.CancelFunc
}

// New creates a Server with all components initialized and migrations
// applied.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: log,
	}

	if cfg.Monitoring.MetricsEnabled {
		s.metrics = metrics.NewMetrics(log)
	}

	pool, err := s.createPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	s.pool = pool

	migrations := store.NewMigrationManager(pool, log)
	defer func() {
		_ = migrations.Close()
	}()
	if err := migrations.RunMigrations(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	s.store = store.NewPostgresStore(pool, log)

	exchanger := graph.NewIdentityExchanger(graph.ExchangerConfig{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Logger:       log,
	})

	s.resolver = delegated.NewSessionResolver(delegated.ResolverParams{
		Store:     s.store,
		Cache:     tokencache.New(cfg.Graph.TokenCacheTTL),
		Exchanger: exchanger,
		Scopes:    cfg.Graph.ScopeList(),
		Metrics:   s.metrics,
		Logger:    log,
		ClientOpts: []graph.Option{
			graph.WithBaseURL(cfg.Graph.BaseURL),
			graph.WithHTTPClient(&http.Client{Timeout: cfg.Graph.RequestTimeout}),
		},
	})

	s.pipeline = delivery.NewPipeline(delivery.PipelineParams{
		MaxSizeBytes: cfg.Uploads.MaxSizeBytes(),
		FolderName:   cfg.Uploads.FolderName,
		Metrics:      s.metrics,
		Logger:       log,
	})

	s.composer = composer.NewComposer(s.metrics, log)

	return s, nil
}

// Run starts the admin and metrics listeners and blocks until shutdown.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()
	defer s.pool.Close()

	s.setupGracefulShutdown()

	group, ctx := errgroup.WithContext(ctx)

	if s.cfg.Health.Enabled {
		group.Go(func() error {
			return s.runAdminServer(ctx)
		})
	}
	if s.cfg.Monitoring.MetricsEnabled {
		group.Go(func() error {
			return s.metrics.Listen(ctx, s.cfg.Monitoring.MetricsPort)
		})
	}

	s.log.Info("Server started",
		logger.StringField("service", s.cfg.ServiceName),
		logger.StringField("version", s.cfg.Version))

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	s.log.Info("Server stopped")
	return nil
}

// ResolveClientForSubject exposes delegated client resolution to callers
// embedding this service.
func (s *Server) ResolveClientForSubject(ctx context.Context, subject string) (*graph.Client, error) {
	client, _, err := s.resolver.ResolveClientForSubject(ctx, subject)
	return client, err
}

// UploadFile delivers one file into the subject's drive and resolves a
// shareable link for it.
func (s *Server) UploadFile(ctx context.Context, subject string, req delivery.UploadRequest) (*FileDelivery, error) {
	client, _, err := s.resolver.ResolveClientForSubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	file, err := s.pipeline.Deliver(ctx, client, req)
	if err != nil {
		return nil, err
	}
	link := s.pipeline.ResolveShareableLink(ctx, client, file)
	return &FileDelivery{File: file, Link: link}, nil
}

// SendFileMessage posts a chat message on behalf of the subject referencing
// previously delivered files.
func (s *Server) SendFileMessage(ctx context.Context, subject, chatID, text string, deliveries []FileDelivery) (*composer.SendResult, error) {
	client, _, err := s.resolver.ResolveClientForSubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	attachments := make([]composer.Attachment, 0, len(deliveries))
	for _, d := range deliveries {
		attachments = append(attachments, s.composer.AttachmentFor(ctx, client, d.File, d.Link))
	}

	msg := s.composer.Compose(text, attachments)
	return s.composer.Send(ctx, client, chatID, msg)
}

// CreateSession persists a new durable session from the interactive consent
// flow, superseding any previous sessions for the subject.
func (s *Server) CreateSession(ctx context.Context, params store.CreateSessionParams) (*store.Session, error) {
	return s.store.Create(ctx, params)
}

func (s *Server) createPool(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(s.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(s.cfg.Database.MaxConnections)
	poolCfg.MaxConnLifetime = s.cfg.Database.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = s.cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// runAdminServer serves the health endpoints behind the standard middleware
// stack until ctx is done.
func (s *Server) runAdminServer(ctx context.Context) error {
	monitor := monitoring.NewHealthMonitor(monitoring.Config{
		Logger:           s.log,
		Store:            s.store,
		IdentityURL:      s.identityProbeURL(),
		Version:          s.cfg.Version,
		Timeout:          s.cfg.Health.Timeout,
		FailureThreshold: s.cfg.Health.FailureThreshold,
	})

	router := chi.NewRouter()
	httpmiddleware.Apply(router, s.log, httpmiddleware.DefaultCORSConfig(), 30*time.Second)
	router.Get("/health", monitor.HealthHandler())
	router.Get(s.cfg.Health.LivenessPath, monitor.LivenessHandler())
	router.Get(s.cfg.Health.ReadinessPath, monitor.ReadinessHandler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Health.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Admin server listening", logger.IntField("port", s.cfg.Health.Port))
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down admin server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// identityProbeURL points at the tenant's discovery document, a cheap target
// for reachability checks against the identity provider.
func (s *Server) identityProbeURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0/.well-known/openid-configuration", s.cfg.Graph.TenantID)
}

func (s *Server) setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))

		if s.cancel != nil {
			s.cancel()
		}

		time.AfterFunc(30*time.Second, func() {
			s.log.Warn("Force exiting due to timeout")
			os.Exit(1)
		})
	}()
}
