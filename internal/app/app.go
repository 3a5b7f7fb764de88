package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "speech-transcript-service/internal/api/grpc"
	"speech-transcript-service/internal/config"
	"speech-transcript-service/internal/events"
	httpapi "speech-transcript-service/internal/http"
	"speech-transcript-service/internal/observability"
	"speech-transcript-service/internal/observability/logging"
	"speech-transcript-service/internal/observability/metrics"
	"speech-transcript-service/internal/schema"
	"speech-transcript-service/internal/service/recognizer/provider"
	"speech-transcript-service/internal/service/session"
	"speech-transcript-service/internal/store"
)

const pruneInterval = time.Hour

var errNotReady = errors.New("not ready")

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Metrics  *metrics.Metrics
	Sessions *session.Manager
	Store    *store.Store
	Events   events.Sink

	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	obsServer  *observability.Server

	ready     atomic.Bool
	stopPrune context.CancelFunc
	wg        sync.WaitGroup
}

// New wires the service from cfg. Nothing listens until Start is called.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:     cfg,
		Logger:  logging.WithComponent("application"),
		Metrics: metrics.DefaultMetrics,
	}

	sink, err := events.Open(cfg.Events.Backend,
		&events.Config{
			Brokers:      cfg.Kafka.Brokers,
			TopicPartial: cfg.Kafka.TopicPartial,
			TopicFinal:   cfg.Kafka.TopicFinal,
			Principal:    cfg.Kafka.Principal,
		},
		&events.NATSConfig{
			URL:            cfg.NATS.URL,
			SubjectPartial: cfg.NATS.SubjectPartial,
			SubjectFinal:   cfg.NATS.SubjectFinal,
			Principal:      cfg.Service.Principal,
			ConnectTimeout: cfg.NATS.ConnectTimeout,
		})
	if err != nil {
		return nil, fmt.Errorf("open events backend: %w", err)
	}
	a.Events = sink

	st, err := store.Open(ctx, store.Config{Enabled: cfg.Store.Enabled, Path: cfg.Store.Path})
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("open turn store: %w", err)
	}
	a.Store = st

	factory, err := provider.New(cfg.STT)
	if err != nil {
		a.closeBackends()
		return nil, err
	}

	a.Sessions = session.NewManager(session.Options{
		Factory:   factory,
		Provider:  cfg.STT.Provider,
		MergeMode: cfg.Transcript.MergeMode,
		Limits: session.Limits{
			MaxAudioBytes: cfg.TurnLimits.MaxAudioBytes,
			MaxDuration:   cfg.TurnLimits.MaxDuration,
			MaxPartials:   cfg.TurnLimits.MaxPartials,
		},
		Publisher: sink,
		Recorder:  st,
		Validator: schema.New(),
		Metrics:   a.Metrics,
	})

	a.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(a.Metrics)),
	)
	a.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpcServer, a.health)
	grpcapi.Register(a.grpcServer, a.Sessions)
	reflection.Register(a.grpcServer)

	deps := httpapi.Deps{Sessions: a.Sessions, Ready: a.Ready}
	if st.Enabled() {
		deps.Turns = st
	}
	a.httpServer = &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.obsServer = observability.NewServer(cfg.Observability.MetricsAddr, prometheus.DefaultGatherer, a.Ready)

	a.Logger.Info().
		Str("eventsBackend", cfg.Events.Backend).
		Str("sttProvider", cfg.STT.Provider).
		Str("mergeMode", cfg.Transcript.MergeMode).
		Bool("storeEnabled", st.Enabled()).
		Msg("Speech transcript service application created")
	return a, nil
}

// Ready reports whether the service is accepting sessions.
func (a *Application) Ready() error {
	if !a.ready.Load() {
		return errNotReady
	}
	return nil
}

// Start opens the listeners and serves traffic in the background.
func (a *Application) Start() error {
	lis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	httpLis, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		lis.Close()
		return fmt.Errorf("listen http: %w", err)
	}

	a.StartupTime = time.Now().UTC()
	a.obsServer.Start()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Logger.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC server")
		if err := a.grpcServer.Serve(lis); err != nil {
			a.Logger.Error().Err(err).Msg("gRPC server error")
		}
	}()
	go func() {
		defer a.wg.Done()
		a.Logger.Info().Str("addr", httpLis.Addr().String()).Msg("Starting HTTP server")
		if err := a.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	if a.Cfg.Store.Retention > 0 && a.Store.Enabled() {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopPrune = cancel
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pruneLoop(ctx, a.Cfg.Store.Retention)
		}()
	}

	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	a.ready.Store(true)

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Speech transcript service started")
	return nil
}

func (a *Application) pruneLoop(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := a.Store.Prune(ctx, retention)
		if err != nil {
			a.Metrics.RecordStoreError("prune")
			a.Logger.Error().Err(err).Msg("Failed to prune turns")
		} else if n > 0 {
			a.Logger.Info().Int64("turns", n).Dur("retention", retention).Msg("Pruned old turns")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown stops accepting traffic, closes every session so final events are
// published, then releases the backends. ctx bounds the graceful phase.
func (a *Application) Shutdown(ctx context.Context) {
	a.Logger.Info().Msg("Speech transcript service shutting down")

	a.ready.Store(false)
	a.health.Shutdown()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}

	// Ending sessions first lets clients see their last view before the
	// streams are torn down.
	a.Sessions.Shutdown()

	stopped := make(chan struct{})
	go func() {
		a.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.Logger.Warn().Msg("gRPC graceful stop timed out, forcing")
		a.grpcServer.Stop()
	}

	if a.stopPrune != nil {
		a.stopPrune()
	}
	a.wg.Wait()

	a.closeBackends()
	if err := a.obsServer.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Observability server shutdown incomplete")
	}
}

func (a *Application) closeBackends() {
	if err := a.Events.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error closing events backend")
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error closing turn store")
	}
}
