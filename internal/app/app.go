package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"agentforge/internal/cache"
	"agentforge/internal/config"
	apierrors "agentforge/internal/errors"
	"agentforge/internal/infrastructure"
	"agentforge/internal/middleware"
	"agentforge/internal/resources"
	handlers "agentforge/internal/transport/http"
	ws "agentforge/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Resources     *resources.Manager
	Cache         *cache.Cache
	WebSocket     *ws.EchoHandler
	RateLimiter   *middleware.RateLimiter
	Router        *chi.Mux
	Server        *http.Server
	MetricsServer *http.Server

	listener        net.Listener
	metricsListener net.Listener

	stopOnce sync.Once
	stopErr  error
}

type options struct {
	registry     *prometheus.Registry
	resourceOpts []resources.Option
}

// Option customizes how the application is built
type Option func(*options)

// WithRegistry registers every metric with reg instead of the default registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithResourceOptions passes options through to the resource manager
func WithResourceOptions(opts ...resources.Option) Option {
	return func(o *options) { o.resourceOpts = append(o.resourceOpts, opts...) }
}

// New builds the application. Nothing is opened or bound until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	otelCfg := infrastructure.OTelConfigFromConfig(cfg)
	resourceOpts := o.resourceOpts
	if o.registry != nil {
		otelCfg.Registerer = o.registry
		otelCfg.Gatherer = o.registry
		resourceOpts = append([]resources.Option{resources.WithRegisterer(o.registry)}, resourceOpts...)
	}

	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
	}

	a.Resources = resources.NewManager(cfg, logger.With(slog.String("logger", "resources")), resourceOpts...)
	a.Cache = cache.New(a.Resources, logger.With(slog.String("logger", "cache")))

	wsMetrics, err := infrastructure.NewWebSocketMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocket = ws.NewEchoHandler(ws.Config{
		ReadBufferSize:  cfg.WSReadBufferSize,
		WriteBufferSize: cfg.WSWriteBufferSize,
		MaxMessageSize:  cfg.WSMaxMessageSize,
		AllowedOrigins:  cfg.CORSOrigins,
	}, wsMetrics, logger)

	if err := a.setupRouter(); err != nil {
		return nil, err
	}
	a.createServers()
	return a, nil
}

func (a *Application) setupRouter() error {
	errorHandler := apierrors.NewErrorHandler(a.Logger)

	tracing, err := middleware.NewTracing(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create tracing middleware: %w", err)
	}
	if a.Config.RateLimitEnabled {
		a.RateLimiter = middleware.NewRateLimiter(a.Config.RateLimitPerMinute, a.Config.RateLimitPerHour, a.Logger)
	}

	pipeline := middleware.Standard(middleware.Options{
		Config:      a.Config,
		Logger:      a.Logger,
		Errors:      errorHandler,
		Tracing:     tracing,
		RateLimiter: a.RateLimiter,
	})
	a.Logger.Debug("Request pipeline assembled", slog.Any("stages", pipeline.Names()))

	a.Router = handlers.NewRouter(handlers.RouterConfig{
		Pipeline:  pipeline,
		Errors:    errorHandler,
		Health:    handlers.NewHealthHandler(handlers.ServiceInfo{Name: a.Config.AppName, Version: a.Config.Version}, a.Resources, a.Logger),
		WebSocket: a.WebSocket,
	})
	return nil
}

// createServers creates the HTTP server and, when enabled, the metrics server
func (a *Application) createServers() {
	errorLog := slog.NewLogLogger(a.Logger.Handler(), slog.LevelError)

	a.Server = &http.Server{
		Addr:         a.Config.Addr(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.ReadTimeout,
		WriteTimeout: a.Config.WriteTimeout,
		IdleTimeout:  a.Config.IdleTimeout,
		ErrorLog:     errorLog,
	}

	if a.Config.EnableMetrics && a.OTelProviders.PrometheusHTTP != nil {
		mux := chi.NewRouter()
		mux.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
		a.MetricsServer = &http.Server{
			Addr:         a.Config.MetricsAddr(),
			Handler:      mux,
			ReadTimeout:  a.Config.ReadTimeout,
			WriteTimeout: a.Config.WriteTimeout,
			ErrorLog:     errorLog,
		}
	}
}

// Start verifies the resources and binds the listeners. When the resources
// cannot be verified nothing is bound.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", a.Config.AppName),
		slog.String("version", a.Config.Version),
		slog.String("environment", a.Config.Environment),
		slog.String("address", a.Server.Addr))

	if err := a.Resources.Start(ctx); err != nil {
		return fmt.Errorf("failed to start resources: %w", err)
	}

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err), a.Resources.Stop(ctx))
	}
	a.listener = ln

	if a.MetricsServer != nil {
		mln, err := net.Listen("tcp", a.MetricsServer.Addr)
		if err != nil {
			_ = ln.Close()
			return errors.Join(fmt.Errorf("failed to listen on %s: %w", a.MetricsServer.Addr, err), a.Resources.Stop(ctx))
		}
		a.metricsListener = mln
	}

	a.Logger.InfoContext(ctx, "Application started", slog.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound HTTP address, or nil before Start
func (a *Application) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// MetricsAddr returns the bound metrics address, or nil when metrics are off
func (a *Application) MetricsAddr() net.Addr {
	if a.metricsListener == nil {
		return nil
	}
	return a.metricsListener.Addr()
}

// Serve serves on the listeners bound by Start until ctx ends or a server
// fails, then shuts down within SHUTDOWN_TIMEOUT
func (a *Application) Serve(ctx context.Context) error {
	if a.listener == nil {
		return errors.New("application not started")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(a.Server, a.listener)
	})
	if a.MetricsServer != nil {
		g.Go(func() error {
			return serve(a.MetricsServer, a.metricsListener)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.ShutdownTimeout)
		defer cancel()
		return a.Stop(shutdownCtx)
	})
	return g.Wait()
}

// Run starts the application and serves until ctx ends
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Serve(ctx)
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", ln.Addr(), err)
	}
	return nil
}

// Stop gracefully stops the application. Only the first call does any work.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.stopErr = a.stop(ctx)
	})
	return a.stopErr
}

func (a *Application) stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	a.WebSocket.Close()

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if a.RateLimiter != nil {
		a.RateLimiter.Stop()
	}

	if err := a.Resources.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("resources: %w", err))
	}

	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	err := errors.Join(errs...)
	if err != nil {
		a.Logger.ErrorContext(ctx, "Application shutdown finished with errors", slog.String("error", err.Error()))
		return err
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}
