// storefront/main.go

package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
	"github.com/norun9/microservices-demo-ambient/src/storefront/cartstore"
	"github.com/norun9/microservices-demo-ambient/src/storefront/catalog"
	"github.com/norun9/microservices-demo-ambient/src/storefront/config"
	"github.com/norun9/microservices-demo-ambient/src/storefront/logging"
	"github.com/norun9/microservices-demo-ambient/src/storefront/metrics"
	"github.com/norun9/microservices-demo-ambient/src/storefront/services"
	"github.com/norun9/microservices-demo-ambient/src/storefront/tracing"
)

func main() {
	os.Exit(start(os.Args[1:], os.Stdout))
}

// start runs the storefront and returns the process exit code. Deferred
// cleanup, such as flushing the log file, runs before the caller exits.
func start(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	configFile := fs.String("config", "", "optional YAML configuration file")
	envFile := fs.String("env-file", ".env", "optional dotenv file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		logrus.WithError(err).Error("failed to load configuration")
		return 1
	}

	log, logCloser, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}, stdout)
	if err != nil {
		logrus.WithError(err).Error("failed to initialize logging")
		return 1
	}
	defer logCloser.Close()

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("storefront stopped")
		return 1
	}
	return 0
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) tracing and otel metrics
	otelOpts := tracing.Options{
		Enabled:        cfg.Otel.Enabled,
		Exporter:       cfg.Otel.Exporter,
		Endpoint:       cfg.Otel.Endpoint,
		ServiceName:    cfg.Otel.ServiceName,
		MetricInterval: cfg.Otel.MetricInterval,
	}
	tp, err := tracing.InitTracerProvider(ctx, otelOpts)
	if err != nil {
		return err
	}
	mp, err := tracing.InitMeterProvider(ctx, otelOpts)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("error shutting down tracer provider")
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("error shutting down meter provider")
		}
	}()
	log.WithFields(logrus.Fields{
		"enabled":  cfg.Otel.Enabled,
		"exporter": cfg.Otel.Exporter,
	}).Info("tracer and meter providers initialized")

	// 2) cart storage
	storage, closeStorage, err := newStorage(cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()
	if err := storage.Initialize(ctx); err != nil {
		return errors.Wrap(err, "initialize cart storage")
	}
	codec, err := cartstore.CodecByName(cfg.Storage.Codec)
	if err != nil {
		return err
	}

	// 3) catalog
	var products catalog.Client
	switch cfg.Catalog.Source {
	case "memory":
		products = catalog.NewMemoryCatalog()
	default:
		c, err := catalog.NewHTTPClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, log, catalog.WithMeterProvider(mp))
		if err != nil {
			return err
		}
		products = c
	}

	// 4) sessions and HTTP
	m := metrics.New()
	sessions := services.NewSessions(services.SessionsConfig{
		Storage:        storage,
		Namespace:      cfg.Storage.Key,
		Codec:          codec,
		PersistTimeout: cfg.Storage.PersistTimeout,
		Catalog:        products,
		SearchDelay:    cfg.Search.Debounce,
		Listeners:      []cart.Listener{m.CartListener()},
		WrapPersister:  m.Persister,
		Log:            log,
	})
	m.ObserveSessions(sessions.Len)

	svc := services.NewCartService(sessions, products, storage, log)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      services.NewRouter(svc, services.WithMetrics(m.Middleware, m.Handler())),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// 5) gRPC health
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.GRPC.Addr)
	}
	grpcSrv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcSrv, services.NewHealthCheckService(storage, 0, log))

	errc := make(chan error, 2)
	go func() {
		log.WithField("addr", cfg.GRPC.Addr).Info("gRPC health server listening")
		errc <- grpcSrv.Serve(lis)
	}()
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("storefront HTTP server listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()
	go evictIdle(ctx, sessions, cfg.Session.IdleTimeout)

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, initiating graceful shutdown")
	case err := <-errc:
		if err != nil {
			log.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	grpcSrv.GracefulStop()
	return nil
}

func newStorage(cfg config.Config, log logrus.FieldLogger) (cartstore.Storage, func(), error) {
	switch cfg.Storage.Backend {
	case "redis":
		r := cartstore.NewRedisCartStore(cartstore.RedisConfig{
			Addr:        cfg.Storage.RedisAddr,
			Password:    cfg.Storage.RedisPassword,
			MaxAttempts: cfg.Storage.RedisMaxAttempts,
		}, log)
		log.WithField("addr", cfg.Storage.RedisAddr).Info("using RedisCartStore")
		return r, func() { _ = r.Close() }, nil
	case "file":
		log.WithField("dir", cfg.Storage.FileDir).Info("using FileCartStore")
		return cartstore.NewFileCartStore(cfg.Storage.FileDir, log), func() {}, nil
	case "memory":
		log.Info("using LocalCartStore")
		return cartstore.NewLocalCartStore(log), func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// evictIdle periodically drops sessions idle for longer than idle.
func evictIdle(ctx context.Context, sessions *services.Sessions, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Evict(idle)
		}
	}
}
