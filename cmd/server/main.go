package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/chuckfinca/image-collector/config"
	imagerepo "github.com/chuckfinca/image-collector/internal/repositories/images"
	versionrepo "github.com/chuckfinca/image-collector/internal/repositories/versions"
	"github.com/chuckfinca/image-collector/internal/services/extraction"
	imageservice "github.com/chuckfinca/image-collector/internal/services/images"
	"github.com/chuckfinca/image-collector/pkg/database"
	"github.com/chuckfinca/image-collector/pkg/events"
	"github.com/chuckfinca/image-collector/pkg/kafka"
	"github.com/chuckfinca/image-collector/pkg/logging"
	"github.com/chuckfinca/image-collector/pkg/middleware"
	"github.com/chuckfinca/image-collector/pkg/routes/health"
	imageroutes "github.com/chuckfinca/image-collector/pkg/routes/image"
	versionroutes "github.com/chuckfinca/image-collector/pkg/routes/version"
	"github.com/chuckfinca/image-collector/pkg/startup"
	"github.com/chuckfinca/image-collector/pkg/tracing"
	"github.com/chuckfinca/image-collector/pkg/tracing/exporters"
	"github.com/chuckfinca/image-collector/pkg/versioning"
)

const serviceVersion = "1.0.0"

type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string                 { return d.name }
func (d *dependency) DependsOn() []string             { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error { return d.start(ctx) }
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Config{}
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, flush := logging.New(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
	defer flush()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := initTracing(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}
	defer shutdownTracing()

	var (
		db       database.DB
		sqlxDB   *sqlx.DB
		producer *kafka.Producer
		server   *echo.Echo
		checker  *health.Checker
		sessions *versioning.SessionManager
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
				cfg.DatabaseName, cfg.DatabaseSSLMode)

			conn, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
			if err != nil {
				return err
			}
			conn.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			conn.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			conn.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

			driver, err := migratepg.WithInstance(conn.DB, &migratepg.Config{})
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
				return err
			}

			sqlxDB = conn
			db = database.NewDatabaseInstance(conn, logger)
			return nil
		},
		stop: func(_ context.Context) error {
			if sqlxDB == nil {
				return nil
			}
			return sqlxDB.Close()
		},
	})

	if cfg.KafkaEnabled {
		boot.AddDependency(&dependency{
			name: "kafka",
			start: func(_ context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			stop: func(_ context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	serverDeps := []string{"database"}
	if cfg.KafkaEnabled {
		serverDeps = append(serverDeps, "kafka")
	}

	boot.AddDependency(&dependency{
		name:      "http-server",
		dependsOn: serverDeps,
		start: func(_ context.Context) error {
			var err error
			server, checker, sessions, err = buildServer(cfg, db, producer, logger)
			if err != nil {
				return err
			}
			sessions.Start(context.Background())

			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if serveErr := server.Start(addr); serveErr != nil && serveErr != http.ErrServerClosed {
					logger.WithError(serveErr).Error("HTTP server stopped")
					os.Exit(1)
				}
			}()

			checker.SetReady(true)
			return nil
		},
		stop: func(ctx context.Context) error {
			if server == nil {
				return nil
			}
			checker.SetReady(false)
			sessions.Stop()
			return server.Shutdown(ctx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}
	logger.WithField("port", cfg.Port).Infof("%s listening on port %d", cfg.AppName, cfg.Port)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := boot.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
	}
}

// buildServer wires repositories, services, the DI container, and routes
func buildServer(cfg config.Config, db database.DB, producer *kafka.Producer, logger ectologger.Logger) (*echo.Echo, *health.Checker, *versioning.SessionManager, error) {
	var emitter *events.Emitter
	var versionEvents versioning.Events
	if producer != nil {
		emitter = events.NewEmitter(producer, logger)
		versionEvents = emitter
	}

	versionStore := versionrepo.NewRepository(db, logger)
	imageStore := imagerepo.NewRepository(db, logger)

	sessions := versioning.NewSessionManager(versionStore, versionEvents, cfg.SessionIdleTTL, logger)
	imageSvc := imageservice.NewService(imageStore, cfg.ImageDir, emitter, sessions, logger)

	extractionClient := extraction.NewClient(extraction.Config{
		Endpoint: cfg.ExtractionEndpoint,
		APIKey:   cfg.ExtractionAPIKey,
		ModelID:  cfg.ExtractionModelID,
		Timeout:  cfg.ExtractionTimeout,
	}, logger)
	extractionSvc := extraction.NewService(extractionClient, imageSvc, logger)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ectoinject.RegisterInstance[*versioning.SessionManager](container, sessions); err != nil {
		return nil, nil, nil, err
	}
	if err := ectoinject.RegisterInstance[*imageservice.Service](container, imageSvc); err != nil {
		return nil, nil, nil, err
	}
	if err := ectoinject.RegisterInstance[*extraction.Service](container, extractionSvc); err != nil {
		return nil, nil, nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(db, serviceVersion)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	imagesGroup := api.Group("/images")
	imageroutes.Register(imagesGroup)
	versionroutes.Register(imagesGroup)

	return e, checker, sessions, nil
}

func initTracing(ctx context.Context, cfg config.Config) (func(), error) {
	if !cfg.TracingEnabled {
		return func() {}, nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}
