package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nurpe/freight-booking/internal/auth"
	"github.com/nurpe/freight-booking/internal/config"
	"github.com/nurpe/freight-booking/internal/db"
	"github.com/nurpe/freight-booking/internal/events"
	"github.com/nurpe/freight-booking/internal/excel"
	httphandler "github.com/nurpe/freight-booking/internal/http"
	"github.com/nurpe/freight-booking/internal/http/middleware"
	"github.com/nurpe/freight-booking/internal/logger"
	"github.com/nurpe/freight-booking/internal/metrics"
	"github.com/nurpe/freight-booking/internal/pdf"
	"github.com/nurpe/freight-booking/internal/repository"
	"github.com/nurpe/freight-booking/internal/service"
	"github.com/nurpe/freight-booking/internal/shipmentno"
	"github.com/nurpe/freight-booking/internal/storage"
	"github.com/nurpe/freight-booking/internal/terms"
)

type eventSink interface {
	service.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	termsDoc, err := terms.Load(cfg.Booking.TermsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Booking.TermsPath).Msg("failed to load terms and conditions")
	}

	store, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init object storage")
	}

	var publisher eventSink = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka)
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, shipment events are disabled")
	}
	defer publisher.Close()

	var appMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		appMetrics = metrics.New()
	}

	shipmentRepo := repository.NewShipmentRepository(database)
	userRepo := repository.NewUserRepository(database)
	accountRepo := repository.NewAccountRepository(database)
	documentRepo := repository.NewDocumentRepository(database)

	numbers := shipmentno.NewGenerator(shipmentRepo, cfg.Booking.ShipmentNumberMaxAttempts)
	shipmentService := service.NewShipmentService(shipmentRepo, accountRepo, userRepo, documentRepo, numbers, log)
	bookingService := service.NewBookingService(service.BookingDeps{
		Shipments: shipmentRepo,
		Users:     userRepo,
		Documents: documentRepo,
		Renderer:  pdf.NewGenerator(cfg.Booking.TemplateDir),
		Storage:   store,
		Events:    publisher,
		Metrics:   appMetrics,
		Terms:     termsDoc,
		Log:       log,
	}, service.BookingOptions{
		TemplateName:  cfg.Booking.TemplateName,
		TempDir:       cfg.Booking.TempDir,
		RenderTimeout: cfg.Booking.RenderTimeout,
		UploadTimeout: cfg.Booking.UploadTimeout,
	})
	documentService := service.NewDocumentService(documentRepo, store, cfg.Storage.SignedURLTTL)
	reportService := service.NewReportService(shipmentRepo, userRepo, excel.NewGenerator())

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(shipmentService, bookingService, documentService, reportService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router, err := httphandler.NewRouter(handler, authMiddleware, httphandler.RouterOptions{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        appMetrics,
		Log:            log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Str("addr", addr).Msg("starting booking service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down booking service")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
