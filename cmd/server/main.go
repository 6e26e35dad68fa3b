package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/batch"
	"github.com/collisionworks/partspipe/internal/bms"
	"github.com/collisionworks/partspipe/internal/config"
	"github.com/collisionworks/partspipe/internal/errorreport"
	httpserver "github.com/collisionworks/partspipe/internal/interfaces/http"
	"github.com/collisionworks/partspipe/internal/pipeline"
	"github.com/collisionworks/partspipe/internal/repository"
	"github.com/collisionworks/partspipe/internal/sourcing"
	"github.com/collisionworks/partspipe/internal/validation"
	"github.com/collisionworks/partspipe/internal/vin"
	"github.com/collisionworks/partspipe/internal/worker"
	"github.com/collisionworks/partspipe/pkg/database"
	"github.com/collisionworks/partspipe/pkg/utils"
)

func main() {
	// Load .env before viper reads the environment
	_ = gotenv.Load()

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting collision estimate pipeline",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	estimateRepo := repository.NewEstimateRepository(db.DB, logger)
	errorRepo := repository.NewErrorReportRepository(db.DB, logger)

	// Error reporting
	reportStore := errorreport.NewStore()
	reporter := errorreport.NewReporter(reportStore, errorRepo, logger)
	exporter := errorreport.NewExporter(logger)

	// VIN decoder with optional remote provider
	var remote vin.RemoteProvider
	if cfg.VIN.RemoteURL != "" {
		remote = vin.NewHTTPProvider(cfg.VIN.RemoteURL, logger)
	}
	decoder := vin.NewDecoder(remote, vin.Config{
		RemoteTimeout: cfg.VIN.RemoteTimeout,
		CacheTTL:      cfg.VIN.CacheTTL,
	}, logger)

	// Vendor sourcing
	vendorRegistry := sourcing.NewVendorRegistry()
	for _, v := range cfg.Sourcing.Vendors {
		vendorRegistry.Register(sourcing.NewHTTPVendorProvider(v.ID, v.Endpoint, logger))
	}
	reliability := sourcing.NewStaticReliabilityStore(cfg.Sourcing.VendorReliability, 0.5)

	sourcingEngine := sourcing.NewEngine(vendorRegistry, reliability, sourcing.Options{
		VendorAllowList:    cfg.Sourcing.PreferredVendors,
		PerVendorTimeout:   cfg.Sourcing.PerVendorTimeout,
		DocumentBudget:     cfg.Sourcing.DocumentBudget,
		ApprovalThreshold:  cfg.Sourcing.ApprovalThresholdAmount,
		LowConfidenceFloor: cfg.Sourcing.LowConfidenceFloor,
		LineConcurrency:    cfg.Sourcing.LineConcurrency,
		QuoteCacheTTL:      cfg.Sourcing.QuoteCacheTTL,
		Weights: sourcing.ScoreWeights{
			Price:       cfg.Sourcing.ScoreWeights.Price,
			Reliability: cfg.Sourcing.ScoreWeights.Reliability,
			LeadTime:    cfg.Sourcing.ScoreWeights.LeadTime,
			Preference:  cfg.Sourcing.ScoreWeights.Preference,
		},
	}, logger)

	// Pipeline service
	parser := bms.NewParser(bms.Config{MaxDocumentBytes: cfg.Intake.MaxDocumentBytes}, logger)
	validator := validation.NewEngine(logger)

	pipelineSvc := pipeline.NewService(
		parser,
		validator,
		decoder,
		sourcingEngine,
		estimateRepo,
		reporter,
		pipeline.Options{
			EnableAutomatedSourcing: cfg.Sourcing.EnableAutomatedSourcing,
			EnhanceWithVINDecoding:  cfg.Sourcing.EnhanceWithVINDecoding,
			GenerateAutoPO:          cfg.Sourcing.GenerateAutoPO,
			ApprovalThreshold:       cfg.Sourcing.ApprovalThresholdAmount,
			BaseMarkupFraction:      cfg.Sourcing.BaseMarkupFraction,
		},
		logger,
	)

	// Batch orchestration
	batchRegistry := batch.NewRegistry(pipelineSvc, batch.Config{
		MaxBatchFiles:   cfg.Batch.MaxBatchFiles,
		FileConcurrency: cfg.Batch.FileConcurrency,
	}, logger)

	// HTTP server
	handlers := httpserver.NewHandlers(
		pipelineSvc,
		batchRegistry,
		batch.Options{
			PauseOnError:    cfg.Batch.PauseOnError,
			FileConcurrency: cfg.Batch.FileConcurrency,
		},
		reportStore,
		exporter,
		errorRepo,
		httpserver.IntakeLimits{
			MaxDocumentBytes:    cfg.Intake.MaxDocumentBytes,
			AllowedContentTypes: cfg.Intake.AllowedContentTypes,
		},
		logger,
	)

	server := httpserver.NewServer(httpserver.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	// Run until interrupted; Start shuts down gracefully on signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers
	workers := worker.NewManager(logger)
	workers.Register(worker.NewReportJanitor(reportStore, logger))
	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}
	defer workers.StopAll()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
