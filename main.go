package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/api"
	"github.com/quoteajob/quoteajob/internal/auth"
	"github.com/quoteajob/quoteajob/internal/cache"
	"github.com/quoteajob/quoteajob/internal/config"
	"github.com/quoteajob/quoteajob/internal/db"
	"github.com/quoteajob/quoteajob/internal/email"
	"github.com/quoteajob/quoteajob/internal/events"
	"github.com/quoteajob/quoteajob/internal/logger"
	"github.com/quoteajob/quoteajob/internal/services"
	"github.com/quoteajob/quoteajob/internal/storage"
	"github.com/quoteajob/quoteajob/internal/store"
	"github.com/quoteajob/quoteajob/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	var st store.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
		if err != nil {
			lg.Fatal("failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := db.DisconnectDB(mongoClient); err != nil {
				lg.Error("error disconnecting from MongoDB", zap.Error(err))
			}
		}()
		if err := db.EnsureIndexes(ctx, mongoDb); err != nil {
			lg.Fatal("failed to create indexes", zap.Error(err))
		}
		st = store.NewMongoStore(mongoClient, mongoDb)
	default:
		lg.Warn("using in-memory store; data is lost on exit")
		st = store.NewMemoryStore()
	}

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		lg.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			lg.Error("error disconnecting from Redis", zap.Error(err))
		}
	}()

	asynqClient := asynq.NewClient(cache.AsynqOpt(redisClient))
	defer func() { _ = asynqClient.Close() }()
	taskClient := tasks.NewClient(asynqClient)

	emailSender, err := setupEmailSender(ctx, cfg, redisClient, lg)
	if err != nil {
		lg.Fatal("failed to initialize email sender", zap.Error(err))
	}

	docStorage, err := setupDocumentStorage(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize document storage", zap.Error(err))
	}

	policy, err := auth.NewPasswordPolicy(cfg.PasswordRegexp)
	if err != nil {
		lg.Fatal("invalid PASSWORD_REGEXP", zap.Error(err))
	}

	// Initialize Services needed by handlers and/or task processor
	quoteService := services.NewQuoteService(st, lg, events.NewPublisher(redisClient), taskClient)
	svc := api.Services{
		Users: services.NewUserService(st, policy, taskClient, services.UserServiceConfig{
			JwtSecret:      cfg.JwtSecret,
			JwtTTL:         cfg.JwtTTL,
			EmailVerifyTTL: cfg.EmailVerifyTTL,
		}, lg),
		Jobs:          services.NewJobService(st, lg),
		Quotes:        quoteService,
		Profiles:      services.NewProfileService(st, docStorage, lg),
		Subscriptions: services.NewSubscriptionService(st, cfg.StripeWebhookSecret, cfg.WebhookTolerance, lg),
		Admin:         services.NewAdminService(st, taskClient, lg),
	}

	taskProcessor := tasks.NewTaskProcessor(tasks.ProcessorSettings{
		FromAddress:    cfg.SmtpFromAddress,
		AppName:        cfg.AppName,
		AppBaseURL:     cfg.AppBaseURL,
		JwtSecret:      cfg.JwtSecret,
		EmailVerifyTTL: cfg.EmailVerifyTTL,
	}, emailSender, st, st, quoteService, lg)

	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Service API always runs
	serviceSrv := &http.Server{
		Addr:              ":" + cfg.ServiceApiPort,
		Handler:           api.SetupServiceRouter(redisClient, shutdownChan, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serve(&wg, serviceSrv, "service API", lg)

	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server

	lg.Info("starting application", zap.String("mode", cfg.RunMode))

	apiMode := func() {
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           api.SetupRouter(ctx, cfg, svc, lg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		serve(&wg, mainApiSrv, "main API", lg)
	}

	bgMode := func() {
		backgroundTaskSrv = tasks.SetupServer(cache.AsynqOpt(redisClient), lg)
		lg.Info("background task server starting")
		// Start does not wait for OS signals, so a service API shutdown can stop it.
		if err := backgroundTaskSrv.Start(taskProcessor.Mux()); err != nil {
			lg.Fatal("background task server error", zap.Error(err))
		}
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		lg.Fatal("invalid run mode", zap.String("mode", cfg.RunMode))
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		lg.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		lg.Info("shutdown requested via service API")
	}
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		lg.Error("service API shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			lg.Error("main API shutdown error", zap.Error(err))
		}
	}
	if backgroundTaskSrv != nil {
		// Shutdown blocks until in-flight tasks have drained.
		backgroundTaskSrv.Shutdown()
		lg.Info("background task server stopped")
	}

	wg.Wait()
	lg.Info("server gracefully stopped")
}

func serve(wg *sync.WaitGroup, srv *http.Server, name string, lg *zap.Logger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		lg.Info("listening", zap.String("server", name), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("ListenAndServe error", zap.String("server", name), zap.Error(err))
		}
		lg.Info("server stopped", zap.String("server", name))
	}()
}

// setupEmailSender picks the primary sender and optionally mirrors every message to the
// LOG_EMAILS file.
func setupEmailSender(ctx context.Context, cfg *config.Config, rdb *redis.Client, lg *zap.Logger) (email.Sender, error) {
	var primary email.Sender
	switch {
	case cfg.MockServices:
		lg.Info("MOCK_SERVICES enabled: using Redis email sender")
		primary = email.NewRedisSender(rdb, cfg.SmtpFromAddress, lg)
	case cfg.EmailTransport == config.EmailTransportSES:
		sesSender, err := email.NewSESSender(ctx, email.SESSettings{
			Region:          cfg.AwsRegion,
			AccessKeyID:     cfg.AwsAccessKeyID,
			SecretAccessKey: cfg.AwsSecretAccessKey,
			From:            cfg.SmtpFromAddress,
		}, lg)
		if err != nil {
			return nil, err
		}
		primary = sesSender
	default:
		primary = email.NewSMTPSender(email.SMTPSettings{
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			Username: cfg.SmtpUsername,
			Password: cfg.SmtpPassword,
			From:     cfg.SmtpFromAddress,
		}, lg)
	}

	composite := email.NewCompositeSender(primary)
	if cfg.LogEmailsPath != "" {
		fileSender, err := email.NewFileSender(cfg.LogEmailsPath)
		if err != nil {
			lg.Warn("failed to initialize file email sender; proceeding without it",
				zap.String("path", cfg.LogEmailsPath), zap.Error(err))
		} else {
			composite.AddSender(fileSender)
			lg.Info("file email logger enabled", zap.String("path", cfg.LogEmailsPath))
		}
	}
	return composite, nil
}

func setupDocumentStorage(ctx context.Context, cfg *config.Config, lg *zap.Logger) (storage.IDocumentStorage, error) {
	if cfg.MockServices || cfg.AwsS3Bucket == "" {
		lg.Info("using mock document storage")
		return &storage.MockStorage{BaseURL: cfg.AppBaseURL + "/mock-uploads"}, nil
	}
	return storage.NewS3Storage(ctx, storage.S3Settings{
		Region:          cfg.AwsRegion,
		AccessKeyID:     cfg.AwsAccessKeyID,
		SecretAccessKey: cfg.AwsSecretAccessKey,
		Bucket:          cfg.AwsS3Bucket,
		URLTTL:          cfg.UploadURLTTL,
	})
}
