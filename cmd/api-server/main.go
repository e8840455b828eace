package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"

	"github.com/clinivo/consult-scheduling/internal/api"
	"github.com/clinivo/consult-scheduling/internal/appointment"
	"github.com/clinivo/consult-scheduling/internal/config"
	"github.com/clinivo/consult-scheduling/internal/db"
	"github.com/clinivo/consult-scheduling/internal/logging"
	"github.com/clinivo/consult-scheduling/internal/metrics"
	"github.com/clinivo/consult-scheduling/internal/notify"
	"github.com/clinivo/consult-scheduling/internal/patient"
	redisclient "github.com/clinivo/consult-scheduling/internal/redis"
	"github.com/clinivo/consult-scheduling/internal/slot"
	"github.com/clinivo/consult-scheduling/internal/visit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	m := metrics.New(nil)

	var (
		s3Client  *s3.Client
		sesClient *sesv2.Client
	)
	if cfg.S3Bucket != "" || cfg.SESFromEmail != "" {
		awsCtx, cancelAWS := context.WithTimeout(rootCtx, 10*time.Second)
		awsCfg, err := awsconfig.LoadDefaultConfig(awsCtx, awsconfig.WithRegion(cfg.S3Region))
		cancelAWS()
		if err != nil {
			log.Fatal().Err(err).Msg("aws config error")
		}
		if cfg.S3Bucket != "" {
			s3Client = s3.NewFromConfig(awsCfg)
		}
		if cfg.SESFromEmail != "" {
			sesClient = sesv2.NewFromConfig(awsCfg)
		}
	}

	var attachmentStore visit.AttachmentStore
	if s3Client != nil {
		attachmentStore = visit.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3BaseURL, log)
		log.Info().Str("bucket", cfg.S3Bucket).Msg("lab report storage enabled")
	} else {
		attachmentStore = visit.NoopStore{}
		log.Warn().Msg("S3_BUCKET not set, lab report uploads disabled")
	}

	var emailSender notify.EmailSender
	if sesClient != nil {
		emailSender = notify.NewSESSender(sesClient, cfg.SESFromEmail, cfg.SESFromName, log)
		log.Info().Str("from", cfg.SESFromEmail).Msg("email notifications enabled")
	} else {
		log.Warn().Msg("SES_FROM_EMAIL not set, email notifications disabled")
	}
	notifier := notify.NewService(emailSender, log)

	slotRepo := slot.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)
	apptRepo := appointment.NewPgRepository(pgPool)
	visitRepo := visit.NewPgRepository(pgPool)

	slotSvc := slot.NewService(slotRepo, locker, log)
	resolver := patient.NewResolver(patientRepo, log)
	apptSvc := appointment.NewService(pgPool, apptRepo, slotRepo, resolver, locker, notifier, m, log)
	visitMgr := visit.NewManager(pgPool, visitRepo, apptSvc, attachmentStore, m, log)

	router := api.NewRouter(api.Deps{
		Slots:           slotSvc,
		Appointments:    apptSvc,
		Visits:          visitMgr,
		Health:          api.NewHealthHandler(pgPool, rdb),
		Logger:          log,
		JWTSecret:       cfg.JWTSecret,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("api-server stopped")
}
