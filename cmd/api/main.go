package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"securedrive/internal/auth"
	"securedrive/internal/config"
	"securedrive/internal/logger"
	"securedrive/internal/object"
	"securedrive/internal/presigned"
	"securedrive/internal/server"
	"securedrive/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logg, err := logger.Init()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()

	cfg, err := config.Load()
	if err != nil {
		logg.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := storage.Migrate(ctx, cfg.Postgres); err != nil {
		logg.Fatal("apply migrations", zap.Error(err))
	}

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logg.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logg.Fatal("connect minio", zap.Error(err))
	}

	if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
		logg.Fatal("ensure bucket", zap.Error(err))
	}

	authRepo := auth.NewRepository(dbPool)
	authService := auth.NewService(authRepo, cfg.Auth)

	objectRepo := object.NewRepository(dbPool)
	objectStore := object.NewMinIOStore(minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region)
	objectService := object.NewService(objectRepo, objectStore, cfg.MinIO.Bucket, cfg.Upload.SpoolDir, cfg.Upload.MaxFileSize, logg)

	presignedService := presigned.NewService(minioClient, cfg.MinIO.Bucket, cfg.MinIO.PresignTTL)

	router := server.NewRouter(server.Dependencies{
		Config:           cfg,
		Logger:           logg,
		DB:               dbPool,
		ObjectStore:      minioClient,
		AuthService:      authService,
		ObjectService:    objectService,
		PresignedService: presignedService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("Secure Drive API listening", zap.String("address", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logg.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}
}
