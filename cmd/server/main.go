package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"reunitems-backend/api"
	"reunitems-backend/pkg/config"
	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/storage"
)

func main() {
	cfg := config.GetCached()

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.NewDatabase(database.DatabaseConfig{
		UseLocalDB:   cfg.UseLocalDB,
		LocalDataDir: cfg.LocalDataDir,
		PostgresDSN:  cfg.PostgresDSN,
		Debug:        cfg.Debug,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var store *storage.MinIOStorage
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err = storage.NewMinIOStorage(ctx, storage.Config{
			Endpoint:       cfg.MinioEndpoint,
			PublicEndpoint: cfg.MinioPublicEndpoint,
			AccessKey:      cfg.MinioAccessKey,
			SecretKey:      cfg.MinioSecretKey,
			Bucket:         cfg.MinioBucket,
			UseSSL:         cfg.MinioUseSSL,
		})
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("object storage unavailable, image uploads disabled")
			store = nil
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(cfg, db, store),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
