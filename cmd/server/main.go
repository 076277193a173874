package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/kiyotaka-koji-0/Diligental/pkg/auth"
	"github.com/kiyotaka-koji-0/Diligental/pkg/database"
	"github.com/kiyotaka-koji-0/Diligental/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	// Local development convenience; missing .env is fine.
	godotenv.Load()

	configPath := flag.String("config", "~/.diligental/config.toml", "Path to config file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Diligental realtime server %s\n", Version)
		os.Exit(0)
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != 0 {
		config.Server.HTTPPort = *port
	}
	if *dbPath != "" {
		config.Server.DatabasePath = *dbPath
	}
	if config.Auth.JWTSecret == "" {
		log.Fatal().Msg("no JWT secret configured (set DILIGENTAL_JWT_SECRET or auth.jwt_secret)")
	}

	databasePath, err := config.GetDatabasePath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve database path")
	}

	db, err := database.Open(databasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", databasePath).Msg("failed to open database")
	}

	srv := server.NewServer(db, auth.NewVerifier(config.Auth.JWTSecret), config, log)
	srv.SetMetrics(server.NewMetrics())

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Stringer("signal", sig).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
