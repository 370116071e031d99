package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("ISLAND_CONFIG"), "Path to TOML config file (default: built-in defaults)")
	addr := flag.String("addr", os.Getenv("ISLAND_ADDR"), "HTTP listen address (overrides config)")
	arenaPath := flag.String("arena", "", "Path to arena layout YAML (overrides config)")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt hash for an admin password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg := defaults()
	if *configPath != "" {
		loaded, err := Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *arenaPath != "" {
		cfg.Game.ArenaFile = *arenaPath
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	layout := DefaultLayout()
	if cfg.Game.ArenaFile != "" {
		l, err := LoadLayout(cfg.Game.ArenaFile)
		if err != nil {
			return err
		}
		layout = l
	}
	arena, err := NewArena(layout)
	if err != nil {
		return fmt.Errorf("build arena: %w", err)
	}
	logger.Info("arena loaded",
		zap.Int("width", layout.Width),
		zap.Int("height", layout.Height),
		zap.Int("walls", len(layout.Walls)),
		zap.Int("zones", len(layout.Zones)))

	var journal *Journal
	if cfg.Journal.Enabled {
		db, err := OpenDB(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("fight journal: %w", err)
		}
		defer db.Close()
		journal = NewJournal(db, cfg.Journal, logger.Named("journal"))
		defer journal.Stop()
		logger.Info("fight journal enabled", zap.String("path", cfg.Journal.Path))
	}

	auth, err := NewAuth(cfg.Admin)
	if err != nil {
		return fmt.Errorf("admin auth: %w", err)
	}

	game := NewGame(cfg, arena, journal, logger.Named("game"))
	go game.Run(ctx)

	hub := NewHub(game, auth, journal, cfg.Server, logger.Named("hub"))
	go hub.Run(ctx)

	server := &http.Server{Addr: cfg.Server.Addr, Handler: SetupRoutes(hub, cfg.Server)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.Int("tick_rate", cfg.Game.TickRate),
			zap.Bool("admin", auth.Enabled()))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
