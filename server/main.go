package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blackjack-backend/server/auth"
	"blackjack-backend/server/feed"
	"blackjack-backend/server/game"
	"blackjack-backend/server/store"
	"blackjack-backend/server/wallet"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `short:"c" default:"blackjack.hcl" help:"HCL config file (defaults apply when missing)"`

	Serve   ServeCmd   `cmd:"" help:"Run the blackjack HTTP API"`
	Migrate MigrateCmd `cmd:"" help:"Apply the Postgres schema"`
	Play    PlayCmd    `cmd:"" help:"Play a local table in the terminal"`
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blackjack"),
		kong.Description("Single-player blackjack backend"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "blackjack",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func loadConfig(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := feed.NewHub(logger)
	api := &API{
		Game:        game.NewService(st, logger, game.WithPublisher(hub)),
		Wallet:      wallet.New(st, nil, nil, logger),
		Feed:        hub,
		Validator:   newValidator(cfg),
		AdminSecret: cfg.Auth.AdminSecret,
		Logger:      logger,
	}
	if cfg.Auth.Mode == "header" {
		logger.Warn("header auth trusts X-Account-Address; do not expose publicly")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           Router(api),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore uses Postgres when a database url is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *Config, logger *log.Logger) (store.Store, error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database url; using in-memory store")
		return store.NewMemory(), nil
	}
	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrated")
	}
	return db, nil
}

func newValidator(cfg *Config) auth.Validator {
	if cfg.Auth.Mode == "http" {
		return auth.NewHTTPValidator(cfg.Auth.URL, cfg.Auth.AdminSecret)
	}
	return auth.HeaderValidator{}
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.LogLevel)
	if cfg.Database.URL == "" {
		return errors.New("migrate needs DATABASE_URL or database.url")
	}
	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("migrated")
	return nil
}
