package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/bot"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/commands"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/config"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/db"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/game"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/lookup"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage/boltstore"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage/mongostore"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

const (
	serviceName    = "telegram-group-keeper-bot"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command-line flags
	verbose := flag.Bool("v", false, "Enable verbose logging (LevelInfo)")
	veryVerbose := flag.Bool("vv", false, "Enable very verbose logging (LevelDebug)")
	flag.Parse()

	setLogLevel(*verbose, *veryVerbose)

	slog.Debug("main: Command-line flags parsed", "verbose", *verbose, "very_verbose", *veryVerbose)

	if err := godotenv.Load(); err != nil {
		slog.Warn("main: Failed to load .env file", "error", err)
	} else {
		slog.Debug("main: Environment variables loaded from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("main: Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("main: Bot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("main: Bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.InitTracing(cfg.OTLPEndpoint, serviceName, serviceVersion)
	if err != nil {
		slog.Warn("main: Tracing unavailable", "error", err)
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	slog.Debug("main: Initializing storage", "backend", cfg.Backend)
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize %s storage: %w", cfg.Backend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("main: Failed to close storage", "error", err)
		}
	}()
	slog.Info("main: Storage initialized", "backend", cfg.Backend)

	if err := seedPrefix(ctx, store, cfg.Prefix); err != nil {
		return err
	}

	slog.Debug("main: Initializing bot")
	api, err := bot.New(ctx, cfg.TelegramToken, bot.Options{Timeout: cfg.OutboundTimeout})
	if err != nil {
		return fmt.Errorf("initialize bot: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.OutboundTimeout}
	deps := commands.Deps{
		Store:     store,
		Transport: api,
		Words: game.FallbackSource{
			Primary:  lookup.NewRandomWords(cfg.WordAPIURL, httpClient),
			Fallback: game.NewListSource(),
		},
		Anime:         lookup.NewJikan("", httpClient),
		OwnerID:       cfg.OwnerID,
		RoundTime:     cfg.RoundTimeout,
		LookupTimeout: cfg.OutboundTimeout,
	}
	if cfg.OMDbAPIKey != "" {
		deps.Movies = lookup.NewOMDb(cfg.OMDbAPIKey, "", httpClient)
	}
	handlers := commands.New(deps)

	router, err := handlers.Router()
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	locks := dispatch.NewChatLocks()
	pipeline := dispatch.NewPipeline(store, api, router, locks, dispatch.Options{
		OwnerID:       cfg.OwnerID,
		ControlChatID: cfg.ControlChat(),
	})
	if cfg.ControlChat() == 0 {
		slog.Warn("main: No OWNER_ID or CONTROL_CHAT_ID configured, approval requests will be dropped")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(ctx, pipeline)
	})
	g.Go(func() error {
		return handlers.RunRoundTimer(ctx, locks, cfg.RoundTick)
	})
	if cfg.HTTPAddr != "" {
		g.Go(func() error {
			return telemetry.Serve(ctx, cfg.HTTPAddr, func(ctx context.Context) error {
				_, err := store.LoadSnapshot(ctx)
				return err
			})
		})
	}

	slog.Info("main: Bot started", "prefix", cfg.Prefix, "owner_id", cfg.OwnerID)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return storage.New(db.DialectSQLite, cfg.DatabasePath)
	case config.BackendPostgres:
		return storage.New(db.DialectPostgres, cfg.DatabaseDSN)
	case config.BackendBolt:
		return boltstore.Open(cfg.BoltPath)
	case config.BackendMongo:
		return mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalid, cfg.Backend)
	}
}

// seedPrefix stores the configured prefix unless one was already changed at runtime.
func seedPrefix(ctx context.Context, store storage.Store, prefix string) error {
	if prefix == storage.DefaultPrefix {
		return nil
	}
	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if snap.Prefix != storage.DefaultPrefix {
		return nil
	}
	if err := store.SetPrefix(ctx, prefix); err != nil {
		return fmt.Errorf("store prefix: %w", err)
	}
	slog.Info("main: Prefix seeded from configuration", "prefix", prefix)
	return nil
}

// setLogLevel configures the logging level based on the provided flags
func setLogLevel(verbose, veryVerbose bool) {
	logLevel := slog.LevelWarn // Default level
	if veryVerbose {
		logLevel = slog.LevelDebug
	} else if verbose {
		logLevel = slog.LevelInfo
	}

	// Configure structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Debug("main: Log level set to", "level", logLevel.String())
}
