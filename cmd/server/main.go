package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/hookbridge/hookbridge/internal/adapter/coordinator"
	"github.com/hookbridge/hookbridge/internal/adapter/notifier"
	"github.com/hookbridge/hookbridge/internal/adapter/store"
	"github.com/hookbridge/hookbridge/internal/adapter/vcs"
	"github.com/hookbridge/hookbridge/internal/handler"
	"github.com/hookbridge/hookbridge/internal/middleware"
	"github.com/hookbridge/hookbridge/internal/port"
	"github.com/hookbridge/hookbridge/internal/service"
	"github.com/hookbridge/hookbridge/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Configuration ────────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// ── Logging ──────────────────────────────────────────────────────────
	closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	slog.Info("starting hookbridge",
		"port", cfg.Port,
		"mirror_dir", cfg.MirrorDir,
		"provider", cfg.ProviderHost,
		"master", cfg.CoordinatorAddr,
	)

	// ── Delivery ledger (optional) ───────────────────────────────────────
	var ledger port.DeliveryLedger
	var pgLedger *store.PostgresLedger
	if cfg.DatabaseURL != "" {
		pgLedger, err = store.NewPostgresLedger(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pgLedger.Close()

		if err := pgLedger.EnsureSchema(context.Background()); err != nil {
			slog.Error("failed to prepare ledger schema", "error", err)
			os.Exit(1)
		}
		ledger = pgLedger
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	mirror := vcs.NewMirrorManager(cfg.MirrorDir, cfg.ProviderHost, cfg.MirrorTimeout)
	deliverer := coordinator.NewClient(cfg.CoordinatorAddr, cfg.ChangeUser, cfg.ChangePassword, cfg.DeliveryTimeout)

	var notify port.Notifier
	if cfg.NotifyURL != "" {
		notify = notifier.NewChatNotifier(cfg.NotifyURL, cfg.NotifyMode)
	}

	// ── Pipeline ─────────────────────────────────────────────────────────
	pipeline := service.NewPipeline(mirror, deliverer, ledger, notify)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if pgLedger != nil {
		app.Use(middleware.AuditMiddleware(pgLedger))
	}

	webhookHandler := handler.NewWebhookHandler(pipeline, cfg.WebhookSecret)
	webhookHandler.Register(app)

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "app": cfg.AppName})
	})

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("listening for provider hooks", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// setupLogging installs the default slog logger per config: text handler at
// the configured level, to a log file when one is given.
func setupLogging(cfg *config.Config) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeLog = func() { f.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closeLog, nil
}
