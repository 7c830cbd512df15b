package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// Config holds all process configuration. Values come from environment
// variables (with defaults) and may be overridden by command-line flags.
// Immutable for the process lifetime.
type Config struct {
	// Server
	Port    string
	AppName string

	// Mirrors
	MirrorDir     string // must exist; never created by the service
	ProviderHost  string
	MirrorTimeout time.Duration

	// Build coordinator
	CoordinatorAddr string // host:port
	ChangeUser      string
	ChangePassword  string
	DeliveryTimeout time.Duration

	// Webhook
	WebhookSecret string // empty disables signature verification

	// Logging
	LogFile  string // empty = stderr
	LogLevel string // debug, info, warn, error

	// Build-result notifications
	NotifyURL  string // empty disables the notifier
	NotifyMode string // all, failing, problem

	// Delivery ledger
	DatabaseURL string // empty disables the ledger
}

// Load reads configuration from the environment and parses args as
// command-line overrides for the knobs operators change most often.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		Port:    envOrDefault("PORT", "4000"),
		AppName: envOrDefault("APP_NAME", "HookBridge"),

		MirrorDir:     envOrDefault("MIRROR_DIR", os.TempDir()),
		ProviderHost:  envOrDefault("PROVIDER_HOST", "github.com"),
		MirrorTimeout: envOrDefaultDuration("MIRROR_TIMEOUT", 10*time.Minute),

		CoordinatorAddr: envOrDefault("COORDINATOR_ADDR", "localhost:9989"),
		ChangeUser:      envOrDefault("CHANGE_USER", "change"),
		ChangePassword:  envOrDefault("CHANGE_PASSWORD", "changepw"),
		DeliveryTimeout: envOrDefaultDuration("DELIVERY_TIMEOUT", 30*time.Second),

		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		LogFile:  os.Getenv("LOG_FILE"),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),

		NotifyURL:  os.Getenv("NOTIFY_URL"),
		NotifyMode: envOrDefault("NOTIFY_MODE", "all"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	fs := pflag.NewFlagSet("hookbridge", pflag.ContinueOnError)
	fs.StringVarP(&cfg.MirrorDir, "dir", "d", cfg.MirrorDir, "directory the repository mirrors are stored in")
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "port the HTTP server listens on for the provider hook")
	fs.StringVarP(&cfg.CoordinatorAddr, "master", "m", cfg.CoordinatorAddr, "build master host and port, e.g. localhost:9989")
	fs.StringVarP(&cfg.ProviderHost, "github", "g", cfg.ProviderHost, "hostname of the repository provider")
	fs.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "path to save the log to (empty logs to stderr)")
	fs.StringVarP(&cfg.LogLevel, "level", "L", cfg.LogLevel, "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "ignoring invalid duration in %s: %q\n", key, v)
	}
	return fallback
}
