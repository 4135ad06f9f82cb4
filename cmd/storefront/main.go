package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/telemetry"
)

func main() {
	var help bool
	var baseURL string
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.BoolVar(&help, "h", false, "Show help message")
	flag.StringVar(&baseURL, "api", "", "Shop API base URL (overrides STOREFRONT_API_URL)")
	flag.Parse()

	if help || flag.NArg() == 0 {
		showHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}

	err = run(ctx, cfg, flag.Args())
	if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
		slog.Error("failed to flush telemetry", "error", shutdownErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string) error {
	store, err := cache.MakeCache(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	a, err := newApp(cfg, store, os.Stdout)
	if err != nil {
		return err
	}
	if a.session.Restore(ctx) {
		slog.DebugContext(ctx, "restored session", "user", a.session.User().ID)
	}
	return a.dispatch(ctx, args)
}

func showHelp() {
	fmt.Println("storefront - shop from the command line")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  storefront [flags] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, name := range commandOrder {
		fmt.Printf("  %s\n", commands[name].usage)
	}
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -api URL     Shop API base URL (overrides STOREFRONT_API_URL)")
	fmt.Println("  -h, -help    Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  STOREFRONT_API_URL, STOREFRONT_API_TIMEOUT, STOREFRONT_API_RETRIES")
	fmt.Println("  STOREFRONT_CACHE_DIR, STOREFRONT_SESSION_PASSPHRASE, STOREFRONT_CURRENCY")
	fmt.Println("  STOREFRONT_SEQUENCE_RESPONSES, STOREFRONT_LOG_LEVEL, OTEL_EXPORTER_OTLP_ENDPOINT")
	fmt.Println("  AZURE_STORAGE_ACCOUNT_NAME, AZURE_STORAGE_PRIMARY_ACCOUNT_KEY, AZURE_STORAGE_CONTAINER")
	fmt.Println("  STOREFRONT_LOG_BLOB_PREFIX")
}
