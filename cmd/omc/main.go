// Command omc is the OpinionMarketCap client engine. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and starts the
// application in the configured mode.
//
//	omc [-config omc.toml] [-print-config]
//	omc encrypt-key -out key.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/app"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/config"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/crypto"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "encrypt-key" {
		if err := encryptKey(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt-key: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", "omc.toml", "path to configuration file")
	printConfig := flag.Bool("print-config", false, "print the effective configuration with secrets redacted and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if *printConfig {
		redacted := config.RedactedConfig(cfg)
		if err := toml.NewEncoder(os.Stdout).Encode(redacted); err != nil {
			fmt.Fprintf(os.Stderr, "print-config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("omc starting",
		slog.String("mode", cfg.Mode),
		slog.String("network", cfg.Network.Active),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		application.Close()
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger.Info("omc stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// encryptKey seals OMC_WALLET_PRIVATE_KEY with OMC_WALLET_KEY_PASSWORD so the
// raw key never has to sit in config.
func encryptKey(args []string) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ContinueOnError)
	out := fs.String("out", "key.json", "path of the encrypted key file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	keyHex := os.Getenv("OMC_WALLET_PRIVATE_KEY")
	password := os.Getenv("OMC_WALLET_KEY_PASSWORD")
	if keyHex == "" || password == "" {
		return fmt.Errorf("set OMC_WALLET_PRIVATE_KEY and OMC_WALLET_KEY_PASSWORD")
	}
	data, err := crypto.EncryptKey(keyHex, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}
