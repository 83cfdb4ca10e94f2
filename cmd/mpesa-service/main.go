package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/LavaJover/shvark-mpesa-service/internal/config"
	"github.com/LavaJover/shvark-mpesa-service/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "mpesa-service",
		Short:   "M-Pesa Mozambique transaction service",
		Version: Version,
		// serve is the default command
		RunE: runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env, the config file and sets the process logger.
func loadConfig() *config.MpesaConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	cfg := config.MustLoad()
	slog.SetDefault(logger.NewSlogLogger(cfg.LogConfig))
	return cfg
}
