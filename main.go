package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/rama-kairi/minios/internal/config"
	"github.com/rama-kairi/minios/internal/database"
	"github.com/rama-kairi/minios/internal/logger"
	"github.com/rama-kairi/minios/internal/shell"
)

func main() {
	// MiniOS always exits with success status; failures are reported on stderr
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func run() error {
	var configFile, usersFile, writeConfig string
	var debugMode bool

	flagSet := pflag.NewFlagSet("minios", pflag.ContinueOnError)
	flagSet.StringVar(&configFile, "config", "", "path to configuration file (JSON or YAML)")
	flagSet.StringVar(&usersFile, "users-file", "", "path to the credential file (default: users.json)")
	flagSet.BoolVar(&debugMode, "debug", false, "enable debug logging")
	flagSet.StringVar(&writeConfig, "write-config", "", "write the effective configuration as JSON to this path and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	// Load configuration
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flags override file and environment settings
	if debugMode {
		cfg.App.Debug = true
		cfg.Logging.Level = "debug"
	}
	if usersFile != "" {
		cfg.Credentials.UsersFile = usersFile
	}

	if writeConfig != "" {
		if err := cfg.SaveToFile(writeConfig); err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}
		fmt.Printf("Configuration written to %s\n", writeConfig)
		return nil
	}

	// The console owns stdout; stray library logging goes to stderr
	log.SetOutput(os.Stderr)

	appLogger, err := logger.NewLogger(&cfg.Logging, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting MiniOS", map[string]interface{}{
		"version":    cfg.App.Version,
		"debug":      cfg.App.Debug,
		"users_file": cfg.Credentials.UsersFile,
	})

	// Initialize the audit journal if enabled
	var db *database.DB
	if cfg.Database.Enable {
		db, err = database.NewDB(cfg.Database.DataDir)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if err := db.HealthCheck(); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}

		appLogger.Info("Database initialized successfully", map[string]interface{}{
			"path": db.Path(),
		})
	}

	sh, err := shell.New(shell.Options{
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
		Logger: appLogger,
		DB:     db,
	})
	if err != nil {
		return err
	}

	return sh.Run(context.Background())
}
