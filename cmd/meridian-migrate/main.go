// Package main is the entry point for the Meridian Identity database
// migration tool. It applies the embedded schema migrations for the
// configured driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/config"
	"github.com/prn-tf/meridian-identity/internal/repository/postgres"
	"github.com/prn-tf/meridian-identity/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// migrator is the slice of the database wrappers this tool needs.
type migrator interface {
	Migrate(ctx context.Context) error
	Version(ctx context.Context) (int, error)
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	switch command {
	case "version":
		fmt.Println("Meridian Identity Migration Tool")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up", "status":
		cfg := config.MustLoad(*configPath)
		logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := openDB(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if command == "up" {
			if err := db.Migrate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Migrations applied")
		}

		version, err := db.Version(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Driver: %s\n", cfg.Database.Driver)
		fmt.Printf("Schema version: %d\n", version)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// openDB connects to the configured database driver.
func openDB(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (migrator, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		sqliteCfg := sqlite.DefaultConfig(cfg.Database.Path)
		sqliteCfg.JournalMode = cfg.Database.JournalMode
		sqliteCfg.BusyTimeout = cfg.Database.BusyTimeout
		sqliteCfg.SynchronousMode = cfg.Database.SynchronousMode
		return sqlite.NewDB(ctx, sqliteCfg, logger)
	case "postgres":
		return postgres.NewDB(ctx, cfg.Database, logger)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

func printUsage() {
	fmt.Println(`Meridian Identity Migration Tool

Usage:
  meridian-migrate [-config path] <command>

Commands:
  up          Apply all pending migrations
  status      Show the current schema version
  version     Print version information
  help        Show this help message

Configuration:
  The database connection is read from the same config file and
  MERIDIAN_* environment variables the server uses.

Examples:
  meridian-migrate -config configs/config.yaml up
  meridian-migrate status`)
}
