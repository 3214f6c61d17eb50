package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spenzahq/webhook-relay/pkg/config"
	"github.com/spenzahq/webhook-relay/pkg/db"
	"github.com/spenzahq/webhook-relay/pkg/logger"
	"github.com/spenzahq/webhook-relay/pkg/migrate"
)

func main() {
	var (
		cmd = flag.String("cmd", "status", "goose command to run: up, up-by-one, down, redo, status, version")
		dir = flag.String("dir", migrate.DefaultDir, "directory holding the migration scripts")
	)
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to extract sql db handle", err)
		os.Exit(1)
	}

	switch *cmd {
	case "version":
		version, err := migrate.Version(sqlDB, cfg.DB.Driver)
		if err != nil {
			logg.Error(ctx, "failed to read migration version", err)
			os.Exit(1)
		}
		fmt.Printf("migration version: %d\n", version)
	case "up", "up-by-one", "down", "redo", "status":
		if err := migrate.Run(ctx, sqlDB, cfg.DB.Driver, *dir, *cmd, flag.Args()...); err != nil {
			logg.Error(logg.WithField(ctx, "command", *cmd), "migration command failed", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", *cmd)
		flag.Usage()
		os.Exit(2)
	}
}
