package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/lock"
	"github.com/smallbiznis/royalti/internal/logger"
	"github.com/smallbiznis/royalti/internal/metricspush"
	"github.com/smallbiznis/royalti/internal/migration"
	"github.com/smallbiznis/royalti/internal/observability"
	"github.com/smallbiznis/royalti/internal/scheduler"
	"github.com/smallbiznis/royalti/internal/server"
	"github.com/smallbiznis/royalti/internal/storage"
	"github.com/smallbiznis/royalti/pkg/db"
	"go.uber.org/fx"
)

func main() {
	boot, err := logger.NewFromConfig(config.Load())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = boot.Sync() }()

	app := fx.New(
		logger.WithFxEvents(boot),

		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		storage.Module,
		lock.Module,

		// HTTP API and the domain services behind it
		server.Module,

		// Ingestion workers and recovery sweep
		scheduler.Module,
		metricspush.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
