package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billingportal/internal/clock"
	"github.com/smallbiznis/billingportal/internal/config"
	"github.com/smallbiznis/billingportal/internal/migration"
	"github.com/smallbiznis/billingportal/internal/observability"
	"github.com/smallbiznis/billingportal/internal/server"
	"github.com/smallbiznis/billingportal/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface plus auth, profile, gateway, access log and documents
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
