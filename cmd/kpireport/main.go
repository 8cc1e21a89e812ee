package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kpireport/internal/clock"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/dashboard"
	"github.com/smallbiznis/kpireport/internal/guru"
	"github.com/smallbiznis/kpireport/internal/kpi"
	"github.com/smallbiznis/kpireport/internal/observability"
	"github.com/smallbiznis/kpireport/internal/output"
	"github.com/smallbiznis/kpireport/internal/pipeline"
	"github.com/smallbiznis/kpireport/internal/providers"
	"github.com/smallbiznis/kpireport/internal/report"
	"github.com/smallbiznis/kpireport/internal/subscription"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,

		subscription.Module,
		report.Module,
		kpi.Module,
		guru.Module,
		output.Module,
		dashboard.Module,
		providers.Module,

		// Runs once, then shuts the app down with the run's exit code.
		pipeline.Module,
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
