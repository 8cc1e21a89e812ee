package main

import (
	"github.com/smallbiznis/kpireport/internal/clock"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/kpi"
	"github.com/smallbiznis/kpireport/internal/observability"
	"github.com/smallbiznis/kpireport/internal/server"
	"github.com/smallbiznis/kpireport/internal/subscription"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,

		subscription.Module,
		kpi.Module,

		server.Module,
	)
	app.Run()
}
