package guru

import "go.uber.org/fx"

var Module = fx.Module("guru.client",
	fx.Provide(NewClient),
)
