package output

import "go.uber.org/fx"

var Module = fx.Module("output",
	fx.Provide(NewWriter),
)
