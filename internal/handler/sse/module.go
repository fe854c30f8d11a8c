package sse

import "go.uber.org/fx"

var Module = fx.Module("sse",
	fx.Provide(NewSSEHandler),
)
