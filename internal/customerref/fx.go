package customerref

import "go.uber.org/fx"

var Module = fx.Module("customerref",
	fx.Provide(NewMapper),
)
