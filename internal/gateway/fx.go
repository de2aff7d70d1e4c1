package gateway

import (
	"github.com/smallbiznis/billingportal/internal/gateway/client"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.client",
	fx.Provide(client.New),
)
