package documents

import (
	"github.com/smallbiznis/billingportal/internal/customerref"
	"github.com/smallbiznis/billingportal/internal/documents/service"
	"go.uber.org/fx"
)

var Module = fx.Module("documents.service",
	fx.Provide(func(m *customerref.Mapper) service.CustomerMapper { return m }),
	fx.Provide(service.New),
)
