package auth

import (
	"github.com/smallbiznis/billingportal/internal/auth/repository"
	"github.com/smallbiznis/billingportal/internal/auth/service"
	"github.com/smallbiznis/billingportal/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	session.Module,
)
