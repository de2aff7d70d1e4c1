package accesslog

import (
	"context"

	"github.com/smallbiznis/billingportal/internal/accesslog/domain"
	"github.com/smallbiznis/billingportal/internal/accesslog/repository"
	"github.com/smallbiznis/billingportal/internal/accesslog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("accesslog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.ConfigFrom),
	fx.Provide(service.NewRecorder),
	fx.Provide(func(r *service.Recorder) domain.Recorder { return r }),
	fx.Invoke(runRecorder),
)

func runRecorder(lc fx.Lifecycle, recorder *service.Recorder) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			recorder.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return recorder.Stop(ctx)
		},
	})
}
