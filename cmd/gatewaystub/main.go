// Command gatewaystub serves canned billing documents in place of the
// external document gateway for local development.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/smallbiznis/billingportal/internal/config"
	"github.com/smallbiznis/billingportal/internal/gateway/stub"
	"github.com/smallbiznis/billingportal/internal/observability"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newStore),
		fx.Provide(newStubServer),
		fx.Invoke(run),
	)
	app.Run()
}

func newStore(log *zap.Logger) (*stub.Store, error) {
	path := strings.TrimSpace(os.Getenv("GATEWAY_STUB_FIXTURES"))
	if path == "" {
		log.Info("serving built-in fixtures")
		return stub.NewStore(stub.DefaultFixtures()), nil
	}
	log.Info("loading fixtures", zap.String("path", path))
	return stub.LoadStore(path)
}

func newStubServer(store *stub.Store, cfg config.Config, log *zap.Logger) *stub.Server {
	return stub.NewServer(store, cfg.Gateway.ServiceToken, log)
}

func run(lc fx.Lifecycle, s *stub.Server, log *zap.Logger) {
	addr := strings.TrimSpace(os.Getenv("GATEWAY_STUB_ADDR"))
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("gateway stub listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("gateway stub stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
