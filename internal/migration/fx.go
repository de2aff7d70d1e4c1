package migration

import (
	"strings"

	"github.com/smallbiznis/billingportal/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		dialect := strings.ToLower(strings.TrimSpace(cfg.DBType))
		log = log.Named("migration")

		if dialect != "" && dialect != "postgres" {
			log.Info("applying schema from models", zap.String("dialect", dialect))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("applying embedded migrations")
		return RunMigrations(sqlDB)
	}),
)
