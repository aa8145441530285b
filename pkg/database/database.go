package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/dineflow/config"
)

// InitDB 根据配置打开数据库连接（postgres 生产 / sqlite 本地与测试）
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         glogger.Default.LogMode(glogger.Silent),
		TranslateError: true,
	}
	switch cfg.Database.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.Database.DSN), gcfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database.DSN), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
