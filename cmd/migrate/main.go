package main

import (
	"errors"
	"flag"
	"log"

	"nextspay/internal/pkg/config"
	"nextspay/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("path", "migrations", "migrations directory")
	action := flag.String("action", "up", "up | down | force | version")
	version := flag.Int("version", 0, "target version for force")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Debug: cfg.App.Debug})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	m, err := migrate.New("file://"+*dir, cfg.Database.URL())
	if err != nil {
		zl.Fatal("open migrations failed", zap.Error(err))
	}
	defer m.Close()

	switch *action {
	case "up":
		err = up(m, zl)
	case "down":
		err = m.Down()
	case "force":
		err = m.Force(*version)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			zl.Fatal("read version failed", zap.Error(verr))
		}
		zl.Info("current version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return
	default:
		zl.Fatal("unknown action", zap.String("action", *action))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		zl.Fatal("migration failed", zap.String("action", *action), zap.Error(err))
	}
	zl.Info("migration successful", zap.String("action", *action))
}

// up 遇到 dirty 状态时回退到出错版本的上一版再重试
func up(m *migrate.Migrate, zl *zap.Logger) error {
	err := m.Up()
	var dirty migrate.ErrDirty
	if !errors.As(err, &dirty) {
		return err
	}
	zl.Warn("database is dirty, forcing previous version", zap.Int("version", dirty.Version))
	if err := m.Force(dirty.Version - 1); err != nil {
		return err
	}
	return m.Up()
}
