package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/agogsaas/vendorperf/internal/config"
	"github.com/agogsaas/vendorperf/internal/vendorperf/engine"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/handler"
	"github.com/agogsaas/vendorperf/internal/vendorperf/notify"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/agogsaas/vendorperf/internal/vendorperf/service"
	"github.com/agogsaas/vendorperf/internal/vendorperf/tenantlock"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "vendorperf",
		Short:         "Vendor performance scoring, tiering and alerting",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(recomputeCmd())
	rootCmd.AddCommand(reclassifyCmd())
	rootCmd.AddCommand(auditSweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	rdb      *redis.Client
	hub      *notify.Hub
	repos    *repository.Repositories
	services *handler.Services
}

// bootstrap loads config and wires storage, notification and services.
// withHub adds the in-process SSE hub, which only the server needs.
func bootstrap(withHub bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newApp(cfg, zapLogger, withHub)
}

func newApp(cfg *config.Config, zapLogger *zap.Logger, withHub bool) (*app, error) {
	db, err := initDatabase(cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: zapLogger,
		db:     db,
		repos:  repository.NewRepositories(db),
	}
	if cfg.Redis.Enabled {
		a.rdb = initRedis(cfg.Redis)
	}
	if withHub {
		a.hub = notify.NewHub(zapLogger)
	}

	alertSvc := service.NewAlertService(a.repos, zapLogger)
	alertSvc.SetWindows(cfg.Alerts.DedupWindow, cfg.Alerts.AuditLookahead)
	alertSvc.SetPublisher(a.publisher())

	tierSvc := service.NewTierService(a.repos, alertSvc, zapLogger)
	bands := engine.Bands{
		StrategicPromote: cfg.Tiers.StrategicPromote,
		StrategicDemote:  cfg.Tiers.StrategicDemote,
		PreferredPromote: cfg.Tiers.PreferredPromote,
		PreferredDemote:  cfg.Tiers.PreferredDemote,
	}
	if err := bands.Validate(); err != nil {
		return nil, fmt.Errorf("tiers config: %w", err)
	}
	tierSvc.SetBands(bands)

	if a.rdb != nil {
		locker := tenantlock.NewRedisLocker(a.rdb, cfg.Alerts.LockTTL)
		alertSvc.SetLocker(locker)
		tierSvc.SetLocker(locker)
	}

	configSvc := service.NewConfigService(a.repos, zapLogger)
	perfSvc := service.NewPerformanceService(a.repos, configSvc, alertSvc, zapLogger)
	perfSvc.SetScoreHistory(service.NewPreviousPeriodHistory(a.repos.Performance))

	a.services = &handler.Services{
		Alert:       alertSvc,
		Tier:        tierSvc,
		Config:      configSvc,
		Performance: perfSvc,
	}
	return a, nil
}

// publisher picks the alert sinks. With Redis the hub is fed by the relay,
// so local clients are not notified twice.
func (a *app) publisher() notify.Publisher {
	var sinks notify.Multi
	if a.rdb != nil && a.cfg.Notify.Enabled {
		sinks = append(sinks, notify.NewRedisPublisher(a.rdb, a.cfg.Notify.ChannelPrefix))
	} else if a.hub != nil {
		sinks = append(sinks, a.hub)
	}
	if len(sinks) == 0 {
		return notify.Nop{}
	}
	return sinks
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.logger.Sync()
}

func (a *app) migrate() error {
	if err := a.db.AutoMigrate(entity.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// tenants returns the explicit list or every tenant with active vendors.
func (a *app) tenants(ctx context.Context, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	return a.repos.Vendor.ListTenants(ctx)
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig, level string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	if level == "debug" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
