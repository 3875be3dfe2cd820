// Package bootstrap 按固定顺序组装运行时依赖：配置 → 日志 → 数据库 → Redis → Service。
// HTTP 服务与运维命令行共用。
package bootstrap

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/config"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	"github.com/guimashan/staff-schedule/internal/service"
	"github.com/guimashan/staff-schedule/pkg/database"
	"github.com/guimashan/staff-schedule/pkg/jwt"
	applogger "github.com/guimashan/staff-schedule/pkg/logger"
	"github.com/guimashan/staff-schedule/pkg/redis"
)

// App 已初始化的运行时依赖
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Repo    *repository.Repository
	Redis   *redis.Client // 未启用或连接失败时为 nil
	JWT     *jwt.Manager
	Service *service.Service
}

// Options 组装选项
type Options struct {
	ConfigPath string
	// Migrate 为 true 时启动即同步表结构
	Migrate bool
}

// New 加载配置并建立全部连接
func New(opts Options) (*App, error) {
	// 1. 加载配置
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	logger.Info("数据库连接成功", zap.String("driver", cfg.Database.Driver))

	// 3.1 同步表结构
	if opts.Migrate {
		if err := database.Migrate(db, cfg.Database.Driver, model.All(), logger); err != nil {
			closeDB(db)
			return nil, err
		}
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Repo:   repository.NewRepository(db),
		JWT:    jwt.NewManager(&cfg.Auth),
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，Token 注销与分布式限流不可用", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	// 5. 依赖注入: Repository → Service
	// Redis 缺失时必须传入 nil 接口，而不是 nil 的 *redis.Client
	var (
		cache  service.Cache
		tokens service.TokenStore
	)
	if app.Redis != nil {
		cache, tokens = app.Redis, app.Redis
	}
	app.Service = service.NewService(service.OptionsFromConfig(cfg), app.Repo, app.JWT, cache, tokens, logger)

	return app, nil
}

// Close 释放数据库与 Redis 连接
func (a *App) Close() {
	closeDB(a.DB)
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.Logger.Sync()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
