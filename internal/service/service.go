package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/config"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
	"github.com/guimashan/staff-schedule/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Volunteer    VolunteerService
	Schedule     ScheduleService
	Notification NotificationService
	Report       ReportService
}

// Options 业务层运行参数
type Options struct {
	QueryTimeout time.Duration // 单次业务调用的存储超时，0 表示不限
	StatsTTL     time.Duration // 统计类结果缓存时长
	BcryptCost   int
}

// OptionsFromConfig 从全局配置提取业务层参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		QueryTimeout: cfg.Database.QueryTimeout,
		StatsTTL:     cfg.Cache.StatsTTL,
		BcryptCost:   cfg.Auth.BcryptCost,
	}
}

// Cache 统计结果缓存，nil 表示不缓存
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// TokenStore Token 黑名单存储，nil 表示不支持注销
type TokenStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// NewService 创建 Service 聚合
func NewService(
	opts Options,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	cache Cache,
	tokens TokenStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:         NewAuthService(opts, repo, jwtMgr, tokens, logger),
		User:         NewUserService(opts, repo, logger),
		Volunteer:    NewVolunteerService(opts, repo, cache, logger),
		Schedule:     NewScheduleService(opts, repo, cache, logger),
		Notification: NewNotificationService(opts, repo, logger),
		Report:       NewReportService(opts, repo, cache, logger),
	}
}

// ── 公共辅助 ──

// withTimeout 为单次业务调用附加存储超时
func (o Options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.QueryTimeout)
}

// isBusinessError 校验 / 冲突 / 不存在类错误原样返回给调用方
func isBusinessError(err error) bool {
	return errors.Is(err, pkgerrors.ErrValidation) ||
		errors.Is(err, pkgerrors.ErrConflict) ||
		errors.Is(err, pkgerrors.ErrNotFound)
}

// uniqueViolation 唯一索引冲突转为 conflict，其余错误原样返回
// 预检查与写入之间存在并发插入时由数据库兜底
func uniqueViolation(err, conflict error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflict
	}
	return err
}

// storageError 记录日志并把底层错误包装为 StorageError
func storageError(logger *zap.Logger, op string, err error, fields ...zap.Field) error {
	if isBusinessError(err) {
		return err
	}
	logger.Error(op+"失败", append(fields, zap.Error(err))...)
	return pkgerrors.NewStorageError(op, err)
}

const statsCachePrefix = "stats:"

// cached 先读缓存，未命中时调用 load 并回写
func cached[T any](ctx context.Context, cache Cache, ttl time.Duration, key string, logger *zap.Logger, load func() (*T, error)) (*T, error) {
	if cache != nil {
		var hit T
		if err := cache.GetJSON(ctx, key, &hit); err == nil {
			return &hit, nil
		}
	}

	value, err := load()
	if err != nil {
		return nil, err
	}

	if cache != nil && ttl > 0 {
		if err := cache.SetJSON(ctx, key, value, ttl); err != nil {
			logger.Warn("写入缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return value, nil
}

// invalidateStats 数据变更后清除统计缓存
func invalidateStats(ctx context.Context, cache Cache, logger *zap.Logger) {
	if cache == nil {
		return
	}
	if err := cache.DeletePrefix(ctx, statsCachePrefix); err != nil {
		logger.Warn("清除统计缓存失败", zap.Error(err))
	}
}

func statsKey(scope string, parts ...interface{}) string {
	return statsCachePrefix + scope + ":" + fmt.Sprint(parts...)
}
