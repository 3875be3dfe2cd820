package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db           *gorm.DB
	User         UserRepository
	Volunteer    VolunteerRepository
	Schedule     ScheduleRepository
	Notification NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		User:         NewUserRepo(db),
		Volunteer:    NewVolunteerRepo(db),
		Schedule:     NewScheduleRepo(db),
		Notification: NewNotificationRepo(db),
	}
}

// Transaction 在单个数据库事务中执行 fn
// fn 收到的 Repository 绑定到该事务；fn 返回错误或 panic 时回滚
// 未绑定数据库（单元测试以字面量构造）时直接以自身调用 fn
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// Ping 检查数据库连通性
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// supportsRowLock sqlite 不支持 SELECT ... FOR UPDATE
func supportsRowLock(db *gorm.DB) bool {
	return db.Dialector.Name() != "sqlite"
}

// likeEscaper 转义 LIKE 通配符，配合 SQL 中的 ESCAPE '!'
// 反斜杠在 MySQL 字符串字面量里本身是转义符，故选用 '!'
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern 子串匹配，关键字中的 % 与 _ 按字面量处理
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
