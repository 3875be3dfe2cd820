package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/model"
)

// NotificationFilter 通知筛选条件
type NotificationFilter struct {
	Type   string
	IsRead *bool
}

// NotificationRepository 通知数据访问接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id uint) (*model.Notification, error)
	Update(ctx context.Context, n *model.Notification) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter NotificationFilter, offset, limit int) ([]model.Notification, int64, error)
	ListUnread(ctx context.Context, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id uint) error
	MarkAllRead(ctx context.Context) (int64, error)
	CountByType(ctx context.Context) ([]GroupCount, error)
	CountByRead(ctx context.Context, isRead bool) (int64, error)
	// RemindedScheduleIDs 返回 scheduleIDs 中已生成过提醒的排班 ID
	RemindedScheduleIDs(ctx context.Context, scheduleIDs []uint) ([]uint, error)
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Omit("Sender").Create(n).Error
}

func (r *notificationRepo) GetByID(ctx context.Context, id uint) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).Preload("Sender").First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) Update(ctx context.Context, n *model.Notification) error {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ?", n.ID).
		Select("*").
		Omit("id", "created_at", "sender_id", "Sender").
		Updates(n)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Notification{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepo) filtered(ctx context.Context, f NotificationFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&model.Notification{})
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.IsRead != nil {
		db = db.Where("is_read = ?", *f.IsRead)
	}
	return db
}

func (r *notificationRepo) List(ctx context.Context, filter NotificationFilter, offset, limit int) ([]model.Notification, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Notification
	if err := r.filtered(ctx, filter).
		Preload("Sender").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *notificationRepo) ListUnread(ctx context.Context, limit int) ([]model.Notification, error) {
	unread := false
	var list []model.Notification
	err := r.filtered(ctx, NotificationFilter{IsRead: &unread}).
		Preload("Sender").
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *notificationRepo) MarkRead(ctx context.Context, id uint) error {
	// 已读记录重复标记也视为成功，因此先确认存在
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Notification{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

func (r *notificationRepo) MarkAllRead(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("is_read = ?", false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) CountByType(ctx context.Context) ([]GroupCount, error) {
	var rows []GroupCount
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Select("type AS label, COUNT(*) AS count").
		Group("type").
		Order("count DESC").Order("type ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *notificationRepo) CountByRead(ctx context.Context, isRead bool) (int64, error) {
	var n int64
	err := r.filtered(ctx, NotificationFilter{IsRead: &isRead}).Count(&n).Error
	return n, err
}

func (r *notificationRepo) RemindedScheduleIDs(ctx context.Context, scheduleIDs []uint) ([]uint, error) {
	ids := []uint{}
	if len(scheduleIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("schedule_id IN ?", scheduleIDs).
		Distinct().
		Pluck("schedule_id", &ids).Error
	return ids, err
}
