package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/guimashan/staff-schedule/internal/model"
)

// ScheduleFilter 排班筛选条件，From / To 约束 start_time 于 [From, To)
type ScheduleFilter struct {
	Status      string
	ShiftType   string
	VolunteerID uint
	From        *time.Time
	To          *time.Time
	Search      string // 匹配志工姓名或地点
}

// ScheduleStats 排班分组统计
type ScheduleStats struct {
	ByStatus    []GroupCount
	ByShiftType []GroupCount
	ByVolunteer []VolunteerCount
}

// VolunteerCount 志工排班数
type VolunteerCount struct {
	VolunteerID   uint
	VolunteerName string
	ScheduleCount int64
}

// ScheduleRepository 排班数据访问接口
type ScheduleRepository interface {
	Create(ctx context.Context, s *model.Schedule) error
	CreateBatch(ctx context.Context, list []model.Schedule) error
	GetByID(ctx context.Context, id uint) (*model.Schedule, error)
	Update(ctx context.Context, s *model.Schedule) error
	Delete(ctx context.Context, id uint) error
	// FindConflict 返回与 [start, end) 重叠的该志工首个非取消排班
	// excludeID 非 0 时跳过该记录；无冲突返回 gorm.ErrRecordNotFound
	FindConflict(ctx context.Context, volunteerID uint, start, end time.Time, excludeID uint) (*model.Schedule, error)
	List(ctx context.Context, filter ScheduleFilter, offset, limit int) ([]model.Schedule, int64, error)
	ListAll(ctx context.Context, filter ScheduleFilter, ascending bool) ([]model.Schedule, error)
	CountByVolunteer(ctx context.Context, volunteerID uint) (int64, error)
	Stats(ctx context.Context, filter ScheduleFilter, topVolunteers int) (*ScheduleStats, error)
	StartTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

// ── Schedule Repository 实现 ──

type scheduleRepo struct {
	db *gorm.DB
}

// NewScheduleRepo 创建 ScheduleRepository 实例
func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	return r.db.WithContext(ctx).Omit("Volunteer").Create(s).Error
}

func (r *scheduleRepo) CreateBatch(ctx context.Context, list []model.Schedule) error {
	if len(list) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Volunteer").Create(&list).Error
}

func (r *scheduleRepo) GetByID(ctx context.Context, id uint) (*model.Schedule, error) {
	var s model.Schedule
	err := r.db.WithContext(ctx).
		Preload("Volunteer").
		First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepo) Update(ctx context.Context, s *model.Schedule) error {
	result := r.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("id = ?", s.ID).
		Select("*").
		Omit("id", "created_at", "created_by", "Volunteer").
		Updates(s)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Schedule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ────────────────────── Conflict ──────────────────────

func (r *scheduleRepo) FindConflict(ctx context.Context, volunteerID uint, start, end time.Time, excludeID uint) (*model.Schedule, error) {
	var s model.Schedule
	if err := conflictQuery(r.db.WithContext(ctx), volunteerID, start, end, excludeID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// conflictQuery 半开区间重叠查询
// 支持行锁的驱动使用锁定读，读到其他事务已提交的最新排班而不是本事务快照
// （MySQL 默认 REPEATABLE READ 下普通读沿用事务内第一次读取时的快照）
func conflictQuery(db *gorm.DB, volunteerID uint, start, end time.Time, excludeID uint) *gorm.DB {
	q := db.Model(&model.Schedule{}).
		Where("volunteer_id = ?", volunteerID).
		Where("status <> ?", model.ScheduleStatusCancelled).
		Where("start_time < ? AND end_time > ?", end, start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if supportsRowLock(db) {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthShare})
	}
	return q.Order("start_time ASC")
}

// ────────────────────── Query ──────────────────────

// filtered 每次调用返回新的查询链；列名带表前缀以便联表统计
func (r *scheduleRepo) filtered(ctx context.Context, f ScheduleFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&model.Schedule{})
	if f.Status != "" {
		db = db.Where("schedules.status = ?", f.Status)
	}
	if f.ShiftType != "" {
		db = db.Where("schedules.shift_type = ?", f.ShiftType)
	}
	if f.VolunteerID != 0 {
		db = db.Where("schedules.volunteer_id = ?", f.VolunteerID)
	}
	if f.From != nil {
		db = db.Where("schedules.start_time >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("schedules.start_time < ?", *f.To)
	}
	if f.Search != "" {
		kw := likePattern(f.Search)
		names := r.db.Model(&model.Volunteer{}).Select("id").Where("name LIKE ? ESCAPE '!'", kw)
		db = db.Where("(schedules.location LIKE ? ESCAPE '!' OR schedules.volunteer_id IN (?))", kw, names)
	}
	return db
}

func (r *scheduleRepo) List(ctx context.Context, filter ScheduleFilter, offset, limit int) ([]model.Schedule, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Schedule
	if err := r.filtered(ctx, filter).
		Preload("Volunteer").
		Order("schedules.start_time DESC").Order("schedules.id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *scheduleRepo) ListAll(ctx context.Context, filter ScheduleFilter, ascending bool) ([]model.Schedule, error) {
	order := "schedules.start_time DESC"
	if ascending {
		order = "schedules.start_time ASC"
	}
	var list []model.Schedule
	err := r.filtered(ctx, filter).
		Preload("Volunteer").
		Order(order).Order("schedules.id ASC").
		Find(&list).Error
	return list, err
}

func (r *scheduleRepo) CountByVolunteer(ctx context.Context, volunteerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("volunteer_id = ?", volunteerID).
		Count(&n).Error
	return n, err
}

// ────────────────────── Stats ──────────────────────

func (r *scheduleRepo) Stats(ctx context.Context, filter ScheduleFilter, topVolunteers int) (*ScheduleStats, error) {
	stats := &ScheduleStats{}

	if err := r.filtered(ctx, filter).
		Select("schedules.status AS label, COUNT(*) AS count").
		Group("schedules.status").
		Order("schedules.status ASC").
		Scan(&stats.ByStatus).Error; err != nil {
		return nil, err
	}

	if err := r.filtered(ctx, filter).
		Select("schedules.shift_type AS label, COUNT(*) AS count").
		Group("schedules.shift_type").
		Order("count DESC").Order("schedules.shift_type ASC").
		Scan(&stats.ByShiftType).Error; err != nil {
		return nil, err
	}

	if err := r.filtered(ctx, filter).
		Select("schedules.volunteer_id, volunteers.name AS volunteer_name, COUNT(*) AS schedule_count").
		Joins("JOIN volunteers ON volunteers.id = schedules.volunteer_id").
		Group("schedules.volunteer_id, volunteers.name").
		Order("schedule_count DESC").Order("schedules.volunteer_id ASC").
		Limit(topVolunteers).
		Scan(&stats.ByVolunteer).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *scheduleRepo) StartTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("start_time >= ?", since).
		Pluck("start_time", &times).Error
	return times, err
}
