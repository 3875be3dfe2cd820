package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/guimashan/staff-schedule/internal/model"
)

// VolunteerFilter 志工筛选条件
type VolunteerFilter struct {
	Department string
	Status     string
	Skill      string
	Search     string // 匹配姓名、电话、邮箱、部门
}

// GroupCount 分组计数结果
type GroupCount struct {
	Label string
	Count int64
}

// VolunteerRepository 志工数据访问接口
type VolunteerRepository interface {
	Create(ctx context.Context, v *model.Volunteer) error
	GetByID(ctx context.Context, id uint) (*model.Volunteer, error)
	GetByEmail(ctx context.Context, email string) (*model.Volunteer, error)
	// LockByID 读取并锁定志工行直到事务结束
	LockByID(ctx context.Context, id uint) (*model.Volunteer, error)
	Update(ctx context.Context, v *model.Volunteer) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter VolunteerFilter, offset, limit int) ([]model.Volunteer, int64, error)
	ListAll(ctx context.Context, filter VolunteerFilter) ([]model.Volunteer, error)
	CountByStatus(ctx context.Context, filter VolunteerFilter) ([]GroupCount, error)
	CountByDepartment(ctx context.Context, filter VolunteerFilter) ([]GroupCount, error)
	CountByExperience(ctx context.Context, filter VolunteerFilter) ([]GroupCount, error)
	ListSkills(ctx context.Context, filter VolunteerFilter) ([]string, error)
}

type volunteerRepo struct {
	db *gorm.DB
}

// NewVolunteerRepo 创建 VolunteerRepository 实例
func NewVolunteerRepo(db *gorm.DB) VolunteerRepository {
	return &volunteerRepo{db: db}
}

func (r *volunteerRepo) Create(ctx context.Context, v *model.Volunteer) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *volunteerRepo) GetByID(ctx context.Context, id uint) (*model.Volunteer, error) {
	var v model.Volunteer
	if err := r.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *volunteerRepo) GetByEmail(ctx context.Context, email string) (*model.Volunteer, error) {
	var v model.Volunteer
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *volunteerRepo) LockByID(ctx context.Context, id uint) (*model.Volunteer, error) {
	db := r.db.WithContext(ctx)
	if supportsRowLock(r.db) {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var v model.Volunteer
	if err := db.First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *volunteerRepo) Update(ctx context.Context, v *model.Volunteer) error {
	result := r.db.WithContext(ctx).
		Model(&model.Volunteer{}).
		Where("id = ?", v.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(v)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *volunteerRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Volunteer{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// filtered 每次调用返回新的查询链
func (r *volunteerRepo) filtered(ctx context.Context, f VolunteerFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&model.Volunteer{})
	if f.Department != "" {
		db = db.Where("department = ?", f.Department)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Skill != "" {
		db = db.Where("skills LIKE ? ESCAPE '!'", likePattern(f.Skill))
	}
	if f.Search != "" {
		kw := likePattern(f.Search)
		db = db.Where("(name LIKE ? ESCAPE '!' OR phone LIKE ? ESCAPE '!' OR email LIKE ? ESCAPE '!' OR department LIKE ? ESCAPE '!')", kw, kw, kw, kw)
	}
	return db
}

func (r *volunteerRepo) List(ctx context.Context, filter VolunteerFilter, offset, limit int) ([]model.Volunteer, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Volunteer
	if err := r.filtered(ctx, filter).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *volunteerRepo) ListAll(ctx context.Context, filter VolunteerFilter) ([]model.Volunteer, error) {
	var list []model.Volunteer
	err := r.filtered(ctx, filter).
		Order("created_at DESC").Order("id DESC").
		Find(&list).Error
	return list, err
}

func (r *volunteerRepo) countBy(ctx context.Context, filter VolunteerFilter, column, order string) ([]GroupCount, error) {
	var rows []GroupCount
	err := r.filtered(ctx, filter).
		Select(column + " AS label, COUNT(*) AS count").
		Group(column).
		Order(order).
		Scan(&rows).Error
	return rows, err
}

func (r *volunteerRepo) CountByStatus(ctx context.Context, filter VolunteerFilter) ([]GroupCount, error) {
	return r.countBy(ctx, filter, "status", "status ASC")
}

func (r *volunteerRepo) CountByDepartment(ctx context.Context, filter VolunteerFilter) ([]GroupCount, error) {
	return r.countBy(ctx, filter, "department", "count DESC")
}

func (r *volunteerRepo) CountByExperience(ctx context.Context, filter VolunteerFilter) ([]GroupCount, error) {
	var rows []struct {
		ExperienceYears int
		Count           int64
	}
	err := r.filtered(ctx, filter).
		Select("experience_years, COUNT(*) AS count").
		Group("experience_years").
		Order("experience_years ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]GroupCount, 0, len(rows))
	for _, row := range rows {
		result = append(result, GroupCount{Label: strconv.Itoa(row.ExperienceYears), Count: row.Count})
	}
	return result, nil
}

func (r *volunteerRepo) ListSkills(ctx context.Context, filter VolunteerFilter) ([]string, error) {
	var skills []string
	err := r.filtered(ctx, filter).
		Where("skills IS NOT NULL AND skills <> ''").
		Pluck("skills", &skills).Error
	return skills, err
}
