package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
)

// ── 志工模块业务错误 ──

var (
	ErrVolunteerNotFound     = pkgerrors.Kind(pkgerrors.ErrNotFound, "志工不存在")
	ErrVolunteerEmailExists  = pkgerrors.Kind(pkgerrors.ErrConflict, "该邮箱已登记为志工")
	ErrVolunteerHasSchedules = pkgerrors.Kind(pkgerrors.ErrConflict, "该志工仍有排班记录，无法删除")
)

// VolunteerService 志工业务接口
type VolunteerService interface {
	Create(ctx context.Context, req *dto.CreateVolunteerRequest) (*dto.VolunteerResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.VolunteerResponse, error)
	Update(ctx context.Context, id uint, req *dto.UpdateVolunteerRequest) (*dto.VolunteerResponse, error)
	// Delete 志工存在排班记录时拒绝删除
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, req *dto.VolunteerListRequest) (*dto.PageResult[dto.VolunteerResponse], error)
	Stats(ctx context.Context, req *dto.VolunteerFilterRequest) (*dto.VolunteerStatsResponse, error)
	// Import 逐行导入 CSV / XLSX，失败行跳过并记录原因
	Import(ctx context.Context, filename string, data []byte) (*dto.ImportVolunteerResponse, error)
}

type volunteerService struct {
	opts   Options
	repo   *repository.Repository
	cache  Cache
	logger *zap.Logger
}

// NewVolunteerService 创建 VolunteerService 实例
func NewVolunteerService(opts Options, repo *repository.Repository, cache Cache, logger *zap.Logger) VolunteerService {
	return &volunteerService{opts: opts, repo: repo, cache: cache, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *volunteerService) Create(ctx context.Context, req *dto.CreateVolunteerRequest) (*dto.VolunteerResponse, error) {
	v, err := newVolunteer(req, model.VolunteerStatusActive)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.insert(ctx, v); err != nil {
		return nil, storageError(s.logger, "创建志工", err, zap.String("email", v.Email))
	}

	invalidateStats(ctx, s.cache, s.logger)
	return toVolunteerResponse(v), nil
}

// insert 邮箱唯一性检查后写入
func (s *volunteerService) insert(ctx context.Context, v *model.Volunteer) error {
	if err := s.ensureEmailFree(ctx, v.Email, 0); err != nil {
		return err
	}
	return uniqueViolation(s.repo.Volunteer.Create(ctx, v), volunteerEmailTaken(0))
}

// volunteerEmailTaken id 为 0 表示冲突记录未知（由唯一索引拦截）
func volunteerEmailTaken(id uint) error {
	return &pkgerrors.ConflictError{
		Message:       ErrVolunteerEmailExists.Error(),
		ConflictingID: id,
		Err:           ErrVolunteerEmailExists,
	}
}

func (s *volunteerService) ensureEmailFree(ctx context.Context, email string, selfID uint) error {
	if email == "" {
		return nil
	}
	existing, err := s.repo.Volunteer.GetByEmail(ctx, email)
	if err == nil && existing.ID != selfID {
		return volunteerEmailTaken(existing.ID)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// ────────────────────── GetByID ──────────────────────

func (s *volunteerService) GetByID(ctx context.Context, id uint) (*dto.VolunteerResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	v, err := s.repo.Volunteer.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVolunteerNotFound
		}
		return nil, storageError(s.logger, "查询志工", err, zap.Uint("id", id))
	}
	return toVolunteerResponse(v), nil
}

// ────────────────────── Update ──────────────────────

func (s *volunteerService) Update(ctx context.Context, id uint, req *dto.UpdateVolunteerRequest) (*dto.VolunteerResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	v, err := s.repo.Volunteer.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVolunteerNotFound
		}
		return nil, storageError(s.logger, "查询志工", err, zap.Uint("id", id))
	}

	applyVolunteerUpdate(v, req)
	if err := validateVolunteer(v); err != nil {
		return nil, err
	}
	if req.Email != nil {
		if err := s.ensureEmailFree(ctx, v.Email, id); err != nil {
			return nil, storageError(s.logger, "更新志工", err, zap.Uint("id", id))
		}
	}

	if err := s.repo.Volunteer.Update(ctx, v); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVolunteerNotFound
		}
		return nil, storageError(s.logger, "更新志工", uniqueViolation(err, volunteerEmailTaken(0)), zap.Uint("id", id))
	}

	invalidateStats(ctx, s.cache, s.logger)
	return toVolunteerResponse(v), nil
}

// ────────────────────── Delete ──────────────────────

func (s *volunteerService) Delete(ctx context.Context, id uint) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	// 与排班写入共用志工行锁，避免删除与新排班交错
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Volunteer.LockByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVolunteerNotFound
			}
			return err
		}
		n, err := tx.Schedule.CountByVolunteer(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &pkgerrors.ConflictError{Message: ErrVolunteerHasSchedules.Error(), Err: ErrVolunteerHasSchedules}
		}
		if err := tx.Volunteer.Delete(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVolunteerNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return storageError(s.logger, "删除志工", err, zap.Uint("id", id))
	}

	invalidateStats(ctx, s.cache, s.logger)
	return nil
}

// ────────────────────── List ──────────────────────

func (s *volunteerService) List(ctx context.Context, req *dto.VolunteerListRequest) (*dto.PageResult[dto.VolunteerResponse], error) {
	if fields := req.PaginationRequest.Validate(); len(fields) > 0 {
		return nil, pkgerrors.NewValidationError("分页参数无效", fields...)
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	list, total, err := s.repo.Volunteer.List(ctx, toVolunteerFilter(&req.VolunteerFilterRequest), req.GetOffset(), req.GetLimit())
	if err != nil {
		return nil, storageError(s.logger, "查询志工列表", err)
	}

	return &dto.PageResult[dto.VolunteerResponse]{
		Items: toVolunteerResponses(list),
		Total: total,
		Page:  req.GetPage(),
		Limit: req.GetLimit(),
	}, nil
}

// ────────────────────── Stats ──────────────────────

func (s *volunteerService) Stats(ctx context.Context, req *dto.VolunteerFilterRequest) (*dto.VolunteerStatsResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	key := statsKey("volunteers", *req)
	return cached(ctx, s.cache, s.opts.StatsTTL, key, s.logger, func() (*dto.VolunteerStatsResponse, error) {
		return volunteerStats(ctx, s.repo, toVolunteerFilter(req), s.logger)
	})
}

// volunteerStats 志工统计，报表模块复用
func volunteerStats(ctx context.Context, repo *repository.Repository, filter repository.VolunteerFilter, logger *zap.Logger) (*dto.VolunteerStatsResponse, error) {
	byStatus, err := repo.Volunteer.CountByStatus(ctx, filter)
	if err != nil {
		return nil, storageError(logger, "统计志工状态", err)
	}
	byDept, err := repo.Volunteer.CountByDepartment(ctx, filter)
	if err != nil {
		return nil, storageError(logger, "统计志工部门", err)
	}
	byExp, err := repo.Volunteer.CountByExperience(ctx, filter)
	if err != nil {
		return nil, storageError(logger, "统计志工年资", err)
	}
	skills, err := repo.Volunteer.ListSkills(ctx, filter)
	if err != nil {
		return nil, storageError(logger, "统计志工技能", err)
	}

	resp := &dto.VolunteerStatsResponse{
		ByDepartment: toLabelCounts(byDept),
		BySkill:      countSkills(skills),
		ByExperience: toLabelCounts(byExp),
	}
	for _, g := range byStatus {
		resp.Total += g.Count
		switch g.Label {
		case model.VolunteerStatusActive:
			resp.Active = g.Count
		case model.VolunteerStatusInactive:
			resp.Inactive = g.Count
		case model.VolunteerStatusPending:
			resp.Pending = g.Count
		}
	}
	return resp, nil
}

// countSkills 拆分逗号分隔的技能并计数，按次数降序
func countSkills(rows []string) []dto.LabelCount {
	counts := make(map[string]int64)
	for _, row := range rows {
		for _, skill := range splitSkills(row) {
			counts[skill]++
		}
	}

	result := make([]dto.LabelCount, 0, len(counts))
	for label, n := range counts {
		result = append(result, dto.LabelCount{Label: label, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Label < result[j].Label
	})
	return result
}

func splitSkills(s string) []string {
	var skills []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			skills = append(skills, part)
		}
	}
	return skills
}

// ── 校验与转换 ──

func newVolunteer(req *dto.CreateVolunteerRequest, defaultStatus string) (*model.Volunteer, error) {
	if err := rowValidator.Struct(req); err != nil {
		return nil, pkgerrors.NewValidationError("志工资料无效", fieldErrors(err)...)
	}
	v := &model.Volunteer{
		Name:             strings.TrimSpace(req.Name),
		Phone:            strings.TrimSpace(req.Phone),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Department:       strings.TrimSpace(req.Department),
		Skills:           strings.Join(splitSkills(req.Skills), ","),
		ExperienceYears:  req.ExperienceYears,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
		Address:          req.Address,
		BirthDate:        req.BirthDate,
		Status:           req.Status,
		Notes:            req.Notes,
	}
	if v.Status == "" {
		v.Status = defaultStatus
	}
	return v, nil
}

func applyVolunteerUpdate(v *model.Volunteer, req *dto.UpdateVolunteerRequest) {
	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		v.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		v.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Department != nil {
		v.Department = strings.TrimSpace(*req.Department)
	}
	if req.Skills != nil {
		v.Skills = strings.Join(splitSkills(*req.Skills), ",")
	}
	if req.ExperienceYears != nil {
		v.ExperienceYears = *req.ExperienceYears
	}
	if req.EmergencyContact != nil {
		v.EmergencyContact = *req.EmergencyContact
	}
	if req.EmergencyPhone != nil {
		v.EmergencyPhone = *req.EmergencyPhone
	}
	if req.Address != nil {
		v.Address = *req.Address
	}
	if req.BirthDate != nil {
		v.BirthDate = *req.BirthDate
	}
	if req.Status != nil {
		v.Status = *req.Status
	}
	if req.Notes != nil {
		v.Notes = *req.Notes
	}
}

// validateVolunteer 合并后的记录按创建规则再校验一次
func validateVolunteer(v *model.Volunteer) error {
	req := dto.CreateVolunteerRequest{
		Name:             v.Name,
		Phone:            v.Phone,
		Email:            v.Email,
		Department:       v.Department,
		Skills:           v.Skills,
		ExperienceYears:  v.ExperienceYears,
		EmergencyContact: v.EmergencyContact,
		EmergencyPhone:   v.EmergencyPhone,
		Address:          v.Address,
		BirthDate:        v.BirthDate,
		Status:           v.Status,
		Notes:            v.Notes,
	}
	if err := rowValidator.Struct(&req); err != nil {
		return pkgerrors.NewValidationError("志工资料无效", fieldErrors(err)...)
	}
	return nil
}

func toVolunteerFilter(req *dto.VolunteerFilterRequest) repository.VolunteerFilter {
	return repository.VolunteerFilter{
		Department: strings.TrimSpace(req.Department),
		Status:     req.Status,
		Skill:      strings.TrimSpace(req.Skill),
		Search:     strings.TrimSpace(req.Search),
	}
}

func toVolunteerResponse(v *model.Volunteer) *dto.VolunteerResponse {
	return &dto.VolunteerResponse{
		ID:               v.ID,
		Name:             v.Name,
		Phone:            v.Phone,
		Email:            v.Email,
		Department:       v.Department,
		Skills:           v.Skills,
		ExperienceYears:  v.ExperienceYears,
		EmergencyContact: v.EmergencyContact,
		EmergencyPhone:   v.EmergencyPhone,
		Address:          v.Address,
		BirthDate:        v.BirthDate,
		Status:           v.Status,
		Notes:            v.Notes,
		CreatedAt:        dto.FormatTime(v.CreatedAt),
		UpdatedAt:        dto.FormatTime(v.UpdatedAt),
	}
}

func toVolunteerResponses(list []model.Volunteer) []dto.VolunteerResponse {
	result := make([]dto.VolunteerResponse, 0, len(list))
	for i := range list {
		result = append(result, *toVolunteerResponse(&list[i]))
	}
	return result
}

func toLabelCounts(groups []repository.GroupCount) []dto.LabelCount {
	result := make([]dto.LabelCount, 0, len(groups))
	for _, g := range groups {
		result = append(result, dto.LabelCount{Label: g.Label, Count: g.Count})
	}
	return result
}
