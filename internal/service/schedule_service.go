package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
)

// ── 排班模块业务错误 ──

var (
	ErrScheduleNotFound = pkgerrors.Kind(pkgerrors.ErrNotFound, "排班不存在")
	ErrScheduleConflict = pkgerrors.Kind(pkgerrors.ErrConflict, "志工时间冲突，无法排班")
)

// topVolunteerLimit 统计中按排班数排名的志工数量
const topVolunteerLimit = 10

// ScheduleService 排班业务接口
type ScheduleService interface {
	Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID uint) (*dto.ScheduleResponse, error)
	// CreateRecurring 按 RRULE 展开并一次性写入，任一班次冲突则全部不写入
	CreateRecurring(ctx context.Context, req *dto.RecurringScheduleRequest, callerID uint) ([]dto.ScheduleResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.ScheduleResponse, error)
	Update(ctx context.Context, id uint, req *dto.UpdateScheduleRequest, callerID uint) (*dto.ScheduleResponse, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, req *dto.ScheduleListRequest) (*dto.PageResult[dto.ScheduleResponse], error)
	Stats(ctx context.Context, req *dto.ScheduleFilterRequest) (*dto.ScheduleStatsResponse, error)
	Monthly(ctx context.Context, req *dto.MonthlyScheduleRequest) ([]dto.ScheduleResponse, error)
	// Calendar 生成志工非取消排班的 iCalendar 文本
	Calendar(ctx context.Context, volunteerID uint) ([]byte, error)
}

type scheduleService struct {
	opts   Options
	repo   *repository.Repository
	cache  Cache
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(opts Options, repo *repository.Repository, cache Cache, logger *zap.Logger) ScheduleService {
	return &scheduleService{opts: opts, repo: repo, cache: cache, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *scheduleService) Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID uint) (*dto.ScheduleResponse, error) {
	sched, err := newSchedule(req)
	if err != nil {
		return nil, err
	}
	if callerID != 0 {
		sched.CreatedBy = &callerID
		sched.UpdatedBy = &callerID
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := s.lockVolunteer(ctx, tx, sched.VolunteerID); err != nil {
			return err
		}
		if err := s.checkConflict(ctx, tx, sched, 0); err != nil {
			return err
		}
		return tx.Schedule.Create(ctx, sched)
	})
	if err != nil {
		return nil, storageError(s.logger, "创建排班", err, zap.Uint("volunteer_id", sched.VolunteerID))
	}

	invalidateStats(ctx, s.cache, s.logger)
	return s.reload(ctx, sched.ID)
}

// ────────────────────── GetByID ──────────────────────

func (s *scheduleService) GetByID(ctx context.Context, id uint) (*dto.ScheduleResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	return s.reload(ctx, id)
}

// ────────────────────── Update ──────────────────────

func (s *scheduleService) Update(ctx context.Context, id uint, req *dto.UpdateScheduleRequest, callerID uint) (*dto.ScheduleResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		current, err := tx.Schedule.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrScheduleNotFound
			}
			return err
		}

		merged, err := applyScheduleUpdate(current, req)
		if err != nil {
			return err
		}
		if callerID != 0 {
			merged.UpdatedBy = &callerID
		}

		if _, err := s.lockVolunteer(ctx, tx, merged.VolunteerID); err != nil {
			return err
		}
		// 合并后的记录只要未取消就重新检查，排除自身
		if err := s.checkConflict(ctx, tx, merged, id); err != nil {
			return err
		}

		if err := tx.Schedule.Update(ctx, merged); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrScheduleNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storageError(s.logger, "更新排班", err, zap.Uint("id", id))
	}

	invalidateStats(ctx, s.cache, s.logger)
	return s.reload(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *scheduleService) Delete(ctx context.Context, id uint) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Schedule.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleNotFound
		}
		return storageError(s.logger, "删除排班", err, zap.Uint("id", id))
	}

	invalidateStats(ctx, s.cache, s.logger)
	return nil
}

// ────────────────────── List ──────────────────────

func (s *scheduleService) List(ctx context.Context, req *dto.ScheduleListRequest) (*dto.PageResult[dto.ScheduleResponse], error) {
	if fields := req.PaginationRequest.Validate(); len(fields) > 0 {
		return nil, pkgerrors.NewValidationError("分页参数无效", fields...)
	}
	filter, err := toScheduleFilter(&req.ScheduleFilterRequest)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	list, total, err := s.repo.Schedule.List(ctx, filter, req.GetOffset(), req.GetLimit())
	if err != nil {
		return nil, storageError(s.logger, "查询排班列表", err)
	}

	return &dto.PageResult[dto.ScheduleResponse]{
		Items: toScheduleResponses(list),
		Total: total,
		Page:  req.GetPage(),
		Limit: req.GetLimit(),
	}, nil
}

// ────────────────────── Stats ──────────────────────

func (s *scheduleService) Stats(ctx context.Context, req *dto.ScheduleFilterRequest) (*dto.ScheduleStatsResponse, error) {
	filter, err := toScheduleFilter(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	key := statsKey("schedules", *req)
	return cached(ctx, s.cache, s.opts.StatsTTL, key, s.logger, func() (*dto.ScheduleStatsResponse, error) {
		stats, err := s.repo.Schedule.Stats(ctx, filter, topVolunteerLimit)
		if err != nil {
			return nil, storageError(s.logger, "统计排班", err)
		}
		return toScheduleStatsResponse(stats), nil
	})
}

// ────────────────────── Monthly ──────────────────────

func (s *scheduleService) Monthly(ctx context.Context, req *dto.MonthlyScheduleRequest) ([]dto.ScheduleResponse, error) {
	if req.Month < 1 || req.Month > 12 {
		return nil, pkgerrors.NewValidationError("月份无效", "month")
	}
	from := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	list, err := s.repo.Schedule.ListAll(ctx, repository.ScheduleFilter{From: &from, To: &to}, true)
	if err != nil {
		return nil, storageError(s.logger, "查询月度排班", err, zap.Int("year", req.Year), zap.Int("month", req.Month))
	}
	return toScheduleResponses(list), nil
}

// ── 写路径辅助 ──

// lockVolunteer 锁定志工行，使同一志工的检查与写入串行化
func (s *scheduleService) lockVolunteer(ctx context.Context, tx *repository.Repository, volunteerID uint) (*model.Volunteer, error) {
	v, err := tx.Volunteer.LockByID(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewValidationError("志工不存在", "volunteer_id")
		}
		return nil, err
	}
	return v, nil
}

// checkConflict 已取消的排班不参与冲突判断
func (s *scheduleService) checkConflict(ctx context.Context, tx *repository.Repository, sched *model.Schedule, excludeID uint) error {
	if !sched.IsActive() {
		return nil
	}
	existing, err := tx.Schedule.FindConflict(ctx, sched.VolunteerID, sched.StartTime, sched.EndTime, excludeID)
	if err == nil {
		return &pkgerrors.ConflictError{
			Message:       ErrScheduleConflict.Error(),
			ConflictingID: existing.ID,
			Err:           ErrScheduleConflict,
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (s *scheduleService) reload(ctx context.Context, id uint) (*dto.ScheduleResponse, error) {
	sched, err := s.repo.Schedule.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, storageError(s.logger, "查询排班", err, zap.Uint("id", id))
	}
	return toScheduleResponse(sched), nil
}

// ── 校验与合并 ──

// normalizeTime 统一以 UTC 秒精度存储
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// newSchedule 校验创建请求并填充默认值
func newSchedule(req *dto.CreateScheduleRequest) (*model.Schedule, error) {
	var missing []string
	if req.VolunteerID == nil || *req.VolunteerID == 0 {
		missing = append(missing, "volunteer_id")
	}
	if req.StartTime == nil {
		missing = append(missing, "start_time")
	}
	if req.EndTime == nil {
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.NewValidationError("缺少必填字段", missing...)
	}

	sched := &model.Schedule{
		VolunteerID: *req.VolunteerID,
		StartTime:   normalizeTime(*req.StartTime),
		EndTime:     normalizeTime(*req.EndTime),
		ShiftType:   req.ShiftType,
		Location:    strings.TrimSpace(req.Location),
		Notes:       req.Notes,
		Status:      req.Status,
	}
	if sched.ShiftType == "" {
		sched.ShiftType = model.ShiftMorning
	}
	if sched.Status == "" {
		sched.Status = model.ScheduleStatusScheduled
	}

	if err := validateSchedule(sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// applyScheduleUpdate 把非 nil 字段合并到当前记录的副本上
func applyScheduleUpdate(current *model.Schedule, req *dto.UpdateScheduleRequest) (*model.Schedule, error) {
	merged := *current
	merged.Volunteer = nil

	if req.VolunteerID != nil {
		if *req.VolunteerID == 0 {
			return nil, pkgerrors.NewValidationError("志工不存在", "volunteer_id")
		}
		merged.VolunteerID = *req.VolunteerID
	}
	if req.StartTime != nil {
		merged.StartTime = normalizeTime(*req.StartTime)
	}
	if req.EndTime != nil {
		merged.EndTime = normalizeTime(*req.EndTime)
	}
	if req.ShiftType != nil {
		merged.ShiftType = *req.ShiftType
	}
	if req.Location != nil {
		merged.Location = strings.TrimSpace(*req.Location)
	}
	if req.Notes != nil {
		merged.Notes = *req.Notes
	}
	if req.Status != nil {
		merged.Status = *req.Status
	}

	if err := validateSchedule(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func validateSchedule(sched *model.Schedule) error {
	var fields []string
	if !sched.EndTime.After(sched.StartTime) {
		fields = append(fields, "end_time")
	}
	if !model.IsValidShiftType(sched.ShiftType) {
		fields = append(fields, "shift_type")
	}
	if !model.IsValidScheduleStatus(sched.Status) {
		fields = append(fields, "status")
	}
	if len(fields) > 0 {
		return pkgerrors.NewValidationError("排班参数无效（结束时间须晚于开始时间，班别与状态须为合法值）", fields...)
	}
	return nil
}

// toScheduleFilter 解析筛选参数
// date_from / date_to 接受 YYYY-MM-DD 或 RFC3339；仅日期的 date_to 包含当天
func toScheduleFilter(req *dto.ScheduleFilterRequest) (repository.ScheduleFilter, error) {
	filter := repository.ScheduleFilter{
		Status:      req.Status,
		ShiftType:   req.ShiftType,
		VolunteerID: req.VolunteerID,
		Search:      strings.TrimSpace(req.Search),
	}

	var fields []string
	if filter.Status != "" && !model.IsValidScheduleStatus(filter.Status) {
		fields = append(fields, "status")
	}
	if filter.ShiftType != "" && !model.IsValidShiftType(filter.ShiftType) {
		fields = append(fields, "shift_type")
	}
	if req.DateFrom != "" {
		from, _, err := parseDateBound(req.DateFrom)
		if err != nil {
			fields = append(fields, "date_from")
		} else {
			filter.From = &from
		}
	}
	if req.DateTo != "" {
		to, dateOnly, err := parseDateBound(req.DateTo)
		if err != nil {
			fields = append(fields, "date_to")
		} else {
			if dateOnly {
				to = to.AddDate(0, 0, 1)
			} else {
				to = to.Add(time.Second)
			}
			filter.To = &to
		}
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		fields = append(fields, "date_to")
	}

	if len(fields) > 0 {
		return filter, pkgerrors.NewValidationError("筛选参数无效", fields...)
	}
	return filter, nil
}

func parseDateBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return normalizeTime(t), false, nil
}

// ── 响应转换 ──

func toScheduleResponse(sched *model.Schedule) *dto.ScheduleResponse {
	resp := &dto.ScheduleResponse{
		ID:          sched.ID,
		VolunteerID: sched.VolunteerID,
		StartTime:   dto.FormatTime(sched.StartTime),
		EndTime:     dto.FormatTime(sched.EndTime),
		ShiftType:   sched.ShiftType,
		Location:    sched.Location,
		Notes:       sched.Notes,
		Status:      sched.Status,
		CreatedAt:   dto.FormatTime(sched.CreatedAt),
		UpdatedAt:   dto.FormatTime(sched.UpdatedAt),
	}
	if sched.Volunteer != nil {
		resp.VolunteerName = sched.Volunteer.Name
		resp.VolunteerDepartment = sched.Volunteer.Department
	}
	return resp
}

func toScheduleResponses(list []model.Schedule) []dto.ScheduleResponse {
	result := make([]dto.ScheduleResponse, 0, len(list))
	for i := range list {
		result = append(result, *toScheduleResponse(&list[i]))
	}
	return result
}

func toScheduleStatsResponse(stats *repository.ScheduleStats) *dto.ScheduleStatsResponse {
	resp := &dto.ScheduleStatsResponse{
		ByShiftType: make([]dto.ShiftTypeCount, 0, len(stats.ByShiftType)),
		ByVolunteer: make([]dto.VolunteerScheduleCount, 0, len(stats.ByVolunteer)),
	}
	for _, g := range stats.ByStatus {
		resp.Total += g.Count
		switch g.Label {
		case model.ScheduleStatusScheduled:
			resp.Scheduled = g.Count
		case model.ScheduleStatusConfirmed:
			resp.Confirmed = g.Count
		case model.ScheduleStatusCancelled:
			resp.Cancelled = g.Count
		}
	}
	for _, g := range stats.ByShiftType {
		resp.ByShiftType = append(resp.ByShiftType, dto.ShiftTypeCount{ShiftType: g.Label, Count: g.Count})
	}
	for _, v := range stats.ByVolunteer {
		resp.ByVolunteer = append(resp.ByVolunteer, dto.VolunteerScheduleCount{
			VolunteerID:   v.VolunteerID,
			VolunteerName: v.VolunteerName,
			ScheduleCount: v.ScheduleCount,
		})
	}
	return resp
}

// shiftLabels 班别中文名，用于导出与日历
var shiftLabels = map[string]string{
	model.ShiftMorning:   "早班",
	model.ShiftAfternoon: "午班",
	model.ShiftEvening:   "晚班",
	model.ShiftAllDay:    "全天班",
	model.ShiftNight:     "夜班",
}

func shiftLabel(shiftType string) string {
	if label, ok := shiftLabels[shiftType]; ok {
		return label
	}
	return shiftType
}
