package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
)

// dashboardMonths 总览中月度排班趋势覆盖的月数（含当月）
const dashboardMonths = 6

// 导出格式
const (
	ExportFormatExcel = "excel"
	ExportFormatCSV   = "csv"
)

// ReportService 报表业务接口
type ReportService interface {
	Dashboard(ctx context.Context) (*dto.DashboardResponse, error)
	VolunteerReport(ctx context.Context, req *dto.VolunteerFilterRequest) (*dto.VolunteerReportResponse, error)
	ScheduleReport(ctx context.Context, req *dto.ScheduleFilterRequest) (*dto.ScheduleReportResponse, error)
	// Export 导出排班报表，format 为 excel 或 csv
	Export(ctx context.Context, format string, req *dto.ScheduleFilterRequest) (*dto.ExportFile, error)
}

type reportService struct {
	opts   Options
	repo   *repository.Repository
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService 创建 ReportService 实例
func NewReportService(opts Options, repo *repository.Repository, cache Cache, logger *zap.Logger) ReportService {
	return &reportService{opts: opts, repo: repo, cache: cache, logger: logger, now: time.Now}
}

// ────────────────────── Dashboard ──────────────────────

func (s *reportService) Dashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	months := recentMonths(s.now(), dashboardMonths)
	key := statsKey("dashboard", months[0])
	return cached(ctx, s.cache, s.opts.StatsTTL, key, s.logger, func() (*dto.DashboardResponse, error) {
		return s.buildDashboard(ctx, months)
	})
}

func (s *reportService) buildDashboard(ctx context.Context, months []string) (*dto.DashboardResponse, error) {
	resp := &dto.DashboardResponse{}

	byStatus, err := s.repo.Volunteer.CountByStatus(ctx, repository.VolunteerFilter{})
	if err != nil {
		return nil, storageError(s.logger, "统计志工状态", err)
	}
	for _, g := range byStatus {
		resp.TotalVolunteers += g.Count
		if g.Label == model.VolunteerStatusActive {
			resp.ActiveVolunteers = g.Count
		}
	}

	byDept, err := s.repo.Volunteer.CountByDepartment(ctx, repository.VolunteerFilter{})
	if err != nil {
		return nil, storageError(s.logger, "统计志工部门", err)
	}
	resp.VolunteerByDepartment = toLabelCounts(byDept)

	stats, err := s.repo.Schedule.Stats(ctx, repository.ScheduleFilter{}, topVolunteerLimit)
	if err != nil {
		return nil, storageError(s.logger, "统计排班", err)
	}
	for _, g := range stats.ByStatus {
		resp.TotalSchedules += g.Count
		if g.Label == model.ScheduleStatusConfirmed {
			resp.ConfirmedSchedules = g.Count
		}
	}

	since, _ := time.Parse("2006-01", months[0])
	starts, err := s.repo.Schedule.StartTimesSince(ctx, since)
	if err != nil {
		return nil, storageError(s.logger, "统计月度排班", err)
	}
	resp.ScheduleByMonth = countByMonth(months, starts)

	return resp, nil
}

// recentMonths 返回以 now 所在月结尾的 n 个月份标签（YYYY-MM，升序）
func recentMonths(now time.Time, n int) []string {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = first.AddDate(0, i-n+1, 0).Format("2006-01")
	}
	return labels
}

// countByMonth 按月份标签分桶，区间外的时间忽略，无排班的月份计 0
func countByMonth(months []string, starts []time.Time) []dto.LabelCount {
	counts := make(map[string]int64, len(months))
	for _, t := range starts {
		counts[t.UTC().Format("2006-01")]++
	}
	result := make([]dto.LabelCount, 0, len(months))
	for _, m := range months {
		result = append(result, dto.LabelCount{Label: m, Count: counts[m]})
	}
	return result
}

// ────────────────────── VolunteerReport ──────────────────────

func (s *reportService) VolunteerReport(ctx context.Context, req *dto.VolunteerFilterRequest) (*dto.VolunteerReportResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	filter := toVolunteerFilter(req)
	list, err := s.repo.Volunteer.ListAll(ctx, filter)
	if err != nil {
		return nil, storageError(s.logger, "查询志工报表", err)
	}
	stats, err := volunteerStats(ctx, s.repo, filter, s.logger)
	if err != nil {
		return nil, err
	}

	return &dto.VolunteerReportResponse{
		Volunteers:      toVolunteerResponses(list),
		Stats:           *stats,
		DepartmentStats: stats.ByDepartment,
		SkillStats:      stats.BySkill,
	}, nil
}

// ────────────────────── ScheduleReport ──────────────────────

func (s *reportService) ScheduleReport(ctx context.Context, req *dto.ScheduleFilterRequest) (*dto.ScheduleReportResponse, error) {
	filter, err := toScheduleFilter(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	list, err := s.repo.Schedule.ListAll(ctx, filter, false)
	if err != nil {
		return nil, storageError(s.logger, "查询排班报表", err)
	}
	stats, err := s.repo.Schedule.Stats(ctx, filter, topVolunteerLimit)
	if err != nil {
		return nil, storageError(s.logger, "统计排班", err)
	}
	summary := toScheduleStatsResponse(stats)

	return &dto.ScheduleReportResponse{
		Schedules:      toScheduleResponses(list),
		Stats:          *summary,
		ShiftStats:     summary.ByShiftType,
		VolunteerStats: summary.ByVolunteer,
	}, nil
}

// ────────────────────── Export ──────────────────────

func (s *reportService) Export(ctx context.Context, format string, req *dto.ScheduleFilterRequest) (*dto.ExportFile, error) {
	if format != ExportFormatExcel && format != ExportFormatCSV {
		return nil, pkgerrors.NewValidationError("不支持的导出格式，仅支持 excel 或 csv", "format")
	}

	report, err := s.ScheduleReport(ctx, req)
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format("20060102-150405")
	switch format {
	case ExportFormatCSV:
		data, err := renderScheduleCSV(report.Schedules)
		if err != nil {
			s.logger.Error("生成 CSV 失败", zap.Error(err))
			return nil, pkgerrors.NewStorageError("生成 CSV", err)
		}
		return &dto.ExportFile{
			Filename:    "schedule-report-" + stamp + ".csv",
			ContentType: "text/csv; charset=utf-8",
			Data:        data,
		}, nil
	default:
		data, err := renderScheduleExcel(report)
		if err != nil {
			s.logger.Error("生成 Excel 失败", zap.Error(err))
			return nil, pkgerrors.NewStorageError("生成 Excel", err)
		}
		return &dto.ExportFile{
			Filename:    "schedule-report-" + stamp + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}
}
