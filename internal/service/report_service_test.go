package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
)

func setupTestReportService(t *testing.T, now time.Time) (*reportService, *repository.Repository, *memCache) {
	t.Helper()
	repo := newTestRepo(t)
	cache := newMemCache()
	svc := NewReportService(testOptions(), repo, cache, zap.NewNop()).(*reportService)
	svc.now = func() time.Time { return now }
	return svc, repo, cache
}

func seedSchedule(t *testing.T, repo *repository.Repository, volunteerID uint, start time.Time, status string) {
	t.Helper()
	s := &model.Schedule{
		VolunteerID: volunteerID,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		ShiftType:   model.ShiftMorning,
		Location:    "服务台",
		Status:      status,
	}
	if err := repo.Schedule.Create(context.Background(), s); err != nil {
		t.Fatalf("创建排班失败: %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// Dashboard 测试
// ════════════════════════════════════════════════════════════

func TestReportService_Dashboard(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	svc, repo, cache := setupTestReportService(t, now)

	v1 := seedVolunteer(t, repo, "张三", "接待组")
	v2 := seedVolunteer(t, repo, "李四", "导览组")
	seedSchedule(t, repo, v1.ID, at(10, 8), model.ScheduleStatusConfirmed)
	seedSchedule(t, repo, v2.ID, at(10, 8), model.ScheduleStatusScheduled)
	seedSchedule(t, repo, v1.ID, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), model.ScheduleStatusConfirmed)
	seedSchedule(t, repo, v1.ID, time.Date(2023, 9, 30, 8, 0, 0, 0, time.UTC), model.ScheduleStatusScheduled)

	resp, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard 失败: %v", err)
	}
	if resp.TotalVolunteers != 2 || resp.ActiveVolunteers != 2 {
		t.Errorf("志工计数不正确: %+v", resp)
	}
	if resp.TotalSchedules != 4 || resp.ConfirmedSchedules != 2 {
		t.Errorf("排班计数不正确: total=%d confirmed=%d", resp.TotalSchedules, resp.ConfirmedSchedules)
	}
	if len(resp.VolunteerByDepartment) != 2 {
		t.Errorf("部门分组应为 2 组，得到 %+v", resp.VolunteerByDepartment)
	}

	want := []dto.LabelCount{
		{Label: "2023-10", Count: 0},
		{Label: "2023-11", Count: 0},
		{Label: "2023-12", Count: 0},
		{Label: "2024-01", Count: 2},
		{Label: "2024-02", Count: 0},
		{Label: "2024-03", Count: 1},
	}
	if len(resp.ScheduleByMonth) != len(want) {
		t.Fatalf("月度趋势应为 %d 个月，得到 %+v", len(want), resp.ScheduleByMonth)
	}
	for i := range want {
		if resp.ScheduleByMonth[i] != want[i] {
			t.Errorf("第 %d 个月: got %+v want %+v", i, resp.ScheduleByMonth[i], want[i])
		}
	}

	if cache.len() != 1 {
		t.Errorf("总览应写入缓存，得到 %d 项", cache.len())
	}
}

func TestRecentMonths_CrossYear(t *testing.T) {
	got := recentMonths(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), 3)
	if strings.Join(got, ",") != "2023-12,2024-01,2024-02" {
		t.Errorf("月份标签不正确: %v", got)
	}
}

// ════════════════════════════════════════════════════════════
// 报表测试
// ════════════════════════════════════════════════════════════

func TestReportService_ScheduleReport(t *testing.T) {
	svc, repo, _ := setupTestReportService(t, time.Now())
	v := seedVolunteer(t, repo, "张三", "接待组")
	seedSchedule(t, repo, v.ID, at(1, 8), model.ScheduleStatusConfirmed)
	seedSchedule(t, repo, v.ID, at(2, 8), model.ScheduleStatusCancelled)
	seedSchedule(t, repo, v.ID, at(5, 8), model.ScheduleStatusScheduled)

	report, err := svc.ScheduleReport(context.Background(), &dto.ScheduleFilterRequest{DateTo: "2024-01-02"})
	if err != nil {
		t.Fatalf("ScheduleReport 失败: %v", err)
	}
	if len(report.Schedules) != 2 || report.Stats.Total != 2 || report.Stats.Cancelled != 1 {
		t.Errorf("报表内容不正确: %d 条, stats=%+v", len(report.Schedules), report.Stats)
	}
	if report.Schedules[0].StartTime != "2024-01-02T08:00:00Z" {
		t.Errorf("报表应按 start_time 降序，首条为 %s", report.Schedules[0].StartTime)
	}
	if len(report.VolunteerStats) != 1 || report.VolunteerStats[0].ScheduleCount != 2 {
		t.Errorf("志工统计不正确: %+v", report.VolunteerStats)
	}

	if _, err := svc.ScheduleReport(context.Background(), &dto.ScheduleFilterRequest{DateFrom: "bad"}); !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("非法日期应返回校验错误，得到 %v", err)
	}
}

func TestReportService_VolunteerReport(t *testing.T) {
	svc, repo, _ := setupTestReportService(t, time.Now())
	seedVolunteer(t, repo, "张三", "接待组")
	seedVolunteer(t, repo, "李四", "导览组")

	report, err := svc.VolunteerReport(context.Background(), &dto.VolunteerFilterRequest{Department: "接待组"})
	if err != nil {
		t.Fatalf("VolunteerReport 失败: %v", err)
	}
	if len(report.Volunteers) != 1 || report.Stats.Total != 1 {
		t.Errorf("部门筛选结果不正确: %+v", report.Stats)
	}
	if len(report.SkillStats) != 2 {
		t.Errorf("技能统计应为 2 项，得到 %+v", report.SkillStats)
	}
}

// ════════════════════════════════════════════════════════════
// Export 测试
// ════════════════════════════════════════════════════════════

func TestReportService_Export_CSV(t *testing.T) {
	now := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	svc, repo, _ := setupTestReportService(t, now)
	v := seedVolunteer(t, repo, "张三", "接待组")
	seedSchedule(t, repo, v.ID, at(1, 8), model.ScheduleStatusConfirmed)

	file, err := svc.Export(context.Background(), ExportFormatCSV, &dto.ScheduleFilterRequest{})
	if err != nil {
		t.Fatalf("Export 失败: %v", err)
	}
	if file.Filename != "schedule-report-20240201-093000.csv" {
		t.Errorf("文件名不正确: %s", file.Filename)
	}
	if !bytes.HasPrefix(file.Data, []byte("\ufeff")) {
		t.Error("CSV 应带 UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(file.Data, []byte("\ufeff")))).ReadAll()
	if err != nil {
		t.Fatalf("解析 CSV 失败: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("期望表头 + 1 行，得到 %d 行", len(records))
	}
	row := records[1]
	if row[1] != "张三" || row[5] != "早班" || row[7] != "已确认" {
		t.Errorf("数据行不正确: %v", row)
	}
}

func TestReportService_Export_Excel(t *testing.T) {
	svc, repo, _ := setupTestReportService(t, time.Now())
	v := seedVolunteer(t, repo, "张三", "接待组")
	seedSchedule(t, repo, v.ID, at(1, 8), model.ScheduleStatusScheduled)

	file, err := svc.Export(context.Background(), ExportFormatExcel, &dto.ScheduleFilterRequest{})
	if err != nil {
		t.Fatalf("Export 失败: %v", err)
	}
	if !strings.HasSuffix(file.Filename, ".xlsx") {
		t.Errorf("文件名应以 .xlsx 结尾: %s", file.Filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		t.Fatalf("打开导出文件失败: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); strings.Join(sheets, ",") != "排班明细,统计" {
		t.Errorf("工作表不正确: %v", sheets)
	}
	name, err := f.GetCellValue("排班明细", "B2")
	if err != nil || name != "张三" {
		t.Errorf("B2 应为志工姓名，得到 %q (%v)", name, err)
	}
}

func TestReportService_Export_UnsupportedFormat(t *testing.T) {
	svc, _, _ := setupTestReportService(t, time.Now())

	_, err := svc.Export(context.Background(), "pdf", &dto.ScheduleFilterRequest{})

	var ve *pkgerrors.ValidationError
	if !errors.As(err, &ve) || !containsField(ve.Fields, "format") {
		t.Fatalf("期望 format 校验错误，得到 %v", err)
	}
}
