package service

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
)

// scheduleExportHeader 导出表头，CSV 与 Excel 共用
var scheduleExportHeader = []string{"ID", "志工", "部门", "开始时间", "结束时间", "班别", "地点", "状态", "备注"}

var scheduleStatusLabels = map[string]string{
	model.ScheduleStatusScheduled: "已排班",
	model.ScheduleStatusConfirmed: "已确认",
	model.ScheduleStatusCancelled: "已取消",
}

func scheduleExportRow(sc *dto.ScheduleResponse) []string {
	status := sc.Status
	if label, ok := scheduleStatusLabels[status]; ok {
		status = label
	}
	return []string{
		fmt.Sprint(sc.ID),
		sc.VolunteerName,
		sc.VolunteerDepartment,
		sc.StartTime,
		sc.EndTime,
		shiftLabel(sc.ShiftType),
		sc.Location,
		status,
		sc.Notes,
	}
}

// renderScheduleCSV 带 UTF-8 BOM，便于 Excel 直接打开中文内容
func renderScheduleCSV(list []dto.ScheduleResponse) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString("\ufeff")

	w := csv.NewWriter(buf)
	if err := w.Write(scheduleExportHeader); err != nil {
		return nil, err
	}
	for i := range list {
		if err := w.Write(scheduleExportRow(&list[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderScheduleExcel 两个工作表：排班明细与统计
func renderScheduleExcel(report *dto.ScheduleReportResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const detailSheet = "排班明细"
	const statsSheet = "统计"

	idx, err := f.NewSheet(detailSheet)
	if err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(statsSheet); err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	// 明细
	widths := []float64{8, 14, 14, 22, 22, 10, 20, 10, 30}
	for i, w := range widths {
		if err := f.SetColWidth(detailSheet, colName(i), colName(i), w); err != nil {
			return nil, err
		}
	}
	if err := writeSheetRow(f, detailSheet, 1, scheduleExportHeader); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(detailSheet, "A1", cell(colName(len(scheduleExportHeader)-1), 1), headerStyle); err != nil {
		return nil, err
	}
	for i := range report.Schedules {
		if err := writeSheetRow(f, detailSheet, i+2, scheduleExportRow(&report.Schedules[i])); err != nil {
			return nil, err
		}
	}

	// 统计
	row := 1
	summary := [][]string{
		{"总数", fmt.Sprint(report.Stats.Total)},
		{"已排班", fmt.Sprint(report.Stats.Scheduled)},
		{"已确认", fmt.Sprint(report.Stats.Confirmed)},
		{"已取消", fmt.Sprint(report.Stats.Cancelled)},
	}
	for _, r := range summary {
		if err := writeSheetRow(f, statsSheet, row, r); err != nil {
			return nil, err
		}
		row++
	}

	row++
	if err := writeSheetRow(f, statsSheet, row, []string{"班别", "数量"}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(statsSheet, cell("A", row), cell("B", row), headerStyle); err != nil {
		return nil, err
	}
	row++
	for _, sc := range report.ShiftStats {
		if err := writeSheetRow(f, statsSheet, row, []string{shiftLabel(sc.ShiftType), fmt.Sprint(sc.Count)}); err != nil {
			return nil, err
		}
		row++
	}

	row++
	if err := writeSheetRow(f, statsSheet, row, []string{"志工", "排班数"}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(statsSheet, cell("A", row), cell("B", row), headerStyle); err != nil {
		return nil, err
	}
	row++
	for _, vc := range report.VolunteerStats {
		if err := writeSheetRow(f, statsSheet, row, []string{vc.VolunteerName, fmt.Sprint(vc.ScheduleCount)}); err != nil {
			return nil, err
		}
		row++
	}
	if err := f.SetColWidth(statsSheet, "A", "B", 16); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []string) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cell(colName(i), row), v); err != nil {
			return err
		}
	}
	return nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
