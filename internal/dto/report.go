package dto

// ── 报表模块 DTO ──

// DashboardResponse 总览
type DashboardResponse struct {
	TotalVolunteers       int64        `json:"totalVolunteers"`
	ActiveVolunteers      int64        `json:"activeVolunteers"`
	TotalSchedules        int64        `json:"totalSchedules"`
	ConfirmedSchedules    int64        `json:"confirmedSchedules"`
	VolunteerByDepartment []LabelCount `json:"volunteerByDepartment"`
	ScheduleByMonth       []LabelCount `json:"scheduleByMonth"`
}

// VolunteerReportResponse 志工报表
type VolunteerReportResponse struct {
	Volunteers      []VolunteerResponse    `json:"volunteers"`
	Stats           VolunteerStatsResponse `json:"stats"`
	DepartmentStats []LabelCount           `json:"departmentStats"`
	SkillStats      []LabelCount           `json:"skillStats"`
}

// ScheduleReportResponse 排班报表
type ScheduleReportResponse struct {
	Schedules      []ScheduleResponse       `json:"schedules"`
	Stats          ScheduleStatsResponse    `json:"stats"`
	ShiftStats     []ShiftTypeCount         `json:"shiftStats"`
	VolunteerStats []VolunteerScheduleCount `json:"volunteerStats"`
}

// ExportFile 导出文件
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
