package dto

import "time"

// ── 排班模块 DTO ──

// CreateScheduleRequest 创建排班请求
// volunteer_id / start_time / end_time 的缺失由业务层统一报告
type CreateScheduleRequest struct {
	VolunteerID *uint      `json:"volunteer_id"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	ShiftType   string     `json:"shift_type" binding:"omitempty,shift_type"`
	Location    string     `json:"location"   binding:"omitempty,max=200"`
	Notes       string     `json:"notes"      binding:"omitempty,max=2000"`
	Status      string     `json:"status"     binding:"omitempty,schedule_status"`
}

// UpdateScheduleRequest 更新排班请求，仅更新非 nil 字段
type UpdateScheduleRequest struct {
	VolunteerID *uint      `json:"volunteer_id"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	ShiftType   *string    `json:"shift_type" binding:"omitempty,shift_type"`
	Location    *string    `json:"location"   binding:"omitempty,max=200"`
	Notes       *string    `json:"notes"      binding:"omitempty,max=2000"`
	Status      *string    `json:"status"     binding:"omitempty,schedule_status"`
}

// RecurringScheduleRequest 按 RRULE 批量创建排班
// StartTime / EndTime 为第一次班次
type RecurringScheduleRequest struct {
	CreateScheduleRequest
	RRule string `json:"rrule" binding:"required,max=500"`
}

// ScheduleListRequest 排班列表查询参数
type ScheduleListRequest struct {
	PaginationRequest
	ScheduleFilterRequest
}

// ScheduleFilterRequest 排班筛选条件（列表、统计、报表共用）
type ScheduleFilterRequest struct {
	Status      string `form:"status"       binding:"omitempty,schedule_status"`
	ShiftType   string `form:"shift_type"   binding:"omitempty,shift_type"`
	VolunteerID uint   `form:"volunteer_id"`
	DateFrom    string `form:"date_from"`
	DateTo      string `form:"date_to"`
	Search      string `form:"search"       binding:"omitempty,max=100"`
}

// MonthlyScheduleRequest 月视图查询参数
type MonthlyScheduleRequest struct {
	Year  int `form:"year"  binding:"required,min=2000,max=2100"`
	Month int `form:"month" binding:"required,min=1,max=12"`
}

// CalendarRequest 日历订阅参数
type CalendarRequest struct {
	VolunteerID uint `form:"volunteer_id" binding:"required"`
}

// ScheduleResponse 排班信息响应
// volunteer_name / volunteer_department 为读取时联表结果
type ScheduleResponse struct {
	ID                  uint   `json:"id"`
	VolunteerID         uint   `json:"volunteer_id"`
	VolunteerName       string `json:"volunteer_name"`
	VolunteerDepartment string `json:"volunteer_department"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	ShiftType           string `json:"shift_type"`
	Location            string `json:"location"`
	Notes               string `json:"notes"`
	Status              string `json:"status"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// ShiftTypeCount 按班别计数
type ShiftTypeCount struct {
	ShiftType string `json:"shift_type"`
	Count     int64  `json:"count"`
}

// VolunteerScheduleCount 志工排班数
type VolunteerScheduleCount struct {
	VolunteerID   uint   `json:"volunteer_id"`
	VolunteerName string `json:"volunteer_name"`
	ScheduleCount int64  `json:"schedule_count"`
}

// ScheduleStatsResponse 排班统计
type ScheduleStatsResponse struct {
	Total       int64                    `json:"total"`
	Scheduled   int64                    `json:"scheduled"`
	Confirmed   int64                    `json:"confirmed"`
	Cancelled   int64                    `json:"cancelled"`
	ByShiftType []ShiftTypeCount         `json:"byShiftType"`
	ByVolunteer []VolunteerScheduleCount `json:"byVolunteer"`
}
