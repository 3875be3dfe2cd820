package model

import "time"

// 排班状态
const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusConfirmed = "confirmed"
	ScheduleStatusCancelled = "cancelled"
)

// 班别
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftEvening   = "evening"
	ShiftAllDay    = "all_day"
	ShiftNight     = "night"
)

// ShiftTypes 全部合法班别
var ShiftTypes = []string{ShiftMorning, ShiftAfternoon, ShiftEvening, ShiftAllDay, ShiftNight}

// ScheduleStatuses 全部合法排班状态
var ScheduleStatuses = []string{ScheduleStatusScheduled, ScheduleStatusConfirmed, ScheduleStatusCancelled}

// Schedule 排班表，对应 schedules
// 同一志工的非取消排班在 [StartTime, EndTime) 上两两不重叠
type Schedule struct {
	BaseModel
	VolunteerID uint      `gorm:"not null;index"                               json:"volunteer_id"`
	StartTime   time.Time `gorm:"not null;index"                               json:"start_time"`
	EndTime     time.Time `gorm:"not null"                                     json:"end_time"`
	ShiftType   string    `gorm:"type:varchar(20);not null;default:'morning';index" json:"shift_type"`
	Location    string    `gorm:"type:varchar(200)"                            json:"location"`
	Notes       string    `gorm:"type:text"                                    json:"notes"`
	Status      string    `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	CreatedBy   *uint     `json:"created_by,omitempty"`
	UpdatedBy   *uint     `json:"updated_by,omitempty"`

	// 关联（读取时联表，用于 volunteer_name / volunteer_department）
	Volunteer *Volunteer `gorm:"foreignKey:VolunteerID;constraint:OnDelete:RESTRICT" json:"volunteer,omitempty"`
}

// TableName 指定表名
func (Schedule) TableName() string { return "schedules" }

// IsActive 取消的排班不参与冲突判断
func (s *Schedule) IsActive() bool {
	return s.Status != ScheduleStatusCancelled
}

// Overlaps 半开区间 [aStart, aEnd) 与 [bStart, bEnd) 是否重叠
// 首尾相接不算重叠
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// IsValidShiftType 班别是否合法
func IsValidShiftType(s string) bool {
	return contains(ShiftTypes, s)
}

// IsValidScheduleStatus 排班状态是否合法
func IsValidScheduleStatus(s string) bool {
	return contains(ScheduleStatuses, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
