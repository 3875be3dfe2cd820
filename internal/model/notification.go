package model

import (
	"time"

	"gorm.io/datatypes"
)

// 通知类型
const (
	NotificationTypeInfo     = "info"
	NotificationTypeSystem   = "system"
	NotificationTypeSchedule = "schedule"
	NotificationTypeWarning  = "warning"
	NotificationTypeAlert    = "alert"
)

// 通知优先级
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification 通知表，对应 notifications
// ScheduledTime 仅做记录，系统不会按时派送
type Notification struct {
	BaseModel
	Title         string                    `gorm:"type:varchar(200);not null"               json:"title"`
	Content       string                    `gorm:"type:text;not null"                       json:"content"`
	Type          string                    `gorm:"type:varchar(20);not null;default:'info';index" json:"type"`
	Priority      string                    `gorm:"type:varchar(20);not null;default:'normal'"     json:"priority"`
	IsBroadcast   bool                      `gorm:"not null;default:false"                   json:"is_broadcast"`
	RecipientIDs  datatypes.JSONSlice[uint] `json:"recipient_ids"`
	ScheduledTime *time.Time                `json:"scheduled_time,omitempty"`
	SenderID      *uint                     `gorm:"index"                                    json:"sender_id,omitempty"`
	IsRead        bool                      `gorm:"not null;default:false;index"             json:"is_read"`
	ScheduleID    *uint                     `gorm:"index"                                    json:"schedule_id,omitempty"` // 排班提醒对应的排班

	// 关联
	Sender *User `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL" json:"sender,omitempty"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
