package dto

import "time"

// ── 通知模块 DTO ──

// CreateNotificationRequest 创建通知请求
type CreateNotificationRequest struct {
	Title         string     `json:"title"          binding:"required,max=200"`
	Content       string     `json:"content"        binding:"required,max=5000"`
	Type          string     `json:"type"           binding:"omitempty,oneof=info system schedule warning alert"`
	Priority      string     `json:"priority"       binding:"omitempty,oneof=low normal high urgent"`
	IsBroadcast   bool       `json:"is_broadcast"`
	RecipientIDs  []uint     `json:"recipient_ids"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

// UpdateNotificationRequest 更新通知请求，仅更新非 nil 字段
type UpdateNotificationRequest struct {
	Title         *string    `json:"title"          binding:"omitempty,min=1,max=200"`
	Content       *string    `json:"content"        binding:"omitempty,min=1,max=5000"`
	Type          *string    `json:"type"           binding:"omitempty,oneof=info system schedule warning alert"`
	Priority      *string    `json:"priority"       binding:"omitempty,oneof=low normal high urgent"`
	IsBroadcast   *bool      `json:"is_broadcast"`
	RecipientIDs  []uint     `json:"recipient_ids"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	PaginationRequest
	Type   string `form:"type"    binding:"omitempty,oneof=info system schedule warning alert"`
	IsRead *bool  `form:"is_read"`
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Type          string `json:"type"`
	Priority      string `json:"priority"`
	IsBroadcast   bool   `json:"is_broadcast"`
	RecipientIDs  []uint `json:"recipient_ids"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
	SenderID      *uint  `json:"sender_id,omitempty"`
	SenderName    string `json:"sender_name,omitempty"`
	IsRead        bool   `json:"is_read"`
	ScheduleID    *uint  `json:"schedule_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// NotificationStatsResponse 通知统计
type NotificationStatsResponse struct {
	Total  int64        `json:"total"`
	Unread int64        `json:"unread"`
	Read   int64        `json:"read"`
	ByType []LabelCount `json:"byType"`
}

// MarkAllReadResponse 全部已读响应
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
