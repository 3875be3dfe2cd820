package handler

import (
	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Volunteer    *VolunteerHandler
	Schedule     *ScheduleHandler
	Notification *NotificationHandler
	Report       *ReportHandler
}

// Options Handler 层可调参数
type Options struct {
	// Debug 为 true 时 500 响应附带内部错误详情
	Debug bool
	// Cookie 非 nil 时登录/刷新同时写入 refresh_token Cookie
	Cookie *CookieOptions
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, opts Options, logger *zap.Logger) *Handler {
	rsp := NewResponder(logger, opts.Debug)
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, opts.Cookie, rsp),
		User:         NewUserHandler(svc.User, rsp),
		Volunteer:    NewVolunteerHandler(svc.Volunteer, rsp),
		Schedule:     NewScheduleHandler(svc.Schedule, rsp),
		Notification: NewNotificationHandler(svc.Notification, rsp),
		Report:       NewReportHandler(svc.Report, rsp),
	}
}
