package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/service"
	"github.com/guimashan/staff-schedule/pkg/response"
)

// NotificationHandler 通知模块 HTTP 处理器
type NotificationHandler struct {
	notificationSvc service.NotificationService
	*Responder
}

// NewNotificationHandler 创建 NotificationHandler
func NewNotificationHandler(notificationSvc service.NotificationService, rsp *Responder) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc, Responder: rsp}
}

// Create 发布通知，发送者为当前用户
// POST /api/v1/notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	senderID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateNotificationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	n, err := h.notificationSvc.Create(c.Request.Context(), &req, senderID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, n)
}

// Get 通知详情
// GET /api/v1/notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	n, err := h.notificationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, n)
}

// List 通知列表
// GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	var req dto.NotificationListRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.notificationSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OKPage(c, page.Items, page.Total, page.Page, page.Limit)
}

// Unread 最新未读通知
// GET /api/v1/notifications/unread
func (h *NotificationHandler) Unread(c *gin.Context) {
	items, err := h.notificationSvc.Unread(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// Stats 通知统计
// GET /api/v1/notifications/stats
func (h *NotificationHandler) Stats(c *gin.Context) {
	stats, err := h.notificationSvc.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, stats)
}

// Update 更新通知
// PUT /api/v1/notifications/:id
func (h *NotificationHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateNotificationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	n, err := h.notificationSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, n)
}

// MarkRead 标记已读
// PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationSvc.MarkRead(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, nil)
}

// MarkAllRead 全部标记已读
// PUT /api/v1/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	result, err := h.notificationSvc.MarkAllRead(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}

// Delete 删除通知
// DELETE /api/v1/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationSvc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, nil)
}
