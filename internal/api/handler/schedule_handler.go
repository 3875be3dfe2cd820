package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/service"
	"github.com/guimashan/staff-schedule/pkg/response"
)

// ScheduleHandler 排班模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
	*Responder
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService, rsp *Responder) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc, Responder: rsp}
}

// ────── Create ──────

// Create 新增排班，与该志工已有的非取消排班时间重叠时返回 409
// POST /api/v1/schedules
func (h *ScheduleHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateScheduleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	s, err := h.scheduleSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, s)
}

// CreateRecurring 按 RRULE 批量新增，任一班次冲突则全部不写入
// POST /api/v1/schedules/recurring
func (h *ScheduleHandler) CreateRecurring(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RecurringScheduleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	items, err := h.scheduleSvc.CreateRecurring(c.Request.Context(), &req, callerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, gin.H{"list": items, "count": len(items)})
}

// ────── Read ──────

// Get 排班详情
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	s, err := h.scheduleSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, s)
}

// List 排班列表
// GET /api/v1/schedules
func (h *ScheduleHandler) List(c *gin.Context) {
	var req dto.ScheduleListRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.scheduleSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OKPage(c, page.Items, page.Total, page.Page, page.Limit)
}

// Stats 排班统计
// GET /api/v1/schedules/stats
func (h *ScheduleHandler) Stats(c *gin.Context) {
	var req dto.ScheduleFilterRequest
	if !h.bindQuery(c, &req) {
		return
	}

	stats, err := h.scheduleSvc.Stats(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, stats)
}

// Monthly 月历视图
// GET /api/v1/schedules/monthly?year=2024&month=1
func (h *ScheduleHandler) Monthly(c *gin.Context) {
	var req dto.MonthlyScheduleRequest
	if !h.bindQuery(c, &req) {
		return
	}

	items, err := h.scheduleSvc.Monthly(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// Calendar 志工排班 iCalendar 订阅
// GET /api/v1/schedules/calendar.ics?volunteer_id=1
func (h *ScheduleHandler) Calendar(c *gin.Context) {
	var req dto.CalendarRequest
	if !h.bindQuery(c, &req) {
		return
	}

	data, err := h.scheduleSvc.Calendar(c.Request.Context(), req.VolunteerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	sendFile(c, &dto.ExportFile{
		Filename:    fmt.Sprintf("volunteer-%d.ics", req.VolunteerID),
		ContentType: "text/calendar; charset=utf-8",
		Data:        data,
	})
}

// ────── Update / Delete ──────

// Update 更新排班，合并后重新检查冲突（排除自身）
// PUT /api/v1/schedules/:id
func (h *ScheduleHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateScheduleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	s, err := h.scheduleSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, s)
}

// Delete 删除排班
// DELETE /api/v1/schedules/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.scheduleSvc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, nil)
}
