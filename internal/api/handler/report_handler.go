package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/service"
	"github.com/guimashan/staff-schedule/pkg/response"
)

// ReportHandler 报表模块 HTTP 处理器
type ReportHandler struct {
	reportSvc service.ReportService
	*Responder
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportSvc service.ReportService, rsp *Responder) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc, Responder: rsp}
}

// Dashboard 仪表盘总览
// GET /api/v1/reports/dashboard
func (h *ReportHandler) Dashboard(c *gin.Context) {
	result, err := h.reportSvc.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}

// VolunteerReport 志工报表
// GET /api/v1/reports/volunteers
func (h *ReportHandler) VolunteerReport(c *gin.Context) {
	var req dto.VolunteerFilterRequest
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.reportSvc.VolunteerReport(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}

// ScheduleReport 排班报表
// GET /api/v1/reports/schedules
func (h *ReportHandler) ScheduleReport(c *gin.Context) {
	var req dto.ScheduleFilterRequest
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.reportSvc.ScheduleReport(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}

// Export 导出排班报表
// GET /api/v1/reports/export/:format （excel | csv）
func (h *ReportHandler) Export(c *gin.Context) {
	var req dto.ScheduleFilterRequest
	if !h.bindQuery(c, &req) {
		return
	}

	file, err := h.reportSvc.Export(c.Request.Context(), c.Param("format"), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	sendFile(c, file)
}

// sendFile 以附件形式下载
func sendFile(c *gin.Context, file *dto.ExportFile) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
