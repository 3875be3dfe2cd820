package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/service"
	"github.com/guimashan/staff-schedule/pkg/response"
)

// maxImportFileSize 导入文件大小上限
const maxImportFileSize = 5 << 20

// VolunteerHandler 志工模块 HTTP 处理器
type VolunteerHandler struct {
	volunteerSvc service.VolunteerService
	*Responder
}

// NewVolunteerHandler 创建 VolunteerHandler
func NewVolunteerHandler(volunteerSvc service.VolunteerService, rsp *Responder) *VolunteerHandler {
	return &VolunteerHandler{volunteerSvc: volunteerSvc, Responder: rsp}
}

// ────── Create ──────

// Create 新增志工
// POST /api/v1/volunteers
func (h *VolunteerHandler) Create(c *gin.Context) {
	var req dto.CreateVolunteerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	v, err := h.volunteerSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, v)
}

// Import 从 CSV / XLSX 批量导入
// POST /api/v1/volunteers/import (multipart, 字段 file)
func (h *VolunteerHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.ValidationFailed(c, CodeInvalidParam, "请上传导入文件", []string{"file"})
		return
	}
	if fh.Size > maxImportFileSize {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "导入文件过大")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.internal(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImportFileSize))
	if err != nil {
		h.internal(c, err)
		return
	}

	result, err := h.volunteerSvc.Import(c.Request.Context(), fh.Filename, data)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}

// ────── Read ──────

// Get 志工详情
// GET /api/v1/volunteers/:id
func (h *VolunteerHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	v, err := h.volunteerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, v)
}

// List 志工列表
// GET /api/v1/volunteers
func (h *VolunteerHandler) List(c *gin.Context) {
	var req dto.VolunteerListRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.volunteerSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OKPage(c, page.Items, page.Total, page.Page, page.Limit)
}

// Stats 志工统计
// GET /api/v1/volunteers/stats
func (h *VolunteerHandler) Stats(c *gin.Context) {
	var req dto.VolunteerFilterRequest
	if !h.bindQuery(c, &req) {
		return
	}

	stats, err := h.volunteerSvc.Stats(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, stats)
}

// ────── Update / Delete ──────

// Update 更新志工
// PUT /api/v1/volunteers/:id
func (h *VolunteerHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateVolunteerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	v, err := h.volunteerSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, v)
}

// Delete 删除志工（仍有排班时拒绝）
// DELETE /api/v1/volunteers/:id
func (h *VolunteerHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.volunteerSvc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, nil)
}
