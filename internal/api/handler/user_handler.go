package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/service"
	"github.com/guimashan/staff-schedule/pkg/response"
)

// UserHandler 用户管理 HTTP 处理器（管理员）
type UserHandler struct {
	userSvc service.UserService
	*Responder
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService, rsp *Responder) *UserHandler {
	return &UserHandler{userSvc: userSvc, Responder: rsp}
}

// CreateUser 创建用户
// POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.userSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, user)
}

// ListUsers 用户列表
// GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.userSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OKPage(c, page.Items, page.Total, page.Page, page.Limit)
}

// GetUser 获取用户详情
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, user)
}

// AssignRole 分配角色
// PUT /api/v1/users/:id/role
func (h *UserHandler) AssignRole(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.AssignRoleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.userSvc.AssignRole(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, user)
}

// SetStatus 启用 / 停用用户
// PUT /api/v1/users/:id/status
func (h *UserHandler) SetStatus(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateUserStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.userSvc.SetStatus(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, user)
}

// ResetPassword 重置为临时密码
// POST /api/v1/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.userSvc.ResetPassword(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}
