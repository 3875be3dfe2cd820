package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/internal/api/middleware"
	"github.com/guimashan/staff-schedule/internal/service"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
	"github.com/guimashan/staff-schedule/pkg/response"
	"github.com/guimashan/staff-schedule/pkg/validate"
)

// ── 错误码 ──
// 1xxxx 通用，11xxx 认证，12xxx 用户，13xxx 排班，14xxx 志工，15xxx 通知，16xxx 报表

const (
	CodeInvalidParam = 10001
	CodeNotFound     = 10006
	CodeConflict     = 10009
)

// businessCodes 业务哨兵错误对应的细分错误码
var businessCodes = []struct {
	err  error
	code int
}{
	{service.ErrInvalidCredentials, 11001},
	{service.ErrAccountDisabled, 11002},
	{service.ErrInvalidRefreshToken, 11003},
	{service.ErrTokenRevoked, 11004},
	{service.ErrWrongPassword, 11005},
	{service.ErrEmailExists, 11009},
	{service.ErrUserNotFound, 12004},
	{service.ErrUserSelfRoleChange, 12101},
	{service.ErrUserSelfDisable, 12102},
	{service.ErrScheduleNotFound, 13004},
	{service.ErrScheduleConflict, 13009},
	{service.ErrVolunteerNotFound, 14004},
	{service.ErrVolunteerEmailExists, 14009},
	{service.ErrVolunteerHasSchedules, 14010},
	{service.ErrNotificationNotFound, 15004},
}

func businessCode(err error, fallback int) int {
	for _, bc := range businessCodes {
		if errors.Is(err, bc.err) {
			return bc.code
		}
	}
	return fallback
}

// Responder 统一的参数绑定与错误响应
// nil Responder 可用：不记录日志，不暴露错误详情
type Responder struct {
	logger *zap.Logger
	debug  bool
}

// NewResponder 创建 Responder
func NewResponder(logger *zap.Logger, debug bool) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{logger: logger, debug: debug}
}

// fail 按错误类别写入响应
func (r *Responder) fail(c *gin.Context, err error) {
	var (
		ve *pkgerrors.ValidationError
		ce *pkgerrors.ConflictError
	)

	switch {
	case errors.As(err, &ve):
		response.ValidationFailed(c, CodeInvalidParam, ve.Message, ve.Fields)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrTokenRevoked):
		response.Unauthorized(c, businessCode(err, 10002), err.Error())
	case errors.Is(err, service.ErrAccountDisabled):
		response.Forbidden(c, businessCode(err, 10003), err.Error())
	case errors.Is(err, pkgerrors.ErrValidation):
		response.BadRequest(c, businessCode(err, CodeInvalidParam), err.Error())
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, businessCode(err, CodeNotFound), err.Error())
	case errors.As(err, &ce):
		code := businessCode(err, CodeConflict)
		if ce.ConflictingID != 0 {
			response.ErrorWithData(c, http.StatusConflict, code, ce.Message, gin.H{"conflicting_id": ce.ConflictingID})
			return
		}
		response.Conflict(c, code, ce.Message)
	case errors.Is(err, pkgerrors.ErrConflict):
		response.Conflict(c, businessCode(err, CodeConflict), err.Error())
	default:
		r.internal(c, err)
	}
}

// internal 500：记录日志，开发模式下附带详情
func (r *Responder) internal(c *gin.Context, err error) {
	_ = c.Error(err)
	logger, debug := zap.NewNop(), false
	if r != nil {
		logger, debug = r.logger, r.debug
	}
	logger.Error("请求处理失败",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	if debug {
		response.ErrorWithDetails(c, http.StatusInternalServerError, 50000, "服务器内部错误", err.Error())
		return
	}
	response.InternalError(c)
}

// ── 参数绑定 ──

// bindJSON 绑定 JSON 请求体，失败时写入 400 并返回 false
func (r *Responder) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		r.bindFailed(c, err)
		return false
	}
	return true
}

// bindQuery 绑定查询参数，失败时写入 400 并返回 false
func (r *Responder) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		r.bindFailed(c, err)
		return false
	}
	return true
}

func (r *Responder) bindFailed(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	if fields := validate.FieldErrors(err); len(fields) > 0 {
		response.ValidationFailed(c, CodeInvalidParam, "参数校验失败", fields)
		return
	}
	response.BadRequest(c, CodeInvalidParam, "请求格式错误")
}

// parseID 解析路径参数中的正整数 ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.ValidationFailed(c, CodeInvalidParam, "ID 格式无效", []string{name})
		return 0, false
	}
	return uint(id), true
}
