package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/config"
	"github.com/guimashan/staff-schedule/internal/api/handler"
	"github.com/guimashan/staff-schedule/internal/api/middleware"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/pkg/jwt"
)

// Deps 路由依赖的外部组件，Redis 未启用时 Tokens / Limiter 为 nil
type Deps struct {
	JWT     *jwt.Manager
	Tokens  middleware.TokenChecker
	Limiter middleware.RateCounter
	// Ping 健康检查时探测数据库，nil 表示跳过
	Ping func(ctx context.Context) error
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, deps Deps, logger *zap.Logger) *gin.Engine {
	if cfg.Server.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(!cfg.Server.IsDevelopment()))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limits := cfg.RateLimit
	limit := func(scope string, rule config.LimitRule) gin.HandlerFunc {
		return middleware.RateLimit(deps.Limiter, scope, rule, logger)
	}

	canWrite := middleware.RequirePermission(model.PermWrite)
	canDelete := middleware.RequirePermission(model.PermDelete)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(limit("api", limits.API))
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", limit("login", limits.Login), h.Auth.Login)
			auth.POST("/register", limit("register", limits.Register), h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(deps.JWT, deps.Tokens))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/profile", h.Auth.UpdateProfile)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户管理（管理员）
			users := authorized.Group("/users")
			users.Use(middleware.RequirePermission(model.PermManageUsers))
			{
				users.POST("", h.User.CreateUser)
				users.GET("", h.User.ListUsers)
				users.GET("/:id", h.User.GetUser)
				users.PUT("/:id/role", h.User.AssignRole)
				users.PUT("/:id/status", h.User.SetStatus)
				users.POST("/:id/reset-password", h.User.ResetPassword)
			}

			// 志工模块
			volunteers := authorized.Group("/volunteers")
			{
				volunteers.GET("", h.Volunteer.List)
				volunteers.GET("/stats", h.Volunteer.Stats)
				volunteers.GET("/:id", h.Volunteer.Get)
				volunteers.POST("", canWrite, h.Volunteer.Create)
				volunteers.POST("/import", canWrite, h.Volunteer.Import)
				volunteers.PUT("/:id", canWrite, h.Volunteer.Update)
				volunteers.DELETE("/:id", canDelete, h.Volunteer.Delete)
			}

			// 排班模块
			schedules := authorized.Group("/schedules")
			{
				schedules.GET("", h.Schedule.List)
				schedules.GET("/stats", h.Schedule.Stats)
				schedules.GET("/monthly", h.Schedule.Monthly)
				schedules.GET("/calendar.ics", h.Schedule.Calendar)
				schedules.GET("/:id", h.Schedule.Get)
				schedules.POST("", canWrite, h.Schedule.Create)
				schedules.POST("/recurring", canWrite, h.Schedule.CreateRecurring)
				schedules.PUT("/:id", canWrite, h.Schedule.Update)
				schedules.DELETE("/:id", canDelete, h.Schedule.Delete)
			}

			// 通知模块
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.GET("/unread", h.Notification.Unread)
				notifications.GET("/stats", h.Notification.Stats)
				notifications.GET("/:id", h.Notification.Get)
				notifications.PUT("/mark-all-read", h.Notification.MarkAllRead)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
				notifications.POST("", canWrite, h.Notification.Create)
				notifications.PUT("/:id", canWrite, h.Notification.Update)
				notifications.DELETE("/:id", canDelete, h.Notification.Delete)
			}

			// 报表模块
			reports := authorized.Group("/reports")
			{
				reports.GET("/dashboard", h.Report.Dashboard)
				reports.GET("/volunteers", h.Report.VolunteerReport)
				reports.GET("/schedules", h.Report.ScheduleReport)
				reports.GET("/export/:format", limit("export", limits.Export), h.Report.Export)
			}
		}
	}

	return r
}
