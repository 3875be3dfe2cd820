package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/internal/api/handler"
	"github.com/guimashan/staff-schedule/internal/api/router"
	"github.com/guimashan/staff-schedule/internal/bootstrap"
	"github.com/guimashan/staff-schedule/pkg/validate"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认 ./config/config.yaml）")
	flag.Parse()

	// 1-5. 配置、日志、数据库（含迁移）、Redis、Service
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: *configPath, Migrate: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg, logger := app.Config, app.Logger
	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("redis", app.Redis != nil),
	)

	// 6. 注册自定义校验规则
	if err := validate.RegisterGin(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}

	// 7. Handler 与路由
	h := handler.NewHandler(app.Service, handler.Options{
		Debug: cfg.Server.IsDevelopment(),
		Cookie: &handler.CookieOptions{
			MaxAge: int(cfg.Auth.RefreshTokenTTL.Seconds()),
			Path:   "/api/v1/auth",
			Secure: !cfg.Server.IsDevelopment(),
		},
	}, logger)

	deps := router.Deps{JWT: app.JWT, Ping: app.Repo.Ping}
	if app.Redis != nil {
		deps.Tokens, deps.Limiter = app.Redis, app.Redis
	}
	engine := router.Setup(cfg, h, deps, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
}
