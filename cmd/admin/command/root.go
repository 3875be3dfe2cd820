package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guimashan/staff-schedule/internal/bootstrap"
)

var cfgFile string

// rootCmd staffctl 根命令
var rootCmd = &cobra.Command{
	Use:   "staffctl",
	Short: "staffctl - 志工排班系统运维工具",
	Long: `staffctl 直接连接数据库执行运维操作：
- 同步表结构
- 创建管理员等账号
- 批量导入志工、导出排班报表
- 为即将开始的排班生成提醒通知

配置读取方式与 HTTP 服务相同（config.yaml、.env、STAFF_ 环境变量）。`,
	SilenceUsage: true,
}

// Execute 执行根命令，由 main 调用
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 ./config/config.yaml）")
}

// withApp 初始化依赖后执行 fn，Ctrl+C 取消 ctx
func withApp(cmd *cobra.Command, migrate bool, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile, Migrate: migrate})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, app)
}
