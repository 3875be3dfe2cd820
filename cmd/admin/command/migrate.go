package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guimashan/staff-schedule/internal/bootstrap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "同步数据库表结构",
	Long:  `postgres 执行版本化 SQL 迁移；sqlite / mysql 使用 GORM AutoMigrate。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(_ context.Context, app *bootstrap.App) error {
			fmt.Printf("✓ 表结构已同步 (driver=%s)\n", app.Config.Database.Driver)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
