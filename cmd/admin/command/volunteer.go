package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/guimashan/staff-schedule/internal/bootstrap"
)

var importVolunteersCmd = &cobra.Command{
	Use:   "import-volunteers [file]",
	Short: "从 CSV / XLSX 批量导入志工",
	Long: `表头需包含 name、phone、email，可选 department、skills、experience_years、status
（也接受中文表头：姓名、电话、邮箱、部门、技能、年资、状态）。
每行独立导入，失败行跳过并列出原因。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取文件失败: %w", err)
		}

		return withApp(cmd, true, func(ctx context.Context, app *bootstrap.App) error {
			result, err := app.Service.Volunteer.Import(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return fmt.Errorf("导入失败: %w", err)
			}

			fmt.Printf("共 %d 行，成功 %d，失败 %d\n", result.Total, result.Imported, result.Failed)
			for _, e := range result.Errors {
				fmt.Printf("  第 %d 行: %s\n", e.Row, e.Reason)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importVolunteersCmd)
}
