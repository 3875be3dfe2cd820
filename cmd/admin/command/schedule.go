package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/guimashan/staff-schedule/internal/bootstrap"
	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/service"
)

var (
	exportFormat string
	exportOut    string
	exportFilter dto.ScheduleFilterRequest

	remindWindow time.Duration
)

var exportSchedulesCmd = &cobra.Command{
	Use:     "export-schedules",
	Short:   "导出排班报表（excel / csv）",
	Example: `  staffctl export-schedules --format csv --from 2024-01-01 --to 2024-01-31 --out ./exports`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, app *bootstrap.App) error {
			file, err := app.Service.Report.Export(ctx, exportFormat, &exportFilter)
			if err != nil {
				return fmt.Errorf("导出失败: %w", err)
			}

			path := exportOut
			if info, err := os.Stat(exportOut); err == nil && info.IsDir() {
				path = filepath.Join(exportOut, file.Filename)
			}
			if err := os.WriteFile(path, file.Data, 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}

			fmt.Printf("✓ 已导出 %s (%d 字节)\n", path, len(file.Data))
			return nil
		})
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "为即将开始的已确认排班生成提醒通知",
	Long:  `适合由 cron 定时调用；同一排班重复执行会重复生成通知，调用间隔应与 --window 一致。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, app *bootstrap.App) error {
			n, err := app.Service.Notification.RemindUpcoming(ctx, time.Now(), remindWindow)
			if err != nil {
				return fmt.Errorf("生成提醒失败: %w", err)
			}
			fmt.Printf("✓ 已生成 %d 条提醒\n", n)
			return nil
		})
	},
}

func init() {
	f := exportSchedulesCmd.Flags()
	f.StringVar(&exportFormat, "format", service.ExportFormatExcel, "导出格式: excel | csv")
	f.StringVar(&exportOut, "out", ".", "输出文件或目录")
	f.StringVar(&exportFilter.Status, "status", "", "排班状态")
	f.StringVar(&exportFilter.ShiftType, "shift-type", "", "班别")
	f.UintVar(&exportFilter.VolunteerID, "volunteer-id", 0, "志工 ID")
	f.StringVar(&exportFilter.DateFrom, "from", "", "起始日期 YYYY-MM-DD")
	f.StringVar(&exportFilter.DateTo, "to", "", "结束日期 YYYY-MM-DD（含当天）")

	remindCmd.Flags().DurationVar(&remindWindow, "window", 24*time.Hour, "提醒窗口：此时间内开始的排班")

	rootCmd.AddCommand(exportSchedulesCmd, remindCmd)
}
