package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guimashan/staff-schedule/internal/bootstrap"
	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
)

var (
	userName     string
	userEmail    string
	userPassword string
	userRole     string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "创建后台账号（首次部署用于创建管理员）",
	Example: `  staffctl create-user --name 管理员 --email admin@example.com --password 'Admin@123' --role admin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, app *bootstrap.App) error {
			user, err := app.Service.User.Create(ctx, &dto.CreateUserRequest{
				Name:     userName,
				Email:    userEmail,
				Password: userPassword,
				Role:     userRole,
			})
			if err != nil {
				return fmt.Errorf("创建用户失败: %w", err)
			}

			fmt.Println("✓ 用户创建成功")
			fmt.Printf("ID: %d\n", user.ID)
			fmt.Printf("邮箱: %s\n", user.Email)
			fmt.Printf("角色: %s\n", user.Role)
			return nil
		})
	},
}

func init() {
	f := createUserCmd.Flags()
	f.StringVar(&userName, "name", "", "姓名")
	f.StringVar(&userEmail, "email", "", "登录邮箱")
	f.StringVar(&userPassword, "password", "", "初始密码（至少 8 位，含大写字母、数字与特殊字符）")
	f.StringVar(&userRole, "role", model.RoleAdmin, "角色: admin | editor | user")
	_ = createUserCmd.MarkFlagRequired("name")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(createUserCmd)
}
