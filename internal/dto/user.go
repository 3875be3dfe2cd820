package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role    string `form:"role"    binding:"omitempty,oneof=admin editor user"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// AssignRoleRequest 分配角色请求
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin editor user"`
}

// UpdateUserStatusRequest 启用 / 停用用户
type UpdateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Status      string   `json:"status"`
	Permissions []string `json:"permissions"`
	LastLogin   string   `json:"last_login,omitempty"`
	CreatedAt   string   `json:"created_at"`

	// PasswordExpired 密码超过有效期未修改，前端应提示修改
	PasswordExpired bool `json:"password_expired"`
}

// ResetPasswordResponse 管理员重置密码结果，临时密码仅返回一次
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password"`
}

// CreateUserRequest 管理员创建用户
type CreateUserRequest struct {
	Name     string `json:"name"     binding:"required,min=2,max=50"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=64,strong_password"`
	Role     string `json:"role"     binding:"required,oneof=admin editor user"`
}
