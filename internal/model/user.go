package model

import "time"

// 用户角色
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleUser   = "user"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// 权限
const (
	PermRead        = "read"
	PermWrite       = "write"
	PermDelete      = "delete"
	PermManageUsers = "manage_users"
)

var rolePermissions = map[string][]string{
	RoleAdmin:  {PermRead, PermWrite, PermDelete, PermManageUsers},
	RoleEditor: {PermRead, PermWrite},
	RoleUser:   {PermRead},
}

// HasPermission 角色是否拥有指定权限
func HasPermission(role, perm string) bool {
	return contains(rolePermissions[role], perm)
}

// Permissions 角色拥有的权限列表（副本）
func Permissions(role string) []string {
	return append([]string{}, rolePermissions[role]...)
}

// IsValidRole 角色是否存在
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// User 后台用户表，对应 users
type User struct {
	BaseModel
	Name              string     `gorm:"type:varchar(100);not null"                 json:"name"`
	Email             string     `gorm:"type:varchar(255);not null;uniqueIndex"     json:"email"`
	PasswordHash      string     `gorm:"type:varchar(255);not null"                 json:"-"`
	Role              string     `gorm:"type:varchar(20);not null;default:'user'"   json:"role"`
	Status            string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"` // active | inactive
	LastLogin         *time.Time `json:"last_login,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }
