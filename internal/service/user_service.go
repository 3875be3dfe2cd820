package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
	"github.com/guimashan/staff-schedule/pkg/validate"
)

// ── 用户模块业务错误 ──

var (
	ErrUserSelfRoleChange = pkgerrors.Kind(pkgerrors.ErrValidation, "不能修改自己的角色")
	ErrUserSelfDisable    = pkgerrors.Kind(pkgerrors.ErrValidation, "不能停用自己的账号")
)

// tempPasswordLength 重置密码生成的临时密码长度
const tempPasswordLength = 12

// UserService 后台用户管理接口
type UserService interface {
	Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.UserResponse, error)
	List(ctx context.Context, req *dto.UserListRequest) (*dto.PageResult[dto.UserResponse], error)
	AssignRole(ctx context.Context, id uint, req *dto.AssignRoleRequest, callerID uint) (*dto.UserResponse, error)
	SetStatus(ctx context.Context, id uint, req *dto.UpdateUserStatusRequest, callerID uint) (*dto.UserResponse, error)
	// ResetPassword 生成临时密码，并标记为已过期以提示用户修改
	ResetPassword(ctx context.Context, id uint) (*dto.ResetPasswordResponse, error)
}

type userService struct {
	opts   Options
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(opts Options, repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{opts: opts, repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if !model.IsValidRole(req.Role) {
		return nil, pkgerrors.NewValidationError("角色无效", "role")
	}
	if problems := validate.PasswordProblems(req.Password); len(problems) > 0 {
		return nil, pkgerrors.NewValidationError(strings.Join(problems, "；"), "password")
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := ensureUserEmailFree(ctx, s.repo, email, 0); err != nil {
		return nil, storageError(s.logger, "创建用户", err)
	}

	hash, err := hashPassword(req.Password, s.opts.BcryptCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		Name:              strings.TrimSpace(req.Name),
		Email:             email,
		PasswordHash:      hash,
		Role:              req.Role,
		Status:            model.UserStatusActive,
		PasswordChangedAt: &now,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		return nil, storageError(s.logger, "创建用户", uniqueViolation(err, ErrEmailExists), zap.String("email", email))
	}

	s.logger.Info("创建用户", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return toUserResponse(user, now), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *userService) GetByID(ctx context.Context, id uint) (*dto.UserResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user, time.Now()), nil
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) (*dto.PageResult[dto.UserResponse], error) {
	if fields := req.PaginationRequest.Validate(); len(fields) > 0 {
		return nil, pkgerrors.NewValidationError("分页参数无效", fields...)
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	filter := repository.UserFilter{Role: req.Role, Keyword: strings.TrimSpace(req.Keyword)}
	users, total, err := s.repo.User.List(ctx, filter, req.GetOffset(), req.GetLimit())
	if err != nil {
		return nil, storageError(s.logger, "查询用户列表", err)
	}

	now := time.Now()
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, *toUserResponse(&users[i], now))
	}
	return &dto.PageResult[dto.UserResponse]{
		Items: items,
		Total: total,
		Page:  req.GetPage(),
		Limit: req.GetLimit(),
	}, nil
}

// ────────────────────── AssignRole ──────────────────────

func (s *userService) AssignRole(ctx context.Context, id uint, req *dto.AssignRoleRequest, callerID uint) (*dto.UserResponse, error) {
	if id == callerID {
		return nil, ErrUserSelfRoleChange
	}
	if !model.IsValidRole(req.Role) {
		return nil, pkgerrors.NewValidationError("角色无效", "role")
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = req.Role
	if err := s.repo.User.Update(ctx, user); err != nil {
		return nil, storageError(s.logger, "分配角色", err, zap.Uint("user_id", id))
	}

	s.logger.Info("用户角色变更", zap.Uint("user_id", id), zap.String("role", req.Role), zap.Uint("by", callerID))
	return toUserResponse(user, time.Now()), nil
}

// ────────────────────── SetStatus ──────────────────────

func (s *userService) SetStatus(ctx context.Context, id uint, req *dto.UpdateUserStatusRequest, callerID uint) (*dto.UserResponse, error) {
	if req.Status != model.UserStatusActive && req.Status != model.UserStatusInactive {
		return nil, pkgerrors.NewValidationError("状态无效", "status")
	}
	if id == callerID && req.Status == model.UserStatusInactive {
		return nil, ErrUserSelfDisable
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Status = req.Status
	if err := s.repo.User.Update(ctx, user); err != nil {
		return nil, storageError(s.logger, "更新用户状态", err, zap.Uint("user_id", id))
	}
	return toUserResponse(user, time.Now()), nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *userService) ResetPassword(ctx context.Context, id uint) (*dto.ResetPasswordResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	tempPassword, err := generateTempPassword(tempPasswordLength)
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return nil, err
	}
	hash, err := hashPassword(tempPassword, s.opts.BcryptCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	// 修改时间回拨到有效期之前，登录后即提示修改
	expired := time.Now().UTC().Add(-PasswordMaxAge - time.Hour)
	user.PasswordHash = hash
	user.PasswordChangedAt = &expired

	if err := s.repo.User.Update(ctx, user); err != nil {
		return nil, storageError(s.logger, "重置密码", err, zap.Uint("user_id", id))
	}
	return &dto.ResetPasswordResponse{TempPassword: tempPassword}, nil
}

func (s *userService) load(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError(s.logger, "查询用户", err, zap.Uint("user_id", id))
	}
	return user, nil
}

// generateTempPassword 生成满足密码强度要求的临时密码
// 保证至少包含大写、小写、数字、特殊字符各 1 个
func generateTempPassword(length int) (string, error) {
	const upper = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	const lower = "abcdefghijkmnpqrstuvwxyz"
	const digits = "23456789"
	const specials = "@$!%*?&"
	const all = upper + lower + digits + specials

	if length < validate.PasswordMinLength {
		length = validate.PasswordMinLength
	}

	result := make([]byte, 0, length)
	for _, set := range []string{upper, lower, digits, specials} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		result = append(result, c)
	}
	for len(result) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		result = append(result, c)
	}

	// Fisher-Yates 洗牌
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		result[i], result[j.Int64()] = result[j.Int64()], result[i]
	}
	return string(result), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
