package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
	"github.com/guimashan/staff-schedule/pkg/jwt"
	"github.com/guimashan/staff-schedule/pkg/validate"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials  = errors.New("邮箱或密码错误")
	ErrAccountDisabled     = errors.New("账号已停用")
	ErrInvalidRefreshToken = errors.New("刷新令牌无效或已过期")
	ErrTokenRevoked        = errors.New("Token 已注销")

	ErrUserNotFound  = pkgerrors.Kind(pkgerrors.ErrNotFound, "用户不存在")
	ErrEmailExists   = pkgerrors.Kind(pkgerrors.ErrConflict, "该邮箱已注册")
	ErrWrongPassword = pkgerrors.Kind(pkgerrors.ErrValidation, "当前密码错误")
)

// PasswordMaxAge 密码有效期，超过后登录响应提示修改
const PasswordMaxAge = 90 * 24 * time.Hour

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 将当前 Access Token 加入黑名单
	Logout(ctx context.Context, claims *jwt.Claims) error
	ChangePassword(ctx context.Context, userID uint, req *dto.ChangePasswordRequest) error
	Profile(ctx context.Context, userID uint) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uint, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
}

type authService struct {
	opts   Options
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	tokens TokenStore
	logger *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	opts Options,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	tokens TokenStore,
	logger *zap.Logger,
) AuthService {
	return &authService{
		opts:   opts,
		repo:   repo,
		jwtMgr: jwtMgr,
		tokens: tokens,
		logger: logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	if problems := validate.PasswordProblems(req.Password); len(problems) > 0 {
		return nil, pkgerrors.NewValidationError(strings.Join(problems, "；"), "password")
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := ensureUserEmailFree(ctx, s.repo, email, 0); err != nil {
		return nil, storageError(s.logger, "注册用户", err)
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
		Role:              model.RoleUser,
		Status:            model.UserStatusActive,
		PasswordChangedAt: &now,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		return nil, storageError(s.logger, "注册用户", uniqueViolation(err, ErrEmailExists), zap.String("email", email))
	}

	s.logger.Info("新用户注册", zap.Uint("user_id", user.ID), zap.String("email", email))
	return s.issueTokens(user)
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storageError(s.logger, "查询用户", err)
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 停用账号不允许登录
	if user.Status != model.UserStatusActive {
		return nil, ErrAccountDisabled
	}

	// 4. 记录登录时间，失败不影响登录
	now := time.Now().UTC()
	if err := s.repo.User.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("更新最后登录时间失败", zap.Uint("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	// 5. 生成 Token 对
	return s.issueTokens(user)
}

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.ID, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         *toUserResponse(user, time.Now()),
	}, nil
}

// ────────────────────── Refresh ──────────────────────

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if s.tokens != nil {
		revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, storageError(s.logger, "查询用户", err)
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrAccountDisabled
	}

	// 角色以数据库为准，刷新后立即生效
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:        *toUserResponse(user, time.Now()),
	}, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.tokens == nil {
		s.logger.Debug("未启用 Token 黑名单，注销仅由客户端丢弃 Token")
		return nil
	}
	if err := s.tokens.BlacklistToken(ctx, claims.ID, claims.RemainingTTL()); err != nil {
		s.logger.Error("Token 加入黑名单失败", zap.Uint("user_id", claims.UserID), zap.Error(err))
		return pkgerrors.NewStorageError("注销", err)
	}
	return nil
}

// ────────────────────── ChangePassword ──────────────────────

func (s *authService) ChangePassword(ctx context.Context, userID uint, req *dto.ChangePasswordRequest) error {
	if problems := validate.PasswordProblems(req.NewPassword); len(problems) > 0 {
		return pkgerrors.NewValidationError(strings.Join(problems, "；"), "new_password")
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := hashPassword(req.NewPassword, s.opts.BcryptCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	now := time.Now().UTC()
	user.PasswordHash = hash
	user.PasswordChangedAt = &now

	if err := s.repo.User.Update(ctx, user); err != nil {
		return storageError(s.logger, "修改密码", err, zap.Uint("user_id", userID))
	}
	return nil
}

// ────────────────────── Profile ──────────────────────

func (s *authService) Profile(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user, time.Now()), nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID uint, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if err := ensureUserEmailFree(ctx, s.repo, email, userID); err != nil {
			return nil, storageError(s.logger, "更新个人资料", err)
		}
		user.Email = email
	}

	if err := s.repo.User.Update(ctx, user); err != nil {
		return nil, storageError(s.logger, "更新个人资料", uniqueViolation(err, ErrEmailExists), zap.Uint("user_id", userID))
	}
	return toUserResponse(user, time.Now()), nil
}

func (s *authService) loadUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError(s.logger, "查询用户", err, zap.Uint("user_id", userID))
	}
	return user, nil
}

// ── 辅助函数 ──

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ensureUserEmailFree(ctx context.Context, repo *repository.Repository, email string, selfID uint) error {
	existing, err := repo.User.GetByEmail(ctx, email)
	if err == nil && existing.ID != selfID {
		return ErrEmailExists
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// passwordExpired 从未记录修改时间视为未过期
func passwordExpired(user *model.User, now time.Time) bool {
	if user.PasswordChangedAt == nil {
		return false
	}
	return now.Sub(*user.PasswordChangedAt) > PasswordMaxAge
}

func toUserResponse(user *model.User, now time.Time) *dto.UserResponse {
	return &dto.UserResponse{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
		Status:          user.Status,
		Permissions:     model.Permissions(user.Role),
		LastLogin:       dto.FormatTimePtr(user.LastLogin),
		CreatedAt:       dto.FormatTime(user.CreatedAt),
		PasswordExpired: passwordExpired(user, now),
	}
}
