package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
)

// ── 通知模块业务错误 ──

var ErrNotificationNotFound = pkgerrors.Kind(pkgerrors.ErrNotFound, "通知不存在")

// UnreadLimit 未读通知列表返回的最大条数
const UnreadLimit = 10

// NotificationService 通知业务接口
type NotificationService interface {
	Create(ctx context.Context, req *dto.CreateNotificationRequest, senderID uint) (*dto.NotificationResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.NotificationResponse, error)
	Update(ctx context.Context, id uint, req *dto.UpdateNotificationRequest) (*dto.NotificationResponse, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, req *dto.NotificationListRequest) (*dto.PageResult[dto.NotificationResponse], error)
	Unread(ctx context.Context) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint) error
	MarkAllRead(ctx context.Context) (*dto.MarkAllReadResponse, error)
	Stats(ctx context.Context) (*dto.NotificationStatsResponse, error)
	// RemindUpcoming 为 window 内开始的已确认排班生成提醒通知，返回生成条数
	// 已有提醒的排班跳过，可重复执行
	RemindUpcoming(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

type notificationService struct {
	opts   Options
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(opts Options, repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{opts: opts, repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *notificationService) Create(ctx context.Context, req *dto.CreateNotificationRequest, senderID uint) (*dto.NotificationResponse, error) {
	if err := validateNotificationText(req.Title, req.Content); err != nil {
		return nil, err
	}

	n := &model.Notification{
		Title:         strings.TrimSpace(req.Title),
		Content:       req.Content,
		Type:          req.Type,
		Priority:      req.Priority,
		IsBroadcast:   req.IsBroadcast,
		RecipientIDs:  datatypes.JSONSlice[uint](normalizeRecipients(req.RecipientIDs)),
		ScheduledTime: utcPtr(req.ScheduledTime),
	}
	if n.Type == "" {
		n.Type = model.NotificationTypeInfo
	}
	if n.Priority == "" {
		n.Priority = model.PriorityNormal
	}
	if senderID != 0 {
		n.SenderID = &senderID
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Notification.Create(ctx, n); err != nil {
		return nil, storageError(s.logger, "创建通知", err)
	}
	return s.reload(ctx, n.ID)
}

// ────────────────────── GetByID ──────────────────────

func (s *notificationService) GetByID(ctx context.Context, id uint) (*dto.NotificationResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	return s.reload(ctx, id)
}

func (s *notificationService) reload(ctx context.Context, id uint) (*dto.NotificationResponse, error) {
	n, err := s.repo.Notification.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, storageError(s.logger, "查询通知", err, zap.Uint("id", id))
	}
	return toNotificationResponse(n), nil
}

// ────────────────────── Update ──────────────────────

func (s *notificationService) Update(ctx context.Context, id uint, req *dto.UpdateNotificationRequest) (*dto.NotificationResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	n, err := s.repo.Notification.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, storageError(s.logger, "查询通知", err, zap.Uint("id", id))
	}

	if req.Title != nil {
		n.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		n.Content = *req.Content
	}
	if req.Type != nil {
		n.Type = *req.Type
	}
	if req.Priority != nil {
		n.Priority = *req.Priority
	}
	if req.IsBroadcast != nil {
		n.IsBroadcast = *req.IsBroadcast
	}
	if req.RecipientIDs != nil {
		n.RecipientIDs = normalizeRecipients(req.RecipientIDs)
	}
	if req.ScheduledTime != nil {
		n.ScheduledTime = utcPtr(req.ScheduledTime)
	}
	if err := validateNotificationText(n.Title, n.Content); err != nil {
		return nil, err
	}
	n.Sender = nil

	if err := s.repo.Notification.Update(ctx, n); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, storageError(s.logger, "更新通知", err, zap.Uint("id", id))
	}
	return s.reload(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *notificationService) Delete(ctx context.Context, id uint) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Notification.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return storageError(s.logger, "删除通知", err, zap.Uint("id", id))
	}
	return nil
}

// ────────────────────── List ──────────────────────

func (s *notificationService) List(ctx context.Context, req *dto.NotificationListRequest) (*dto.PageResult[dto.NotificationResponse], error) {
	if fields := req.PaginationRequest.Validate(); len(fields) > 0 {
		return nil, pkgerrors.NewValidationError("分页参数无效", fields...)
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	filter := repository.NotificationFilter{Type: req.Type, IsRead: req.IsRead}
	list, total, err := s.repo.Notification.List(ctx, filter, req.GetOffset(), req.GetLimit())
	if err != nil {
		return nil, storageError(s.logger, "查询通知列表", err)
	}

	return &dto.PageResult[dto.NotificationResponse]{
		Items: toNotificationResponses(list),
		Total: total,
		Page:  req.GetPage(),
		Limit: req.GetLimit(),
	}, nil
}

func (s *notificationService) Unread(ctx context.Context) ([]dto.NotificationResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	list, err := s.repo.Notification.ListUnread(ctx, UnreadLimit)
	if err != nil {
		return nil, storageError(s.logger, "查询未读通知", err)
	}
	return toNotificationResponses(list), nil
}

// ────────────────────── 已读标记 ──────────────────────

func (s *notificationService) MarkRead(ctx context.Context, id uint) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Notification.MarkRead(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return storageError(s.logger, "标记通知已读", err, zap.Uint("id", id))
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context) (*dto.MarkAllReadResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	n, err := s.repo.Notification.MarkAllRead(ctx)
	if err != nil {
		return nil, storageError(s.logger, "全部标记已读", err)
	}
	return &dto.MarkAllReadResponse{Updated: n}, nil
}

// ────────────────────── Stats ──────────────────────

func (s *notificationService) Stats(ctx context.Context) (*dto.NotificationStatsResponse, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	byType, err := s.repo.Notification.CountByType(ctx)
	if err != nil {
		return nil, storageError(s.logger, "统计通知类型", err)
	}
	unread, err := s.repo.Notification.CountByRead(ctx, false)
	if err != nil {
		return nil, storageError(s.logger, "统计未读通知", err)
	}
	read, err := s.repo.Notification.CountByRead(ctx, true)
	if err != nil {
		return nil, storageError(s.logger, "统计已读通知", err)
	}

	return &dto.NotificationStatsResponse{
		Total:  unread + read,
		Unread: unread,
		Read:   read,
		ByType: toLabelCounts(byType),
	}, nil
}

// ────────────────────── 排班提醒 ──────────────────────

func (s *notificationService) RemindUpcoming(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, pkgerrors.NewValidationError("提醒窗口必须大于 0", "window")
	}
	from := normalizeTime(now)
	to := from.Add(window)

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	// 同一排班只提醒一次，整批在一个事务内写入
	created, skipped := 0, 0
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		filter := repository.ScheduleFilter{Status: model.ScheduleStatusConfirmed, From: &from, To: &to}
		list, err := tx.Schedule.ListAll(ctx, filter, true)
		if err != nil {
			return storageError(s.logger, "查询即将开始的排班", err)
		}
		if len(list) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(list))
		for i := range list {
			ids = append(ids, list[i].ID)
		}
		reminded, err := tx.Notification.RemindedScheduleIDs(ctx, ids)
		if err != nil {
			return storageError(s.logger, "查询已有排班提醒", err)
		}
		done := make(map[uint]struct{}, len(reminded))
		for _, id := range reminded {
			done[id] = struct{}{}
		}

		for i := range list {
			if _, ok := done[list[i].ID]; ok {
				skipped++
				continue
			}
			if err := tx.Notification.Create(ctx, scheduleReminder(&list[i])); err != nil {
				return storageError(s.logger, "创建排班提醒", err, zap.Uint("schedule_id", list[i].ID))
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("排班提醒已生成",
		zap.Int("count", created),
		zap.Int("skipped", skipped),
		zap.Duration("window", window),
	)
	return created, nil
}

func scheduleReminder(sched *model.Schedule) *model.Notification {
	name := fmt.Sprintf("志工 #%d", sched.VolunteerID)
	if sched.Volunteer != nil {
		name = sched.Volunteer.Name
	}
	scheduleID := sched.ID
	location := sched.Location
	if location == "" {
		location = "未指定"
	}
	return &model.Notification{
		Title:        "排班提醒：" + name,
		Content:      fmt.Sprintf("您在 %s 有%s排班，地点：%s", dto.FormatTime(sched.StartTime), shiftLabel(sched.ShiftType), location),
		Type:         model.NotificationTypeSchedule,
		Priority:     model.PriorityHigh,
		RecipientIDs: datatypes.JSONSlice[uint]{sched.VolunteerID},
		ScheduleID:   &scheduleID,
	}
}

// ── 校验与转换 ──

func validateNotificationText(title, content string) error {
	var fields []string
	if strings.TrimSpace(title) == "" {
		fields = append(fields, "title")
	}
	if strings.TrimSpace(content) == "" {
		fields = append(fields, "content")
	}
	if len(fields) > 0 {
		return pkgerrors.NewValidationError("缺少必填字段", fields...)
	}
	return nil
}

// normalizeRecipients 去重并去掉 0
func normalizeRecipients(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := normalizeTime(*t)
	return &u
}

func toNotificationResponse(n *model.Notification) *dto.NotificationResponse {
	resp := &dto.NotificationResponse{
		ID:            n.ID,
		Title:         n.Title,
		Content:       n.Content,
		Type:          n.Type,
		Priority:      n.Priority,
		IsBroadcast:   n.IsBroadcast,
		RecipientIDs:  []uint(n.RecipientIDs),
		ScheduledTime: dto.FormatTimePtr(n.ScheduledTime),
		SenderID:      n.SenderID,
		IsRead:        n.IsRead,
		ScheduleID:    n.ScheduleID,
		CreatedAt:     dto.FormatTime(n.CreatedAt),
		UpdatedAt:     dto.FormatTime(n.UpdatedAt),
	}
	if resp.RecipientIDs == nil {
		resp.RecipientIDs = []uint{}
	}
	if n.Sender != nil {
		resp.SenderName = n.Sender.Name
	}
	return resp
}

func toNotificationResponses(list []model.Notification) []dto.NotificationResponse {
	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, *toNotificationResponse(&list[i]))
	}
	return result
}
