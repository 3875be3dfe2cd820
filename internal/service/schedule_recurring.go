package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
)

// MaxRecurringOccurrences 单次重复排班展开的班次上限
const MaxRecurringOccurrences = 100

// ────────────────────── CreateRecurring ──────────────────────

func (s *scheduleService) CreateRecurring(ctx context.Context, req *dto.RecurringScheduleRequest, callerID uint) ([]dto.ScheduleResponse, error) {
	first, err := newSchedule(&req.CreateScheduleRequest)
	if err != nil {
		return nil, err
	}

	starts, err := expandRRule(req.RRule, first.StartTime)
	if err != nil {
		return nil, err
	}

	duration := first.EndTime.Sub(first.StartTime)
	batch := make([]model.Schedule, 0, len(starts))
	for _, start := range starts {
		sched := *first
		sched.StartTime = normalizeTime(start)
		sched.EndTime = sched.StartTime.Add(duration)
		if callerID != 0 {
			sched.CreatedBy = &callerID
			sched.UpdatedBy = &callerID
		}
		batch = append(batch, sched)
	}

	// 班次之间自身重叠（如 FREQ=HOURLY 配合长班次）同样视为冲突
	if first.IsActive() {
		for i := 1; i < len(batch); i++ {
			if model.Overlaps(batch[i-1].StartTime, batch[i-1].EndTime, batch[i].StartTime, batch[i].EndTime) {
				return nil, pkgerrors.NewValidationError(
					fmt.Sprintf("重复规则产生的第 %d 与第 %d 个班次时间重叠", i, i+1), "rrule")
			}
		}
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var volunteer *model.Volunteer
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		v, err := s.lockVolunteer(ctx, tx, first.VolunteerID)
		if err != nil {
			return err
		}
		volunteer = v
		for i := range batch {
			if err := s.checkConflict(ctx, tx, &batch[i], 0); err != nil {
				return err
			}
		}
		return tx.Schedule.CreateBatch(ctx, batch)
	})
	if err != nil {
		return nil, storageError(s.logger, "创建重复排班", err,
			zap.Uint("volunteer_id", first.VolunteerID), zap.Int("occurrences", len(batch)))
	}

	invalidateStats(ctx, s.cache, s.logger)

	result := make([]dto.ScheduleResponse, 0, len(batch))
	for i := range batch {
		batch[i].Volunteer = volunteer
		result = append(result, *toScheduleResponse(&batch[i]))
	}
	return result, nil
}

// expandRRule 以 dtstart 为起点展开规则，超过上限视为无效
func expandRRule(rule string, dtstart time.Time) ([]time.Time, error) {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, pkgerrors.NewValidationError("重复规则格式错误: "+err.Error(), "rrule")
	}
	r.DTStart(dtstart)

	next := r.Iterator()
	var starts []time.Time
	for {
		t, ok := next()
		if !ok {
			break
		}
		if len(starts) == MaxRecurringOccurrences {
			return nil, pkgerrors.NewValidationError(
				fmt.Sprintf("重复规则最多展开 %d 个班次，请设置 COUNT 或 UNTIL", MaxRecurringOccurrences), "rrule")
		}
		starts = append(starts, t)
	}
	if len(starts) == 0 {
		return nil, pkgerrors.NewValidationError("重复规则未产生任何班次", "rrule")
	}
	return starts, nil
}
