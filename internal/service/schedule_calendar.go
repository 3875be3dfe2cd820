package service

import (
	"context"
	"errors"
	"fmt"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
)

const calendarProductID = "-//staff-schedule//volunteer shifts//ZH"

// ────────────────────── Calendar ──────────────────────

func (s *scheduleService) Calendar(ctx context.Context, volunteerID uint) ([]byte, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	v, err := s.repo.Volunteer.GetByID(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVolunteerNotFound
		}
		return nil, storageError(s.logger, "查询志工", err, zap.Uint("volunteer_id", volunteerID))
	}

	list, err := s.repo.Schedule.ListAll(ctx, repository.ScheduleFilter{VolunteerID: volunteerID}, true)
	if err != nil {
		return nil, storageError(s.logger, "查询志工排班", err, zap.Uint("volunteer_id", volunteerID))
	}

	return []byte(buildCalendar(v, list).Serialize()), nil
}

// buildCalendar 每个非取消排班对应一个 VEVENT
func buildCalendar(v *model.Volunteer, list []model.Schedule) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(v.Name + " 排班")

	for i := range list {
		sched := &list[i]
		if !sched.IsActive() {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("schedule-%d@staff-schedule", sched.ID))
		event.SetDtStampTime(sched.UpdatedAt.UTC())
		event.SetStartAt(sched.StartTime.UTC())
		event.SetEndAt(sched.EndTime.UTC())
		event.SetSummary(shiftLabel(sched.ShiftType) + " · " + v.Name)
		if sched.Location != "" {
			event.SetLocation(sched.Location)
		}
		if sched.Notes != "" {
			event.SetDescription(sched.Notes)
		}
		if sched.Status == model.ScheduleStatusConfirmed {
			event.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			event.SetStatus(ics.ObjectStatusTentative)
		}
	}
	return cal
}
