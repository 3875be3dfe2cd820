package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "打开内存数据库失败")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接相互独立，必须单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...), "AutoMigrate 失败")
	return db
}

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func createVolunteer(t *testing.T, repo *repository.Repository, name, dept string) *model.Volunteer {
	t.Helper()
	v := &model.Volunteer{
		Name:       name,
		Phone:      "0912345678",
		Email:      fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()),
		Department: dept,
		Status:     model.VolunteerStatusActive,
	}
	require.NoError(t, repo.Volunteer.Create(context.Background(), v))
	return v
}

func createSchedule(t *testing.T, repo *repository.Repository, volunteerID uint, start, end time.Time, status string) *model.Schedule {
	t.Helper()
	s := &model.Schedule{
		VolunteerID: volunteerID,
		StartTime:   start,
		EndTime:     end,
		ShiftType:   model.ShiftMorning,
		Location:    "服务台",
		Status:      status,
	}
	require.NoError(t, repo.Schedule.Create(context.Background(), s))
	return s
}

// ═══════════════════════════════════════════════════════════
// Conflict
// ═══════════════════════════════════════════════════════════

func TestScheduleRepo_FindConflict(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()

	v1 := createVolunteer(t, repo, "王小明", "接待组")
	v2 := createVolunteer(t, repo, "李小华", "接待组")
	existing := createSchedule(t, repo, v1.ID, at(1, 10), at(1, 12), model.ScheduleStatusConfirmed)
	createSchedule(t, repo, v1.ID, at(1, 14), at(1, 16), model.ScheduleStatusCancelled)

	tests := []struct {
		name        string
		volunteerID uint
		start, end  time.Time
		excludeID   uint
		wantID      uint
	}{
		{"部分重叠", v1.ID, at(1, 11), at(1, 13), 0, existing.ID},
		{"完全包含", v1.ID, at(1, 9), at(1, 13), 0, existing.ID},
		{"首尾相接", v1.ID, at(1, 12), at(1, 13), 0, 0},
		{"结束即开始", v1.ID, at(1, 8), at(1, 10), 0, 0},
		{"已取消的排班不阻挡", v1.ID, at(1, 15), at(1, 17), 0, 0},
		{"其他志工互不影响", v2.ID, at(1, 11), at(1, 13), 0, 0},
		{"排除自身", v1.ID, at(1, 10), at(1, 12), existing.ID, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := repo.Schedule.FindConflict(ctx, tt.volunteerID, tt.start, tt.end, tt.excludeID)
			if tt.wantID == 0 {
				assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, found.ID)
		})
	}
}

// ═══════════════════════════════════════════════════════════
// CRUD
// ═══════════════════════════════════════════════════════════

func TestScheduleRepo_GetByID_PreloadsVolunteer(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	v := createVolunteer(t, repo, "陈大文", "医疗组")
	s := createSchedule(t, repo, v.ID, at(2, 8), at(2, 12), model.ScheduleStatusScheduled)

	found, err := repo.Schedule.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Volunteer)
	assert.Equal(t, "陈大文", found.Volunteer.Name)
	assert.Equal(t, "医疗组", found.Volunteer.Department)
	assert.True(t, found.StartTime.Equal(at(2, 8)))
}

func TestScheduleRepo_UpdateAndDelete(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v := createVolunteer(t, repo, "张三", "")
	s := createSchedule(t, repo, v.ID, at(3, 8), at(3, 12), model.ScheduleStatusScheduled)

	s.Location = ""
	s.Status = model.ScheduleStatusConfirmed
	require.NoError(t, repo.Schedule.Update(ctx, s))

	found, err := repo.Schedule.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "", found.Location, "零值字段也应写入")
	assert.Equal(t, model.ScheduleStatusConfirmed, found.Status)

	missing := *s
	missing.ID = 9999
	assert.ErrorIs(t, repo.Schedule.Update(ctx, &missing), gorm.ErrRecordNotFound)

	require.NoError(t, repo.Schedule.Delete(ctx, s.ID))
	assert.ErrorIs(t, repo.Schedule.Delete(ctx, s.ID), gorm.ErrRecordNotFound)
}

// ═══════════════════════════════════════════════════════════
// Query
// ═══════════════════════════════════════════════════════════

func TestScheduleRepo_ListPagination(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v := createVolunteer(t, repo, "分页志工", "")

	for i := 0; i < 25; i++ {
		start := at(1, 0).Add(time.Duration(i) * 2 * time.Hour)
		createSchedule(t, repo, v.ID, start, start.Add(time.Hour), model.ScheduleStatusScheduled)
	}

	items, total, err := repo.Schedule.List(ctx, repository.ScheduleFilter{}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, items, 10)
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i-1].StartTime.After(items[i].StartTime), "应按 start_time 倒序")
	}

	last, _, err := repo.Schedule.List(ctx, repository.ScheduleFilter{}, 20, 10)
	require.NoError(t, err)
	assert.Len(t, last, 5)
}

func TestScheduleRepo_ListFilters(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v1 := createVolunteer(t, repo, "林志玲", "接待组")
	v2 := createVolunteer(t, repo, "周杰伦", "音控组")

	createSchedule(t, repo, v1.ID, at(1, 8), at(1, 12), model.ScheduleStatusConfirmed)
	createSchedule(t, repo, v1.ID, at(5, 8), at(5, 12), model.ScheduleStatusScheduled)
	s3 := createSchedule(t, repo, v2.ID, at(10, 8), at(10, 12), model.ScheduleStatusCancelled)
	s3.Location = "大殿"
	require.NoError(t, repo.Schedule.Update(ctx, s3))

	count := func(f repository.ScheduleFilter) int64 {
		_, total, err := repo.Schedule.List(ctx, f, 0, 100)
		require.NoError(t, err)
		return total
	}

	from, to := at(2, 0), at(10, 0)
	assert.Equal(t, int64(3), count(repository.ScheduleFilter{}))
	assert.Equal(t, int64(1), count(repository.ScheduleFilter{Status: model.ScheduleStatusConfirmed}))
	assert.Equal(t, int64(2), count(repository.ScheduleFilter{VolunteerID: v1.ID}))
	assert.Equal(t, int64(1), count(repository.ScheduleFilter{From: &from, To: &to}))
	assert.Equal(t, int64(2), count(repository.ScheduleFilter{Search: "志玲"}), "按志工姓名搜索")
	assert.Equal(t, int64(1), count(repository.ScheduleFilter{Search: "大殿"}), "按地点搜索")
	assert.Equal(t, int64(0), count(repository.ScheduleFilter{ShiftType: model.ShiftNight}))
}

func TestScheduleRepo_Stats(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v1 := createVolunteer(t, repo, "甲", "")
	v2 := createVolunteer(t, repo, "乙", "")

	createSchedule(t, repo, v1.ID, at(1, 8), at(1, 9), model.ScheduleStatusConfirmed)
	createSchedule(t, repo, v1.ID, at(1, 9), at(1, 10), model.ScheduleStatusScheduled)
	createSchedule(t, repo, v1.ID, at(1, 10), at(1, 11), model.ScheduleStatusCancelled)
	createSchedule(t, repo, v2.ID, at(1, 8), at(1, 9), model.ScheduleStatusScheduled)

	stats, err := repo.Schedule.Stats(ctx, repository.ScheduleFilter{}, 10)
	require.NoError(t, err)

	byStatus := map[string]int64{}
	for _, g := range stats.ByStatus {
		byStatus[g.Label] = g.Count
	}
	assert.Equal(t, map[string]int64{"cancelled": 1, "confirmed": 1, "scheduled": 2}, byStatus)

	require.Len(t, stats.ByShiftType, 1)
	assert.Equal(t, int64(4), stats.ByShiftType[0].Count)

	require.Len(t, stats.ByVolunteer, 2)
	assert.Equal(t, v1.ID, stats.ByVolunteer[0].VolunteerID)
	assert.Equal(t, "甲", stats.ByVolunteer[0].VolunteerName)
	assert.Equal(t, int64(3), stats.ByVolunteer[0].ScheduleCount)

	filtered, err := repo.Schedule.Stats(ctx, repository.ScheduleFilter{VolunteerID: v2.ID}, 10)
	require.NoError(t, err)
	require.Len(t, filtered.ByVolunteer, 1)
	assert.Equal(t, int64(1), filtered.ByVolunteer[0].ScheduleCount)
}

// ═══════════════════════════════════════════════════════════
// Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v := createVolunteer(t, repo, "事务志工", "")

	errAbort := errors.New("abort")
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Volunteer.LockByID(ctx, v.ID); err != nil {
			return err
		}
		s := &model.Schedule{VolunteerID: v.ID, StartTime: at(1, 8), EndTime: at(1, 9), ShiftType: model.ShiftMorning, Status: model.ScheduleStatusScheduled}
		if err := tx.Schedule.Create(ctx, s); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	n, err := repo.Schedule.CountByVolunteer(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "回滚后不应残留数据")
}

func TestTransaction_Commit(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v := createVolunteer(t, repo, "提交志工", "")

	s := &model.Schedule{VolunteerID: v.ID, StartTime: at(1, 8), EndTime: at(1, 9), ShiftType: model.ShiftMorning, Status: model.ScheduleStatusScheduled}
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		return tx.Schedule.Create(ctx, s)
	})
	require.NoError(t, err)

	found, err := repo.Schedule.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, found.ID)
}

// ═══════════════════════════════════════════════════════════
// Volunteer / Notification
// ═══════════════════════════════════════════════════════════

func TestVolunteerRepo_DuplicateEmail(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v := createVolunteer(t, repo, "甲", "接待组")

	dup := &model.Volunteer{Name: "乙", Phone: "0912345678", Email: v.Email, Status: model.VolunteerStatusActive}
	err := repo.Volunteer.Create(ctx, dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey, "唯一索引冲突应翻译为 ErrDuplicatedKey")
}

func TestVolunteerRepo_SearchLiteralWildcards(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	createVolunteer(t, repo, "满意度100%组", "")
	createVolunteer(t, repo, "a_b", "")
	createVolunteer(t, repo, "axb", "")
	createVolunteer(t, repo, "普通志工", "")

	names := func(search string) []string {
		list, _, err := repo.Volunteer.List(ctx, repository.VolunteerFilter{Search: search}, 0, 100)
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for _, v := range list {
			out = append(out, v.Name)
		}
		return out
	}

	assert.Equal(t, []string{"满意度100%组"}, names("%"), "% 按字面量匹配")
	assert.Equal(t, []string{"a_b"}, names("_"), "_ 按字面量匹配")
	assert.Equal(t, []string{"a_b"}, names("a_"), "未转义时 a_ 会匹配 axb")
}

func TestVolunteerRepo_Stats(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()

	a := createVolunteer(t, repo, "甲", "接待组")
	a.Skills = "急救, 翻译"
	a.ExperienceYears = 2
	require.NoError(t, repo.Volunteer.Update(ctx, a))
	b := createVolunteer(t, repo, "乙", "接待组")
	b.Skills = "急救"
	b.Status = model.VolunteerStatusPending
	require.NoError(t, repo.Volunteer.Update(ctx, b))
	createVolunteer(t, repo, "丙", "音控组")

	depts, err := repo.Volunteer.CountByDepartment(ctx, repository.VolunteerFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, depts)
	assert.Equal(t, "接待组", depts[0].Label)
	assert.Equal(t, int64(2), depts[0].Count)

	exp, err := repo.Volunteer.CountByExperience(ctx, repository.VolunteerFilter{})
	require.NoError(t, err)
	assert.Equal(t, []repository.GroupCount{{Label: "0", Count: 2}, {Label: "2", Count: 1}}, exp)

	skills, err := repo.Volunteer.ListSkills(ctx, repository.VolunteerFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"急救, 翻译", "急救"}, skills)

	list, total, err := repo.Volunteer.List(ctx, repository.VolunteerFilter{Search: "音控"}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "丙", list[0].Name)

	pending, _, err := repo.Volunteer.List(ctx, repository.VolunteerFilter{Status: model.VolunteerStatusPending}, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestNotificationRepo_ReadFlow(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		n := &model.Notification{
			Title:        fmt.Sprintf("通知 %d", i),
			Content:      "内容",
			Type:         model.NotificationTypeInfo,
			Priority:     model.PriorityNormal,
			RecipientIDs: []uint{1, 2},
		}
		require.NoError(t, repo.Notification.Create(ctx, n))
	}

	unread, err := repo.Notification.ListUnread(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 10)
	assert.Equal(t, []uint{1, 2}, []uint(unread[0].RecipientIDs))

	require.NoError(t, repo.Notification.MarkRead(ctx, unread[0].ID))
	require.NoError(t, repo.Notification.MarkRead(ctx, unread[0].ID), "重复标记已读应成功")
	assert.ErrorIs(t, repo.Notification.MarkRead(ctx, 9999), gorm.ErrRecordNotFound)

	updated, err := repo.Notification.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), updated)

	read, err := repo.Notification.CountByRead(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(12), read)
}

func TestNotificationRepo_RemindedScheduleIDs(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	v := createVolunteer(t, repo, "提醒志工", "")
	s1 := createSchedule(t, repo, v.ID, at(1, 8), at(1, 9), model.ScheduleStatusConfirmed)
	s2 := createSchedule(t, repo, v.ID, at(2, 8), at(2, 9), model.ScheduleStatusConfirmed)

	for i := 0; i < 2; i++ {
		n := &model.Notification{Title: "排班提醒", Content: "c", Type: model.NotificationTypeSchedule, Priority: model.PriorityHigh, ScheduleID: &s1.ID}
		require.NoError(t, repo.Notification.Create(ctx, n))
	}
	require.NoError(t, repo.Notification.Create(ctx, &model.Notification{Title: "普通", Content: "c", Type: model.NotificationTypeInfo, Priority: model.PriorityNormal}))

	ids, err := repo.Notification.RemindedScheduleIDs(ctx, []uint{s1.ID, s2.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{s1.ID}, ids)

	ids, err = repo.Notification.RemindedScheduleIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
