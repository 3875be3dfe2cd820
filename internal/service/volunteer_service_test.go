package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/guimashan/staff-schedule/internal/dto"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
	pkgerrors "github.com/guimashan/staff-schedule/pkg/errors"
)

func setupTestVolunteerService(t *testing.T) (VolunteerService, *repository.Repository, *memCache) {
	t.Helper()
	repo := newTestRepo(t)
	cache := newMemCache()
	return NewVolunteerService(testOptions(), repo, cache, zap.NewNop()), repo, cache
}

func volunteerReq(name, email string) *dto.CreateVolunteerRequest {
	return &dto.CreateVolunteerRequest{
		Name:       name,
		Phone:      "0922333444",
		Email:      email,
		Department: "接待组",
		Skills:     "接待, 导览 ,",
	}
}

// ════════════════════════════════════════════════════════════
// Create / Update 测试
// ════════════════════════════════════════════════════════════

func TestVolunteerService_Create(t *testing.T) {
	svc, _, cache := setupTestVolunteerService(t)

	resp, err := svc.Create(context.Background(), volunteerReq(" 王小明 ", "Ming@Example.com"))
	if err != nil {
		t.Fatalf("创建志工失败: %v", err)
	}
	if resp.ID == 0 || resp.Name != "王小明" {
		t.Errorf("返回结果不正确: %+v", resp)
	}
	if resp.Email != "ming@example.com" {
		t.Errorf("邮箱应转小写，得到 %s", resp.Email)
	}
	if resp.Skills != "接待,导览" {
		t.Errorf("技能应去空白，得到 %q", resp.Skills)
	}
	if resp.Status != model.VolunteerStatusActive {
		t.Errorf("默认状态应为 active，得到 %s", resp.Status)
	}
	if cache.deletes != 1 {
		t.Error("创建后应清除统计缓存")
	}
}

func TestVolunteerService_Create_Validation(t *testing.T) {
	svc, _, _ := setupTestVolunteerService(t)

	req := volunteerReq("", "not-an-email")
	req.Phone = "12345"
	_, err := svc.Create(context.Background(), req)

	var ve *pkgerrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("期望 ValidationError，得到 %v", err)
	}
	for _, f := range []string{"name", "phone", "email"} {
		if !containsField(ve.Fields, f) {
			t.Errorf("应报告字段 %s，得到 %v", f, ve.Fields)
		}
	}
}

func TestVolunteerService_Create_DuplicateEmail(t *testing.T) {
	svc, _, _ := setupTestVolunteerService(t)
	first, err := svc.Create(context.Background(), volunteerReq("张三", "same@example.com"))
	if err != nil {
		t.Fatalf("创建志工失败: %v", err)
	}

	_, err = svc.Create(context.Background(), volunteerReq("李四", "SAME@example.com"))

	var ce *pkgerrors.ConflictError
	if !errors.As(err, &ce) || !errors.Is(err, ErrVolunteerEmailExists) {
		t.Fatalf("期望 ErrVolunteerEmailExists，得到 %v", err)
	}
	if ce.ConflictingID != first.ID {
		t.Errorf("冲突 ID 应为 %d，得到 %d", first.ID, ce.ConflictingID)
	}
}

// staleEmailLookup 模拟并发插入：预检查查不到已存在的邮箱
type staleEmailLookup struct {
	repository.VolunteerRepository
}

func (staleEmailLookup) GetByEmail(context.Context, string) (*model.Volunteer, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestVolunteerService_Create_DuplicateEmailRace(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewVolunteerService(testOptions(), repo, nil, zap.NewNop())
	if _, err := svc.Create(context.Background(), volunteerReq("张三", "race@example.com")); err != nil {
		t.Fatalf("创建志工失败: %v", err)
	}

	repo.Volunteer = staleEmailLookup{repo.Volunteer}
	_, err := svc.Create(context.Background(), volunteerReq("李四", "race@example.com"))

	var ce *pkgerrors.ConflictError
	if !errors.As(err, &ce) || !errors.Is(err, ErrVolunteerEmailExists) {
		t.Fatalf("唯一索引冲突应转为 ErrVolunteerEmailExists，得到 %v", err)
	}
	var se *pkgerrors.StorageError
	if errors.As(err, &se) {
		t.Error("唯一索引冲突不应报告为 StorageError")
	}
}

func TestVolunteerService_Update(t *testing.T) {
	svc, _, _ := setupTestVolunteerService(t)
	a, _ := svc.Create(context.Background(), volunteerReq("张三", "a@example.com"))
	b, _ := svc.Create(context.Background(), volunteerReq("李四", "b@example.com"))

	dept := "导览组"
	resp, err := svc.Update(context.Background(), a.ID, &dto.UpdateVolunteerRequest{Department: &dept})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if resp.Department != "导览组" || resp.Name != "张三" {
		t.Errorf("仅应修改部门: %+v", resp)
	}

	// 保留自身邮箱不算冲突
	own := "A@example.com"
	if _, err := svc.Update(context.Background(), a.ID, &dto.UpdateVolunteerRequest{Email: &own}); err != nil {
		t.Errorf("保留自身邮箱不应冲突: %v", err)
	}

	taken := b.Email
	_, err = svc.Update(context.Background(), a.ID, &dto.UpdateVolunteerRequest{Email: &taken})
	if !errors.Is(err, ErrVolunteerEmailExists) {
		t.Errorf("改用他人邮箱应冲突，得到 %v", err)
	}

	bad := "pending?"
	_, err = svc.Update(context.Background(), a.ID, &dto.UpdateVolunteerRequest{Status: &bad})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("非法状态应返回校验错误，得到 %v", err)
	}

	if _, err := svc.Update(context.Background(), 999, &dto.UpdateVolunteerRequest{Department: &dept}); !errors.Is(err, ErrVolunteerNotFound) {
		t.Errorf("期望 ErrVolunteerNotFound，得到 %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// Delete 测试
// ════════════════════════════════════════════════════════════

func TestVolunteerService_Delete(t *testing.T) {
	svc, repo, _ := setupTestVolunteerService(t)
	v := seedVolunteer(t, repo, "张三", "接待组")

	if err := svc.Delete(context.Background(), v.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), v.ID); !errors.Is(err, ErrVolunteerNotFound) {
		t.Errorf("删除后应查不到，得到 %v", err)
	}
	if err := svc.Delete(context.Background(), v.ID); !errors.Is(err, ErrVolunteerNotFound) {
		t.Errorf("重复删除应返回 ErrVolunteerNotFound，得到 %v", err)
	}
}

func TestVolunteerService_Delete_RestrictedBySchedules(t *testing.T) {
	svc, repo, _ := setupTestVolunteerService(t)
	v := seedVolunteer(t, repo, "张三", "接待组")
	sched := &model.Schedule{
		VolunteerID: v.ID,
		StartTime:   at(1, 8),
		EndTime:     at(1, 12),
		ShiftType:   model.ShiftMorning,
		Status:      model.ScheduleStatusCancelled,
	}
	if err := repo.Schedule.Create(context.Background(), sched); err != nil {
		t.Fatalf("创建排班失败: %v", err)
	}

	err := svc.Delete(context.Background(), v.ID)
	if !errors.Is(err, ErrVolunteerHasSchedules) || !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("有排班（含已取消）时应拒绝删除，得到 %v", err)
	}
	if _, err := svc.GetByID(context.Background(), v.ID); err != nil {
		t.Errorf("拒绝删除后志工应仍在: %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// 查询与统计
// ════════════════════════════════════════════════════════════

func TestVolunteerService_List_Filter(t *testing.T) {
	svc, _, _ := setupTestVolunteerService(t)
	for _, r := range []struct{ name, email, dept, skills string }{
		{"张三", "a@example.com", "接待组", "接待"},
		{"李四", "b@example.com", "导览组", "导览,翻译"},
		{"王五", "c@example.com", "导览组", "翻译"},
	} {
		req := volunteerReq(r.name, r.email)
		req.Department, req.Skills = r.dept, r.skills
		if _, err := svc.Create(context.Background(), req); err != nil {
			t.Fatalf("创建志工失败: %v", err)
		}
	}

	page, err := svc.List(context.Background(), &dto.VolunteerListRequest{
		VolunteerFilterRequest: dto.VolunteerFilterRequest{Department: "导览组", Skill: "翻译"},
	})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("期望 2 条，得到 %d", page.Total)
	}

	page, _ = svc.List(context.Background(), &dto.VolunteerListRequest{
		VolunteerFilterRequest: dto.VolunteerFilterRequest{Search: "李"},
	})
	if page.Total != 1 || page.Items[0].Name != "李四" {
		t.Errorf("关键字搜索结果不正确: %+v", page.Items)
	}
}

func TestVolunteerService_Stats(t *testing.T) {
	svc, _, cache := setupTestVolunteerService(t)
	a := volunteerReq("张三", "a@example.com")
	a.Skills = "接待,导览"
	b := volunteerReq("李四", "b@example.com")
	b.Skills = "导览"
	b.Status = model.VolunteerStatusPending
	for _, req := range []*dto.CreateVolunteerRequest{a, b} {
		if _, err := svc.Create(context.Background(), req); err != nil {
			t.Fatalf("创建志工失败: %v", err)
		}
	}

	stats, err := svc.Stats(context.Background(), &dto.VolunteerFilterRequest{})
	if err != nil {
		t.Fatalf("Stats 失败: %v", err)
	}
	if stats.Total != 2 || stats.Active != 1 || stats.Pending != 1 {
		t.Errorf("状态计数不正确: %+v", stats)
	}
	want := []dto.LabelCount{{Label: "导览", Count: 2}, {Label: "接待", Count: 1}}
	if len(stats.BySkill) != 2 || stats.BySkill[0] != want[0] || stats.BySkill[1] != want[1] {
		t.Errorf("技能统计不正确: %+v", stats.BySkill)
	}
	if cache.len() != 1 {
		t.Errorf("统计结果应写入缓存，得到 %d 项", cache.len())
	}
}

func TestCountSkills(t *testing.T) {
	got := countSkills([]string{"b,a", " a ,c", "", "a"})
	want := []dto.LabelCount{{Label: "a", Count: 3}, {Label: "b", Count: 1}, {Label: "c", Count: 1}}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 项，得到 %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第 %d 项: got %+v want %+v", i, got[i], want[i])
		}
	}
}

// ════════════════════════════════════════════════════════════
// Import 测试
// ════════════════════════════════════════════════════════════

func TestVolunteerService_Import_CSV(t *testing.T) {
	svc, _, _ := setupTestVolunteerService(t)
	if _, err := svc.Create(context.Background(), volunteerReq("既有", "dup@example.com")); err != nil {
		t.Fatalf("创建志工失败: %v", err)
	}

	csvData := "\ufeff姓名,Phone,邮箱,部门,年资\n" +
		"张三,0911111111,a@example.com,接待组,3\n" +
		"\n" +
		"李四,12345,b@example.com,导览组,x\n" +
		"王五,0933333333,dup@example.com,导览组,\n" +
		"赵六,0944444444,d@example.com,,abc\n"

	resp, err := svc.Import(context.Background(), "volunteers.CSV", []byte(csvData))
	if err != nil {
		t.Fatalf("Import 失败: %v", err)
	}
	if resp.Total != 4 || resp.Imported != 2 || resp.Failed != 2 {
		t.Fatalf("导入计数不正确: %+v", resp)
	}
	if resp.Errors[0].Row != 2 || !strings.Contains(resp.Errors[0].Reason, "phone") {
		t.Errorf("第 2 行应因电话失败: %+v", resp.Errors[0])
	}
	if resp.Errors[1].Row != 3 || !strings.Contains(resp.Errors[1].Reason, ErrVolunteerEmailExists.Error()) {
		t.Errorf("第 3 行应因邮箱重复失败: %+v", resp.Errors[1])
	}

	page, _ := svc.List(context.Background(), &dto.VolunteerListRequest{
		VolunteerFilterRequest: dto.VolunteerFilterRequest{Status: model.VolunteerStatusPending},
	})
	if page.Total != 2 {
		t.Errorf("导入的志工默认状态应为 pending，得到 %d 条", page.Total)
	}
}

func TestVolunteerService_Import_XLSX(t *testing.T) {
	svc, _, _ := setupTestVolunteerService(t)

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"name", "phone", "email", "skills"},
		{"张三", "0911111111", "a@example.com", "接待"},
		{"李四", "0922222222", "", "导览"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("写入测试表格失败: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("生成测试表格失败: %v", err)
	}

	resp, err := svc.Import(context.Background(), "list.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Import 失败: %v", err)
	}
	if resp.Imported != 1 || resp.Failed != 1 || resp.Errors[0].Row != 2 {
		t.Errorf("导入结果不正确: %+v", resp)
	}
}

func TestVolunteerService_Import_Rejected(t *testing.T) {
	svc, _, _ := setupTestVolunteerService(t)

	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"不支持的扩展名", "list.pdf", "name,phone,email\n"},
		{"缺少必要列", "list.csv", "name,phone\n张三,0911111111\n"},
		{"没有数据行", "list.csv", "name,phone,email\n"},
		{"CSV 语法错误", "list.csv", "name,phone,email\n\"张三,0911111111,a@example.com\n"},
		{"损坏的 XLSX", "list.xlsx", "not a zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), tt.filename, []byte(tt.data))
			var ve *pkgerrors.ValidationError
			if !errors.As(err, &ve) || !containsField(ve.Fields, "file") {
				t.Errorf("期望 file 校验错误，得到 %v", err)
			}
		})
	}
}
