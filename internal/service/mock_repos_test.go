package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/internal/repository"
)

// ── 内存 SQLite 仓储 ──

func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	// 内存库每个连接相互独立，必须单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	return repository.NewRepository(db)
}

func testOptions() Options {
	return Options{QueryTimeout: 5 * time.Second, StatsTTL: time.Minute, BcryptCost: 4}
}

func seedVolunteer(t *testing.T, repo *repository.Repository, name, dept string) *model.Volunteer {
	t.Helper()
	v := &model.Volunteer{
		Name:       name,
		Phone:      "0912345678",
		Email:      strings.ToLower(fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano())),
		Department: dept,
		Skills:     "接待,导览",
		Status:     model.VolunteerStatusActive,
	}
	if err := repo.Volunteer.Create(context.Background(), v); err != nil {
		t.Fatalf("创建志工失败: %v", err)
	}
	return v
}

// at 2024-01-day hour:00 UTC
func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

// ── 内存缓存 ──

type memCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	deletes int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ── 内存 Token 黑名单 ──

type memTokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{revoked: make(map[string]time.Duration)}
}

func (s *memTokenStore) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = ttl
	return nil
}

func (s *memTokenStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

// ── 故障注入 ──

var errDiskFull = errors.New("disk I/O error")

// lockOnlyVolunteerRepo 仅实现写路径用到的 LockByID
type lockOnlyVolunteerRepo struct {
	repository.VolunteerRepository
}

func (lockOnlyVolunteerRepo) LockByID(_ context.Context, id uint) (*model.Volunteer, error) {
	return &model.Volunteer{BaseModel: model.BaseModel{ID: id}, Name: "测试志工"}, nil
}

// failingScheduleRepo 冲突检查通过，写入失败
type failingScheduleRepo struct {
	repository.ScheduleRepository
	creates int
}

func (*failingScheduleRepo) FindConflict(context.Context, uint, time.Time, time.Time, uint) (*model.Schedule, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *failingScheduleRepo) Create(context.Context, *model.Schedule) error {
	r.creates++
	return errDiskFull
}

func (*failingScheduleRepo) List(context.Context, repository.ScheduleFilter, int, int) ([]model.Schedule, int64, error) {
	return nil, 0, errDiskFull
}

func newFailingScheduleService() (ScheduleService, *failingScheduleRepo) {
	schedules := &failingScheduleRepo{}
	repo := &repository.Repository{
		Volunteer: lockOnlyVolunteerRepo{},
		Schedule:  schedules,
	}
	return NewScheduleService(testOptions(), repo, nil, zap.NewNop()), schedules
}
