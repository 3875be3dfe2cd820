package dto

import "time"

// TimeLayout 响应中时间字段的统一格式（UTC）
const TimeLayout = time.RFC3339

// FormatTime 统一格式化时间
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatTimePtr 格式化可选时间，nil 返回空串
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// ── 分页请求 ──

// DefaultLimit 未指定 limit 时的每页数量
const DefaultLimit = 10

// MaxLimit 每页数量上限
const MaxLimit = 100

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page  int `form:"page"  binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetLimit 获取每页数量（含默认值）
func (p *PaginationRequest) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetLimit()
}

// Validate 校验分页参数，返回出错字段
// 0 表示未指定，按默认值处理
func (p *PaginationRequest) Validate() []string {
	var fields []string
	if p.Page < 0 {
		fields = append(fields, "page")
	}
	if p.Limit < 0 || p.Limit > MaxLimit {
		fields = append(fields, "limit")
	}
	return fields
}

// PageResult 分页查询结果
type PageResult[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

// ── 统计通用 ──

// LabelCount 分组计数
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}
