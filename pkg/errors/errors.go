package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ── 错误类别 ──
// 业务层的所有错误都应能通过 errors.Is 归入以下类别之一，
// handler 按类别映射 HTTP 状态码。

var (
	ErrValidation = errors.New("参数校验失败")
	ErrNotFound   = errors.New("资源不存在")
	ErrConflict   = errors.New("资源冲突")
	ErrStorage    = errors.New("存储层异常")
)

// Kind 包装一个业务哨兵错误，使其同时归属某个类别
//
//	var ErrScheduleNotFound = errors.Kind(errors.ErrNotFound, "排班不存在")
func Kind(kind error, message string) error {
	return &kindError{kind: kind, msg: message}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

// ── 校验错误 ──

// ValidationError 输入缺失或格式不合法，Fields 列出出错字段
type ValidationError struct {
	Fields  []string
	Message string
}

// NewValidationError 创建校验错误
func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: message}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ── 冲突错误 ──

// ConflictError 输入合法但与已提交数据冲突
// ConflictingID 为发生冲突的记录 ID（未知时为 0）
type ConflictError struct {
	Message       string
	ConflictingID uint
	Err           error
}

func (e *ConflictError) Error() string {
	if e.ConflictingID == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (冲突记录 ID: %d)", e.Message, e.ConflictingID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// ── 存储错误 ──

// StorageError 底层存储失败（I/O、未分类约束冲突、超时）
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError 包装底层错误；err 为 nil 时返回 nil
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Unwrap() error { return e.Err }
