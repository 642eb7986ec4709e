package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 输入数据不合法
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 记录不存在（或不属于该患者、或已 resolve）
	ErrNotFound = errors.New("not found")
	// ErrConflict 唯一约束冲突或非法状态转换
	ErrConflict = errors.New("conflict")
)

// ValidationError 校验错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError 记录不存在
type NotFoundError struct {
	Resource        string
	ID              string
	AlreadyResolved bool
}

func (e *NotFoundError) Error() string {
	if e.AlreadyResolved {
		return fmt.Sprintf("%s %s already resolved", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError 非法状态转换（如对终态服药记录再次操作）
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsAlreadyResolved 是否为“已 resolve”类的 NotFound
func IsAlreadyResolved(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.AlreadyResolved
}
