package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 记录不存在. Get 与 Update 返回它，Delete 从不返回.
var ErrNotFound = errors.New("record not found")

// errVanished 条件写入被拒绝后再次读取仍不存在（记录在两次调用之间被删除）.
var errVanished = errors.New("record vanished after conditional check")

// ValidationError 创建输入缺少必填字段或字段类型错误，不会重试.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string

	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}

	if len(e.Invalid) > 0 {
		parts = append(parts, "fields must be strings: "+strings.Join(e.Invalid, ", "))
	}

	return strings.Join(parts, "; ")
}

// StoreError 记录存储或对象存储调用失败. Op 为失败的操作.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsValidation 报告 err 是否为 ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStore 报告 err 是否为 StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
