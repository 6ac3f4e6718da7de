package backend

import (
	"errors"
	"fmt"
)

// Kind 区分后端错误的类别，调用方据此决定失败、提示还是忽略。
type Kind int

const (
	// KindOther 是未分类错误：缓存不可用、网络失败等。
	KindOther Kind = iota
	// KindValidation 表示调用方传入了不合法的 key 或路径。
	KindValidation
	// KindReservationConflict 表示同一 key 已存在或正被其他任务写入。
	KindReservationConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReservationConflict:
		return "reservation_conflict"
	default:
		return "other"
	}
}

// Error 是带类别标签的后端错误。Error() 只返回底层消息，保证原始提示能直接呈现给用户。
type Error struct {
	Kind Kind
	Op   string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation 构造 KindValidation 错误。
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// ReservationConflict 构造 KindReservationConflict 错误，err 为空时使用标准提示。
func ReservationConflict(op, key string, err error) error {
	if err == nil {
		err = fmt.Errorf("Unable to reserve cache with key %s, another job may be creating this cache.", key)
	}
	return &Error{Kind: KindReservationConflict, Op: op, Key: key, Err: err}
}

// KindOf 返回错误链中第一个 *Error 的类别，非后端错误视为 KindOther。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// IsValidation 报告 err 是否为校验类错误。
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// IsReservationConflict 报告 err 是否为占用冲突。
func IsReservationConflict(err error) bool {
	return err != nil && KindOf(err) == KindReservationConflict
}
