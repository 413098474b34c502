package util

import (
	"errors"
	"fmt"
)

// NotFoundError 引用的实体不存在或已被软删除
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// BadRequestError 输入不合法、提交窗口关闭、权限不足或人工调分非法
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

func NewNotFoundError(format string, args ...interface{}) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

func NewBadRequestError(format string, args ...interface{}) error {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}
