package service

import "errors"

// 业务层错误分类，边界层用 errors.Is 映射：
// REST -> HTTP 状态码，websocket -> 私发 error 事件。
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("invalid payload")
)
