package server

import (
	"errors"

	"arenasync/protocol"
	"arenasync/store"
)

// ErrValidation 业务字段缺失或不合法
var ErrValidation = errors.New("validation failed")

// 回给客户端的固定文案
const (
	msgUnknownType   = "未知消息类型"
	msgMissingFields = "缺少必要字段"
	msgBadCredential = "请输入正确的账号密码"
	msgNotOnline     = "尚未上线"
	msgOutOfBounds   = "移动超出地图范围"
	msgItemGone      = "道具不存在或已被收集"
	msgItemMismatch  = "道具类型不符"
	msgInternal      = "服务器内部错误"
	msgDecodePrefix  = "消息处理错误: "
	msgRecordMissing = "记录不存在"
)

// clientError 携带需要原样告知客户端的文案
type clientError struct {
	msg string
	err error
}

func (e *clientError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *clientError) Unwrap() error { return e.err }

// reject 以 Error 消息回复 msg
func reject(msg string, cause error) error {
	return &clientError{msg: msg, err: cause}
}

func invalid(msg string) error {
	return &clientError{msg: msg, err: ErrValidation}
}

// errorText 把处理器返回的错误转换为发给客户端的文案；internal 表示需要按内部错误记录
func errorText(err error) (text string, internal bool) {
	var ce *clientError
	switch {
	case errors.As(err, &ce):
		return ce.msg, false
	case errors.Is(err, protocol.ErrTruncated),
		errors.Is(err, protocol.ErrHeaderTooShort),
		errors.Is(err, protocol.ErrLengthMismatch),
		errors.Is(err, protocol.ErrFieldTooLarge):
		return msgDecodePrefix + err.Error(), false
	case errors.Is(err, store.ErrNotFound):
		return msgRecordMissing, false
	default:
		return msgInternal, true
	}
}
