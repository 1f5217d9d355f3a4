package server

import (
	"context"
	"fmt"

	"arenasync/protocol"
)

// HandlerFunc 处理一条已拆帧的消息。id 是发起连接，所有会话访问都以它为键
type HandlerFunc func(ctx context.Context, id ConnID, payload []byte) error

// Dispatcher 消息类型 → 处理器的固定路由表，构造后不再变化。
// 处理器返回的任何错误（含 panic）都在这里转换为发给发起连接的 Error 消息并记录日志
type Dispatcher struct {
	routes  map[protocol.MsgType]HandlerFunc
	reply   func(ConnID, []byte) bool
	metrics *ServerMetrics
}

func NewDispatcher(routes map[protocol.MsgType]HandlerFunc, reply func(ConnID, []byte) bool, metrics *ServerMetrics) *Dispatcher {
	table := make(map[protocol.MsgType]HandlerFunc, len(routes))
	for t, h := range routes {
		table[t] = h
	}
	if metrics == nil {
		metrics = &ServerMetrics{}
	}
	return &Dispatcher{routes: table, reply: reply, metrics: metrics}
}

// Dispatch 处理一次传输投递。同一连接的调用由传输层串行化
func (d *Dispatcher) Dispatch(ctx context.Context, id ConnID, data []byte) {
	d.metrics.IncMessages()

	msgType, payload, err := protocol.Unframe(data)
	if err != nil {
		d.fail(id, msgType, err)
		return
	}
	h, ok := d.routes[msgType]
	if !ok {
		d.metrics.IncUnknownTypes()
		Log.Warnw("unknown message type", "conn", id, "type", msgType, "size", len(data))
		d.sendError(id, msgUnknownType)
		return
	}
	if err := d.invoke(ctx, h, id, payload); err != nil {
		d.fail(id, msgType, err)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h HandlerFunc, id ConnID, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, id, payload)
}

func (d *Dispatcher) fail(id ConnID, msgType protocol.MsgType, err error) {
	text, internal := errorText(err)
	if internal {
		Log.Errorw("message handling failed", "conn", id, "type", msgType, "error", err)
	} else {
		Log.Infow("message rejected", "conn", id, "type", msgType, "reason", err)
	}
	d.sendError(id, text)
}

func (d *Dispatcher) sendError(id ConnID, text string) {
	d.metrics.IncErrorsSent()
	if !d.reply(id, protocol.MustFrame(protocol.MsgError, protocol.EncodeText(text))) {
		d.metrics.AddFailed(1)
	}
}
