package server

import (
	"sync/atomic"
)

// ServerMetrics 记录运行期的关键指标（用于监控与调试）
type ServerMetrics struct {
	MessagesHandled  int64 // 收到并完成分发的消息数
	ErrorsSent       int64 // 回给客户端的 Error 消息数
	UnknownTypes     int64 // 未知类型消息数
	BroadcastFrames  int64 // 广播调用次数
	DeliveriesFailed int64 // 单播/广播中投递失败的次数
	MovesRejected    int64 // 越界被拒绝的移动
	ItemsCollected   int64 // 成功拾取的道具
	ItemsRespawned   int64 // 调度器刷新的道具
	TickCount        int64 // 调度器执行次数
	TotalTickNs      int64 // 调度器累计耗时（纳秒）
}

func (m *ServerMetrics) IncMessages()       { atomic.AddInt64(&m.MessagesHandled, 1) }
func (m *ServerMetrics) IncErrorsSent()     { atomic.AddInt64(&m.ErrorsSent, 1) }
func (m *ServerMetrics) IncUnknownTypes()   { atomic.AddInt64(&m.UnknownTypes, 1) }
func (m *ServerMetrics) IncMovesRejected()  { atomic.AddInt64(&m.MovesRejected, 1) }
func (m *ServerMetrics) IncItemsCollected() { atomic.AddInt64(&m.ItemsCollected, 1) }
func (m *ServerMetrics) IncItemsRespawned() { atomic.AddInt64(&m.ItemsRespawned, 1) }
func (m *ServerMetrics) AddBroadcast(failed int) {
	atomic.AddInt64(&m.BroadcastFrames, 1)
	m.AddFailed(failed)
}
func (m *ServerMetrics) AddFailed(n int) {
	if n > 0 {
		atomic.AddInt64(&m.DeliveriesFailed, int64(n))
	}
}
func (m *ServerMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *ServerMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"messages_handled":  atomic.LoadInt64(&m.MessagesHandled),
		"errors_sent":       atomic.LoadInt64(&m.ErrorsSent),
		"unknown_types":     atomic.LoadInt64(&m.UnknownTypes),
		"broadcast_frames":  atomic.LoadInt64(&m.BroadcastFrames),
		"deliveries_failed": atomic.LoadInt64(&m.DeliveriesFailed),
		"moves_rejected":    atomic.LoadInt64(&m.MovesRejected),
		"items_collected":   atomic.LoadInt64(&m.ItemsCollected),
		"items_respawned":   atomic.LoadInt64(&m.ItemsRespawned),
		"tick_count":        tick,
		"avg_tick_ms":       avgMs,
	}
}
