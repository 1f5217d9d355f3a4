package server

import "errors"

// ConnID 连接标识。会话、分组都以连接为键，玩家重连会得到新的连接与新的会话
type ConnID string

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// Conn 传输层连接：发送一条已组帧的消息，或关闭连接。
// Send 不得长时间阻塞；同一连接上的多次 Send 按调用顺序送达
type Conn interface {
	ID() ConnID
	Send(frame []byte) error
	Close() error
}
