package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize 帧头：1 字节类型 + 4 字节大端负载长度
const HeaderSize = Uint8Size + Int32Size

var (
	ErrHeaderTooShort = errors.New("protocol: header too short")
	ErrLengthMismatch = errors.New("protocol: payload length mismatch")
)

// Frame 组装一条完整消息：type | len(payload) | payload
func Frame(t MsgType, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrFieldTooLarge, len(payload))
	}
	b := make([]byte, HeaderSize, HeaderSize+len(payload))
	b[0] = byte(t)
	binary.BigEndian.PutUint32(b[1:HeaderSize], uint32(len(payload)))
	return append(b, payload...), nil
}

// MustFrame 用于负载长度已知合法的场景（服务端自行编码的消息）
func MustFrame(t MsgType, payload []byte) []byte {
	b, err := Frame(t, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// Unframe 拆解一条消息。每次传输投递恰好一条消息，声明长度必须与剩余字节完全一致
func Unframe(b []byte) (MsgType, []byte, error) {
	if len(b) < HeaderSize {
		return 0, nil, fmt.Errorf("%w: got %d bytes, need %d", ErrHeaderTooShort, len(b), HeaderSize)
	}
	t := MsgType(b[0])
	declared := binary.BigEndian.Uint32(b[1:HeaderSize])
	payload := b[HeaderSize:]
	if uint64(declared) != uint64(len(payload)) {
		return t, nil, fmt.Errorf("%w: declared %d, actual %d", ErrLengthMismatch, declared, len(payload))
	}
	return t, payload, nil
}
