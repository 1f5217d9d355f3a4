package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// 字段编码长度（字节）
const (
	Uint8Size   = 1
	Uint16Size  = 2
	Int32Size   = 4
	Float32Size = 4
	Vec3Size    = 3 * Float32Size
	QuatSize    = 4 * Float32Size

	// MaxStringLen 字符串长度前缀为 uint16
	MaxStringLen = math.MaxUint16
)

var (
	// ErrTruncated 剩余字节不足以解出字段，具体信息见 *TruncatedError
	ErrTruncated = errors.New("protocol: truncated field")
	// ErrFieldTooLarge 字段超出线上格式可表示的长度
	ErrFieldTooLarge = errors.New("protocol: field too large")
)

// TruncatedError 记录哪个字段缺了多少字节
type TruncatedError struct {
	Field string
	Need  int
	Have  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("protocol: truncated field %q: need %d bytes, have %d (short by %d)",
		e.Field, e.Need, e.Have, e.Deficit())
}

// Deficit 缺少的字节数
func (e *TruncatedError) Deficit() int { return e.Need - e.Have }

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncated }

// Vec3 三维向量：位置、速度共用
type Vec3 struct {
	X, Y, Z float32
}

// Quat 旋转四元数，线上顺序 x,y,z,w
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat 无旋转
var IdentityQuat = Quat{W: 1}

// Writer 以大端序顺序追加字段；出错后后续写入全部忽略，由 Err/Bytes 统一返回
type Writer struct {
	buf []byte
	err error
}

// NewWriter 创建写入器，sizeHint 仅用于预分配
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) Uint8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

func (w *Writer) Uint32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// Int32 补码编码
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

// String uint16 字节长度前缀 + UTF-8 字节（长度按字节计）
func (w *Writer) String(s string) {
	if w.err != nil {
		return
	}
	if len(s) > MaxStringLen {
		w.err = fmt.Errorf("%w: string of %d bytes exceeds %d", ErrFieldTooLarge, len(s), MaxStringLen)
		return
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) Vec3(v Vec3) {
	w.Float32(v.X)
	w.Float32(v.Y)
	w.Float32(v.Z)
}

func (w *Writer) Quat(q Quat) {
	w.Float32(q.X)
	w.Float32(q.Y)
	w.Float32(q.Z)
	w.Float32(q.W)
}

// Raw 原样追加
func (w *Writer) Raw(b []byte) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, b...)
}

func (w *Writer) Err() error { return w.err }

func (w *Writer) Len() int { return len(w.buf) }

// Bytes 返回编码结果；任一字段出错则返回该错误
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// Reader 按顺序解码负载；每次读取都需给出字段名，便于截断时定位
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining 未读字节数
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(field string, n int) ([]byte, error) {
	if have := r.Remaining(); have < n {
		return nil, &TruncatedError{Field: field, Need: n, Have: have}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Uint8(field string) (uint8, error) {
	b, err := r.take(field, Uint8Size)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint32(field string) (uint32, error) {
	b, err := r.take(field, Int32Size)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Int32(field string) (int32, error) {
	v, err := r.Uint32(field)
	return int32(v), err
}

func (r *Reader) Float32(field string) (float32, error) {
	v, err := r.Uint32(field)
	return math.Float32frombits(v), err
}

func (r *Reader) String(field string) (string, error) {
	lb, err := r.take(field+".len", Uint16Size)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(lb))
	b, err := r.take(field, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) Vec3(field string) (Vec3, error) {
	b, err := r.take(field, Vec3Size)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{
		X: math.Float32frombits(binary.BigEndian.Uint32(b[0:4])),
		Y: math.Float32frombits(binary.BigEndian.Uint32(b[4:8])),
		Z: math.Float32frombits(binary.BigEndian.Uint32(b[8:12])),
	}, nil
}

func (r *Reader) Quat(field string) (Quat, error) {
	b, err := r.take(field, QuatSize)
	if err != nil {
		return Quat{}, err
	}
	return Quat{
		X: math.Float32frombits(binary.BigEndian.Uint32(b[0:4])),
		Y: math.Float32frombits(binary.BigEndian.Uint32(b[4:8])),
		Z: math.Float32frombits(binary.BigEndian.Uint32(b[8:12])),
		W: math.Float32frombits(binary.BigEndian.Uint32(b[12:16])),
	}, nil
}

// Rest 取出剩余全部字节
func (r *Reader) Rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}
