package protocol

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	t.Run("strings", func(t *testing.T) {
		for _, s := range []string{"", "a", "a@b.com", "最多创建1个角色", strings.Repeat("x", MaxStringLen)} {
			w := NewWriter(0)
			w.String(s)
			b, err := w.Bytes()
			require.NoError(t, err)
			assert.Len(t, b, Uint16Size+len(s))

			got, err := NewReader(b).String("s")
			require.NoError(t, err)
			assert.Equal(t, s, got)
		}
	})

	t.Run("int32", func(t *testing.T) {
		for _, v := range []int32{0, 1, -1, 7, math.MaxInt32, math.MinInt32} {
			w := NewWriter(0)
			w.Int32(v)
			b, err := w.Bytes()
			require.NoError(t, err)

			got, err := NewReader(b).Int32("v")
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("float32", func(t *testing.T) {
		for _, v := range []float32{0, -1, 0.5, 1000, -123.456, math.MaxFloat32, math.SmallestNonzeroFloat32} {
			w := NewWriter(0)
			w.Float32(v)
			b, err := w.Bytes()
			require.NoError(t, err)

			got, err := NewReader(b).Float32("v")
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("position and quaternion", func(t *testing.T) {
		pos := Vec3{X: 12.5, Y: 0.5, Z: -3}
		rot := Quat{X: 0, Y: 0.7071, Z: 0, W: 0.7071}

		w := NewWriter(0)
		w.Vec3(pos)
		w.Quat(rot)
		b, err := w.Bytes()
		require.NoError(t, err)
		require.Len(t, b, Vec3Size+QuatSize)

		r := NewReader(b)
		gotPos, err := r.Vec3("position")
		require.NoError(t, err)
		gotRot, err := r.Quat("rotation")
		require.NoError(t, err)
		assert.Equal(t, pos, gotPos)
		assert.Equal(t, rot, gotRot)
		assert.Zero(t, r.Remaining())
	})
}

func TestCodec_BigEndianLayout(t *testing.T) {
	w := NewWriter(0)
	w.Uint8(2)
	w.Int32(-2)
	w.Float32(1)
	w.String("hi")
	b, err := w.Bytes()
	require.NoError(t, err)

	assert.Equal(t, []byte{
		0x02,
		0xff, 0xff, 0xff, 0xfe,
		0x3f, 0x80, 0x00, 0x00,
		0x00, 0x02, 'h', 'i',
	}, b)
}

func TestCodec_Truncated(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		read      func(r *Reader) error
		wantField string
		deficit   int
	}{
		{
			name:      "int32 with 3 bytes",
			input:     []byte{0, 0, 1},
			read:      func(r *Reader) error { _, err := r.Int32("playerId"); return err },
			wantField: "playerId",
			deficit:   1,
		},
		{
			name:      "string length prefix missing",
			input:     []byte{0},
			read:      func(r *Reader) error { _, err := r.String("username"); return err },
			wantField: "username.len",
			deficit:   1,
		},
		{
			name:      "string body short",
			input:     []byte{0, 5, 'a', 'b'},
			read:      func(r *Reader) error { _, err := r.String("username"); return err },
			wantField: "username",
			deficit:   3,
		},
		{
			name:      "quaternion short",
			input:     make([]byte, 12),
			read:      func(r *Reader) error { _, err := r.Quat("rotation"); return err },
			wantField: "rotation",
			deficit:   4,
		},
		{
			name:      "empty uint8",
			input:     nil,
			read:      func(r *Reader) error { _, err := r.Uint8("status"); return err },
			wantField: "status",
			deficit:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTruncated)

			var te *TruncatedError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.wantField, te.Field)
			assert.Equal(t, tt.deficit, te.Deficit())
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestCodec_StringTooLarge(t *testing.T) {
	w := NewWriter(0)
	w.String(strings.Repeat("x", MaxStringLen+1))
	w.Int32(1)

	_, err := w.Bytes()
	assert.ErrorIs(t, err, ErrFieldTooLarge)
	assert.ErrorIs(t, w.Err(), ErrFieldTooLarge)
}

func TestCodec_StringLengthCountsBytes(t *testing.T) {
	w := NewWriter(0)
	w.String("角色")
	b, err := w.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 6}, b[:2])
}
