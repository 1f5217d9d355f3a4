package protocol

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessages_OnlineRequest(t *testing.T) {
	req := OnlineRequest{
		PlayerID:    42,
		MapID:       1,
		Job:         "Mage",
		Position:    Vec3{X: 10, Y: 0.5, Z: 20},
		Rotation:    IdentityQuat,
		ScaleFactor: 1000,
	}
	b, err := req.Encode()
	require.NoError(t, err)

	got, err := DecodeOnlineRequest(b)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	_, err = DecodeOnlineRequest(b[:len(b)-2])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestMessages_PlayerList(t *testing.T) {
	players := []PlayerState{
		{PlayerID: 1, MapID: 2, Job: "Warrior", Position: Vec3{X: 1}, Rotation: IdentityQuat, ScaleFactor: 1000},
		{PlayerID: 3, MapID: 2, Job: "", Velocity: Vec3{Z: -1}, ScaleFactor: 1200},
	}
	b, err := EncodePlayerList(players)
	require.NoError(t, err)

	got, err := DecodePlayerList(b)
	require.NoError(t, err)
	assert.Equal(t, players, got)

	empty, err := EncodePlayerList(nil)
	require.NoError(t, err)
	got, err = DecodePlayerList(empty)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMessages_PlayerListRejectsBogusCount(t *testing.T) {
	_, err := DecodePlayerList([]byte{0x7f, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestMessages_CharacterInfo(t *testing.T) {
	info := CharacterInfo{ID: 9, Name: "Hero", Level: 1, CurHP: 80, MaxHP: 100, CurMP: 30, MaxMP: 50}
	b, err := info.Encode()
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, b[0])

	got, err := DecodeCharacterInfo(b)
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestMessages_TransformAndMove(t *testing.T) {
	move := MoveRequest{
		PlayerID: 5, MapID: 1,
		Position: Vec3{X: 1, Y: 2, Z: 3},
		Velocity: Vec3{X: 0.1},
		Rotation: Quat{Y: 1},
	}
	got, err := DecodeMoveRequest(move.Encode())
	require.NoError(t, err)
	assert.Equal(t, move, got)

	tr := Transform{PlayerID: 5, Position: move.Position, Velocity: move.Velocity, Rotation: move.Rotation, ScaleFactor: 1100}
	gotTr, err := DecodeTransform(tr.Encode())
	require.NoError(t, err)
	assert.Equal(t, tr, gotTr)
}

func TestMessages_Items(t *testing.T) {
	ic := ItemCollected{ItemType: "Gem01", SpawnID: 7}
	b, err := ic.Encode()
	require.NoError(t, err)
	gotIC, err := DecodeItemCollected(b)
	require.NoError(t, err)
	assert.Equal(t, ic, gotIC)

	is := ItemSpawned{SpawnID: 7, ItemType: "Star02", Position: Vec3{X: 3, Y: 0.5, Z: 4}}
	b, err = is.Encode()
	require.NoError(t, err)
	gotIS, err := DecodeItemSpawned(b)
	require.NoError(t, err)
	assert.Equal(t, is, gotIS)
}

func TestMessages_LoginAndStatus(t *testing.T) {
	req := LoginRequest{Username: "a@b.com", Password: "pw"}
	b, err := req.Encode()
	require.NoError(t, err)
	got, err := DecodeLoginRequest(b)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	res, err := DecodeLoginResult(LoginResult{Banned: true}.Encode())
	require.NoError(t, err)
	assert.True(t, res.Banned)
	assert.Equal(t, []byte{0, 0, 0, 0}, LoginResult{}.Encode())

	sm := StatusMessage{Status: StatusFailure, Message: "角色名称已经存在"}
	b, err = sm.Encode()
	require.NoError(t, err)
	gotSM, err := DecodeStatusMessage(b)
	require.NoError(t, err)
	assert.Equal(t, sm, gotSM)

	id, err := DecodeOffline(EncodeOffline(-3))
	require.NoError(t, err)
	assert.Equal(t, int32(-3), id)

	text, err := DecodeText(EncodeText("欢迎登录：c1"))
	require.NoError(t, err)
	assert.Equal(t, "欢迎登录：c1", text)
}

func TestMessages_EncodeTextTruncatesOnRuneBoundary(t *testing.T) {
	// 1 + 3*n 字节，上限正好落在一个汉字中间
	long := "a" + strings.Repeat("中", 30000)
	b := EncodeText(long)
	require.LessOrEqual(t, len(b), Uint16Size+MaxStringLen)

	text, err := DecodeText(b)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, MaxStringLen-2, len(text))
	assert.True(t, strings.HasPrefix(long, text))
}
