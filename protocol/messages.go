package protocol

import (
	"math"
	"unicode/utf8"
)

// 各消息的负载结构与编解码。Decode* 只负责线上格式，业务校验由处理器完成

// minPlayerStateSize 空 job 时一个 PlayerState 的字节数
const minPlayerStateSize = 2*Int32Size + Uint16Size + 2*Vec3Size + QuatSize + Int32Size

// LoginRequest 客户端 PlayerLogin
type LoginRequest struct {
	Username string
	Password string
}

func DecodeLoginRequest(b []byte) (LoginRequest, error) {
	r := NewReader(b)
	var req LoginRequest
	var err error
	if req.Username, err = r.String("username"); err != nil {
		return req, err
	}
	if req.Password, err = r.String("password"); err != nil {
		return req, err
	}
	return req, nil
}

func (m LoginRequest) Encode() ([]byte, error) {
	w := NewWriter(4 + len(m.Username) + len(m.Password))
	w.String(m.Username)
	w.String(m.Password)
	return w.Bytes()
}

// LoginResult 服务端 PlayerLogin 应答，只携带封禁标记
type LoginResult struct {
	Banned bool
}

func (m LoginResult) Encode() []byte {
	w := NewWriter(Int32Size)
	if m.Banned {
		w.Uint32(1)
	} else {
		w.Uint32(0)
	}
	b, _ := w.Bytes()
	return b
}

func DecodeLoginResult(b []byte) (LoginResult, error) {
	v, err := NewReader(b).Uint32("banned")
	return LoginResult{Banned: v != 0}, err
}

// StatusMessage 状态字节 + 文本（CharacterCreate 应答、无角色时的 Character 应答）
type StatusMessage struct {
	Status  uint8
	Message string
}

func (m StatusMessage) Encode() ([]byte, error) {
	w := NewWriter(Uint8Size + Uint16Size + len(m.Message))
	w.Uint8(m.Status)
	w.String(m.Message)
	return w.Bytes()
}

func DecodeStatusMessage(b []byte) (StatusMessage, error) {
	r := NewReader(b)
	var m StatusMessage
	var err error
	if m.Status, err = r.Uint8("status"); err != nil {
		return m, err
	}
	m.Message, err = r.String("message")
	return m, err
}

// CharacterInfo 角色快照（状态字节固定为成功）
type CharacterInfo struct {
	ID    int32
	Name  string
	Level int32
	CurHP int32
	MaxHP int32
	CurMP int32
	MaxMP int32
}

func (m CharacterInfo) Encode() ([]byte, error) {
	w := NewWriter(Uint8Size + 6*Int32Size + Uint16Size + len(m.Name))
	w.Uint8(StatusSuccess)
	w.Int32(m.ID)
	w.String(m.Name)
	w.Int32(m.Level)
	w.Int32(m.CurHP)
	w.Int32(m.MaxHP)
	w.Int32(m.CurMP)
	w.Int32(m.MaxMP)
	return w.Bytes()
}

// DecodeCharacterInfo 解析成功状态的 Character 负载；失败状态请用 DecodeStatusMessage
func DecodeCharacterInfo(b []byte) (CharacterInfo, error) {
	r := NewReader(b)
	var m CharacterInfo
	if _, err := r.Uint8("status"); err != nil {
		return m, err
	}
	var err error
	if m.ID, err = r.Int32("id"); err != nil {
		return m, err
	}
	if m.Name, err = r.String("name"); err != nil {
		return m, err
	}
	for _, f := range []struct {
		name string
		dst  *int32
	}{
		{"level", &m.Level}, {"curHP", &m.CurHP}, {"maxHP", &m.MaxHP}, {"curMP", &m.CurMP}, {"maxMP", &m.MaxMP},
	} {
		if *f.dst, err = r.Int32(f.name); err != nil {
			return m, err
		}
	}
	return m, nil
}

// CharacterCreateRequest 客户端 CharacterCreate
type CharacterCreateRequest struct {
	Name        string
	AccountName string
}

func DecodeCharacterCreateRequest(b []byte) (CharacterCreateRequest, error) {
	r := NewReader(b)
	var req CharacterCreateRequest
	var err error
	if req.Name, err = r.String("name"); err != nil {
		return req, err
	}
	req.AccountName, err = r.String("accountName")
	return req, err
}

func (m CharacterCreateRequest) Encode() ([]byte, error) {
	w := NewWriter(4 + len(m.Name) + len(m.AccountName))
	w.String(m.Name)
	w.String(m.AccountName)
	return w.Bytes()
}

// OnlineRequest 客户端 PlayerOnline
type OnlineRequest struct {
	PlayerID    int32
	MapID       int32
	Job         string
	Position    Vec3
	Rotation    Quat
	ScaleFactor int32
}

func DecodeOnlineRequest(b []byte) (OnlineRequest, error) {
	r := NewReader(b)
	var req OnlineRequest
	var err error
	if req.PlayerID, err = r.Int32("playerId"); err != nil {
		return req, err
	}
	if req.MapID, err = r.Int32("mapId"); err != nil {
		return req, err
	}
	if req.Job, err = r.String("job"); err != nil {
		return req, err
	}
	if req.Position, err = r.Vec3("position"); err != nil {
		return req, err
	}
	if req.Rotation, err = r.Quat("rotation"); err != nil {
		return req, err
	}
	req.ScaleFactor, err = r.Int32("scaleFactor")
	return req, err
}

func (m OnlineRequest) Encode() ([]byte, error) {
	w := NewWriter(3*Int32Size + Uint16Size + len(m.Job) + Vec3Size + QuatSize)
	w.Int32(m.PlayerID)
	w.Int32(m.MapID)
	w.String(m.Job)
	w.Vec3(m.Position)
	w.Quat(m.Rotation)
	w.Int32(m.ScaleFactor)
	return w.Bytes()
}

// PlayerState 广播给其他玩家的完整状态（PlayerOnline、PlayerList 条目）
type PlayerState struct {
	PlayerID    int32
	MapID       int32
	Job         string
	Position    Vec3
	Velocity    Vec3
	Rotation    Quat
	ScaleFactor int32
}

func (m PlayerState) write(w *Writer) {
	w.Int32(m.PlayerID)
	w.Int32(m.MapID)
	w.String(m.Job)
	w.Vec3(m.Position)
	w.Vec3(m.Velocity)
	w.Quat(m.Rotation)
	w.Int32(m.ScaleFactor)
}

func readPlayerState(r *Reader) (PlayerState, error) {
	var m PlayerState
	var err error
	if m.PlayerID, err = r.Int32("playerId"); err != nil {
		return m, err
	}
	if m.MapID, err = r.Int32("mapId"); err != nil {
		return m, err
	}
	if m.Job, err = r.String("job"); err != nil {
		return m, err
	}
	if m.Position, err = r.Vec3("position"); err != nil {
		return m, err
	}
	if m.Velocity, err = r.Vec3("velocity"); err != nil {
		return m, err
	}
	if m.Rotation, err = r.Quat("rotation"); err != nil {
		return m, err
	}
	m.ScaleFactor, err = r.Int32("scaleFactor")
	return m, err
}

func (m PlayerState) Encode() ([]byte, error) {
	w := NewWriter(64 + len(m.Job))
	m.write(w)
	return w.Bytes()
}

func DecodePlayerState(b []byte) (PlayerState, error) {
	return readPlayerState(NewReader(b))
}

// EncodePlayerList 花名册：int32 数量 + 多个 PlayerState
func EncodePlayerList(players []PlayerState) ([]byte, error) {
	w := NewWriter(Int32Size + 64*len(players))
	w.Int32(int32(len(players)))
	for _, p := range players {
		p.write(w)
	}
	return w.Bytes()
}

func DecodePlayerList(b []byte) ([]PlayerState, error) {
	r := NewReader(b)
	n, err := r.Uint32("count")
	if err != nil {
		return nil, err
	}
	if need := uint64(n) * minPlayerStateSize; need > uint64(r.Remaining()) {
		return nil, &TruncatedError{Field: "players", Need: int(min(need, uint64(math.MaxInt32))), Have: r.Remaining()}
	}
	out := make([]PlayerState, 0, n)
	for i := uint32(0); i < n; i++ {
		p, err := readPlayerState(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// MoveRequest 客户端 PlayerMove
type MoveRequest struct {
	PlayerID int32
	MapID    int32
	Position Vec3
	Velocity Vec3
	Rotation Quat
}

func DecodeMoveRequest(b []byte) (MoveRequest, error) {
	r := NewReader(b)
	var req MoveRequest
	var err error
	if req.PlayerID, err = r.Int32("playerId"); err != nil {
		return req, err
	}
	if req.MapID, err = r.Int32("mapId"); err != nil {
		return req, err
	}
	if req.Position, err = r.Vec3("position"); err != nil {
		return req, err
	}
	if req.Velocity, err = r.Vec3("velocity"); err != nil {
		return req, err
	}
	req.Rotation, err = r.Quat("rotation")
	return req, err
}

func (m MoveRequest) Encode() []byte {
	w := NewWriter(2*Int32Size + 2*Vec3Size + QuatSize)
	w.Int32(m.PlayerID)
	w.Int32(m.MapID)
	w.Vec3(m.Position)
	w.Vec3(m.Velocity)
	w.Quat(m.Rotation)
	b, _ := w.Bytes()
	return b
}

// Transform 服务端 PlayerMove 广播
type Transform struct {
	PlayerID    int32
	Position    Vec3
	Velocity    Vec3
	Rotation    Quat
	ScaleFactor int32
}

func (m Transform) Encode() []byte {
	w := NewWriter(2*Int32Size + 2*Vec3Size + QuatSize)
	w.Int32(m.PlayerID)
	w.Vec3(m.Position)
	w.Vec3(m.Velocity)
	w.Quat(m.Rotation)
	w.Int32(m.ScaleFactor)
	b, _ := w.Bytes()
	return b
}

func DecodeTransform(b []byte) (Transform, error) {
	r := NewReader(b)
	var m Transform
	var err error
	if m.PlayerID, err = r.Int32("playerId"); err != nil {
		return m, err
	}
	if m.Position, err = r.Vec3("position"); err != nil {
		return m, err
	}
	if m.Velocity, err = r.Vec3("velocity"); err != nil {
		return m, err
	}
	if m.Rotation, err = r.Quat("rotation"); err != nil {
		return m, err
	}
	m.ScaleFactor, err = r.Int32("scaleFactor")
	return m, err
}

// ItemCollected 客户端拾取请求与服务端拾取广播共用
type ItemCollected struct {
	ItemType string
	SpawnID  int32
}

func DecodeItemCollected(b []byte) (ItemCollected, error) {
	r := NewReader(b)
	var m ItemCollected
	var err error
	if m.ItemType, err = r.String("itemType"); err != nil {
		return m, err
	}
	m.SpawnID, err = r.Int32("spawnId")
	return m, err
}

func (m ItemCollected) Encode() ([]byte, error) {
	w := NewWriter(Uint16Size + len(m.ItemType) + Int32Size)
	w.String(m.ItemType)
	w.Int32(m.SpawnID)
	return w.Bytes()
}

// ItemSpawned 道具刷新/初始状态
type ItemSpawned struct {
	SpawnID  int32
	ItemType string
	Position Vec3
}

func (m ItemSpawned) Encode() ([]byte, error) {
	w := NewWriter(Int32Size + Uint16Size + len(m.ItemType) + Vec3Size)
	w.Int32(m.SpawnID)
	w.String(m.ItemType)
	w.Vec3(m.Position)
	return w.Bytes()
}

func DecodeItemSpawned(b []byte) (ItemSpawned, error) {
	r := NewReader(b)
	var m ItemSpawned
	var err error
	if m.SpawnID, err = r.Int32("spawnId"); err != nil {
		return m, err
	}
	if m.ItemType, err = r.String("itemType"); err != nil {
		return m, err
	}
	m.Position, err = r.Vec3("position")
	return m, err
}

// EncodeOffline 服务端下线广播：离开玩家的 id
func EncodeOffline(playerID int32) []byte {
	w := NewWriter(Int32Size)
	w.Int32(playerID)
	b, _ := w.Bytes()
	return b
}

func DecodeOffline(b []byte) (int32, error) {
	return NewReader(b).Int32("playerId")
}

// EncodeText 单字符串负载（OnConnect 欢迎语、Error）。超长文本按字符边界截断到上限
func EncodeText(s string) []byte {
	if len(s) > MaxStringLen {
		cut := MaxStringLen
		// 不截断在多字节字符中间
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	w := NewWriter(Uint16Size + len(s))
	w.String(s)
	b, _ := w.Bytes()
	return b
}

func DecodeText(b []byte) (string, error) {
	return NewReader(b).String("message")
}
