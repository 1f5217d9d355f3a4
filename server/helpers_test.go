package server

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"arenasync/protocol"
	"arenasync/store"
)

type sentFrame struct {
	typ     protocol.MsgType
	payload []byte
}

type mockConn struct {
	id ConnID

	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func newMockConn(id string) *mockConn { return &mockConn{id: ConnID(id)} }

func (m *mockConn) ID() ConnID { return m.id }

func (m *mockConn) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrConnClosed
	}
	if m.fail {
		return ErrSendQueueFull
	}
	m.sent = append(m.sent, frame)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) setFail(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = v
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

func (m *mockConn) frames(t *testing.T) []sentFrame {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentFrame, 0, len(m.sent))
	for _, b := range m.sent {
		typ, payload, err := protocol.Unframe(b)
		require.NoError(t, err)
		out = append(out, sentFrame{typ: typ, payload: payload})
	}
	return out
}

func (m *mockConn) framesOf(t *testing.T, typ protocol.MsgType) [][]byte {
	t.Helper()
	var out [][]byte
	for _, f := range m.frames(t) {
		if f.typ == typ {
			out = append(out, f.payload)
		}
	}
	return out
}

func (m *mockConn) types(t *testing.T) []protocol.MsgType {
	t.Helper()
	var out []protocol.MsgType
	for _, f := range m.frames(t) {
		out = append(out, f.typ)
	}
	return out
}

// lastError 最近一条 Error 消息的文本，没有时为空串
func (m *mockConn) lastError(t *testing.T) string {
	t.Helper()
	errs := m.framesOf(t, protocol.MsgError)
	if len(errs) == 0 {
		return ""
	}
	text, err := protocol.DecodeText(errs[len(errs)-1])
	require.NoError(t, err)
	return text
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	srv   *Server
	mem   *store.Memory
	clock *fakeClock
}

// newTestEnv 1 号地图 1000x1000，道具表为默认配置，不自动生成刷新点
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.Maps = []MapConfig{{ID: 1, Width: 1000, Depth: 1000}, {ID: 2, Width: 200, Depth: 200}}
	cfg.Accounts = []AccountConfig{
		{Email: "alice@example.com", Password: "secret"},
		{Email: "mallory@example.com", Password: "secret", Banned: true},
	}

	mem := store.NewMemory(store.WithBcryptCost(bcrypt.MinCost), store.WithClock(clock.Now))
	require.NoError(t, Bootstrap(mem, cfg, nil))
	srv := New(cfg, mem, WithClock(clock.Now))
	t.Cleanup(func() { _ = srv.Shutdown() })
	return &testEnv{srv: srv, mem: mem, clock: clock}
}

// connect 建立连接并丢弃欢迎消息
func (e *testEnv) connect(t *testing.T, id string) *mockConn {
	t.Helper()
	c := newMockConn(id)
	e.srv.OnConnect(c)
	c.reset()
	return c
}

func (e *testEnv) send(c *mockConn, typ protocol.MsgType, payload []byte) {
	e.srv.OnMessage(context.Background(), c.id, protocol.MustFrame(typ, payload))
}

func (e *testEnv) online(t *testing.T, c *mockConn, playerID, mapID int32, pos protocol.Vec3) {
	t.Helper()
	payload, err := protocol.OnlineRequest{
		PlayerID:    playerID,
		MapID:       mapID,
		Job:         "warrior",
		Position:    pos,
		Rotation:    protocol.IdentityQuat,
		ScaleFactor: 1000,
	}.Encode()
	require.NoError(t, err)
	// 只检查本次上线产生的 Error，之前残留的不算
	before := len(c.framesOf(t, protocol.MsgError))
	e.send(c, protocol.MsgPlayerOnline, payload)
	require.Len(t, c.framesOf(t, protocol.MsgError), before, "player %d online: %s", playerID, c.lastError(t))
}

func (e *testEnv) move(c *mockConn, playerID, mapID int32, pos protocol.Vec3) {
	e.send(c, protocol.MsgPlayerMove, protocol.MoveRequest{
		PlayerID: playerID,
		MapID:    mapID,
		Position: pos,
		Velocity: protocol.Vec3{X: 1},
		Rotation: protocol.IdentityQuat,
	}.Encode())
}

func (e *testEnv) collect(t *testing.T, c *mockConn, itemType string, spawnID int32) {
	t.Helper()
	payload, err := protocol.ItemCollected{ItemType: itemType, SpawnID: spawnID}.Encode()
	require.NoError(t, err)
	e.send(c, protocol.MsgItemCollected, payload)
}

// addSpawns 在地图上放置 n 个 itemID 刷新点，返回分配的 id
func (e *testEnv) addSpawns(itemID, mapID int32, n int) []int32 {
	ids := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, e.mem.AddSpawn(store.Spawn{
			ItemID:   itemID,
			MapID:    mapID,
			Position: store.Position{X: float32(10 * (i + 1)), Y: 0.5, Z: 20},
		}))
	}
	return ids
}

func connName(i int) string { return fmt.Sprintf("conn-%02d", i) }
