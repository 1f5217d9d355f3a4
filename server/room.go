package server

import (
	"sort"

	"github.com/sasha-s/go-deadlock"
)

// Room 一张地图上的连接集合，用于限定广播范围
type Room struct {
	MapID   int32
	members map[ConnID]struct{}
}

func newRoom(mapID int32) *Room {
	return &Room{MapID: mapID, members: make(map[ConnID]struct{})}
}

// Hub 维护 连接 → Conn、地图 → Room 两张表，并负责组内广播。
// 成员关系与 Session.MapID 在 Hub 的锁内同时修改，二者不会出现不一致。
// 加锁顺序：Hub.mu 在前，SessionStore.mu 在后
type Hub struct {
	mu       deadlock.RWMutex
	conns    map[ConnID]Conn
	rooms    map[int32]*Room
	memberOf map[ConnID]int32

	sessions *SessionStore
}

func NewHub(sessions *SessionStore) *Hub {
	return &Hub{
		conns:    make(map[ConnID]Conn),
		rooms:    make(map[int32]*Room),
		memberOf: make(map[ConnID]int32),
		sessions: sessions,
	}
}

// Register 登记传输连接，并为其创建空会话
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	count := len(h.conns)
	h.mu.Unlock()
	h.sessions.Open(conn.ID())

	Log.Debugw("conn registered", "conn", conn.ID(), "conns", count)
}

// Unregister 注销传输连接；会话与分组由 Release 回收
func (h *Hub) Unregister(id ConnID) (Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[id]
	delete(h.conns, id)
	return conn, ok
}

// Enter 原子地写入完整会话并加入 state.MapID 对应的房间（先离开旧房间）。
// 返回写入前的会话
func (h *Hub) Enter(id ConnID, state Session) (prev Session, existed bool) {
	prev, existed, _ = h.EnterWith(id, state, nil)
	return prev, existed
}

// EnterWith 同 Enter，并在同一把写锁内用 prime 生成入房快照帧（参数为房间内其他已上线玩家）
// 并立即发给该连接。快照发完之前任何广播都拿不到这个连接，因此加入者先收到快照再收到房间事件。
// prime 在 Hub 锁内执行，不得回调 Hub。failed 为快照帧投递失败数
func (h *Hub) EnterWith(id ConnID, state Session, prime func(roster []Session) [][]byte) (prev Session, existed bool, failed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, existed = h.sessions.Bind(id, state)
	h.moveLocked(id, state.MapID)
	if prime == nil {
		return prev, existed, 0
	}

	frames := prime(h.rosterLocked(state.MapID, []ConnID{id}))
	conn, ok := h.conns[id]
	if !ok {
		return prev, existed, len(frames)
	}
	for _, f := range frames {
		if err := conn.Send(f); err != nil {
			failed++
			Log.Debugw("send failed", "conn", id, "error", err)
		}
	}
	return prev, existed, failed
}

// Join 加入地图房间；若已在其他房间则先离开。会话不存在时返回 false
func (h *Hub) Join(id ConnID, mapID int32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions.Update(id, func(s *Session) { s.MapID = mapID }); !ok {
		return false
	}
	h.moveLocked(id, mapID)
	return true
}

// Leave 离开指定房间；不在该房间时不做任何事
func (h *Hub) Leave(id ConnID, mapID int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.memberOf[id]; !ok || cur != mapID {
		return
	}
	h.removeLocked(id)
	h.sessions.Update(id, func(s *Session) { s.MapID = 0 })
}

// Release 清除会话并离开房间。可被 Offline 与断线同时调用，只有一方得到 true
func (h *Hub) Release(id ConnID) (Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
	return h.sessions.Clear(id)
}

func (h *Hub) moveLocked(id ConnID, mapID int32) {
	if cur, ok := h.memberOf[id]; ok {
		if cur == mapID {
			return
		}
		h.removeLocked(id)
	}
	r, ok := h.rooms[mapID]
	if !ok {
		r = newRoom(mapID)
		h.rooms[mapID] = r
	}
	r.members[id] = struct{}{}
	h.memberOf[id] = mapID
}

func (h *Hub) removeLocked(id ConnID) {
	mapID, ok := h.memberOf[id]
	if !ok {
		return
	}
	delete(h.memberOf, id)
	if r, ok := h.rooms[mapID]; ok {
		delete(r.members, id)
		if len(r.members) == 0 {
			delete(h.rooms, mapID)
		}
	}
}

// MapOf 连接当前所在地图
func (h *Hub) MapOf(id ConnID) (int32, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	mapID, ok := h.memberOf[id]
	return mapID, ok
}

// Members 房间成员（按 id 排序）
func (h *Hub) Members(mapID int32) []ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.membersLocked(mapID)
}

func (h *Hub) membersLocked(mapID int32) []ConnID {
	r, ok := h.rooms[mapID]
	if !ok {
		return nil
	}
	ids := make([]ConnID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// rosterLocked 房间内已上线玩家的会话副本，不含 excluding
func (h *Hub) rosterLocked(mapID int32, excluding []ConnID) []Session {
	out := h.sessions.Snapshot(without(h.membersLocked(mapID), excluding))
	bound := out[:0]
	for _, s := range out {
		if s.Bound() {
			bound = append(bound, s)
		}
	}
	return bound
}

// SendTo 单播，失败返回 false
func (h *Hub) SendTo(id ConnID, frame []byte) bool {
	h.mu.RLock()
	conn, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := conn.Send(frame); err != nil {
		Log.Debugw("send failed", "conn", id, "error", err)
		return false
	}
	return true
}

// Broadcast 发送给房间内除 excluding 外的每个成员。
// 单个成员发送失败只记录，不影响其他成员，也不向调用方报错
func (h *Hub) Broadcast(mapID int32, frame []byte, excluding ...ConnID) (delivered, failed int) {
	h.mu.RLock()
	ids := without(h.membersLocked(mapID), excluding)
	targets := make([]Conn, 0, len(ids))
	for _, id := range ids {
		if conn, ok := h.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.Send(frame); err != nil {
			failed++
			Log.Debugw("broadcast delivery failed", "conn", conn.ID(), "map", mapID, "error", err)
			continue
		}
		delivered++
	}
	return delivered, failed
}

// Conns 当前所有传输连接
func (h *Hub) Conns() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Stats 房间数、房间成员总数、连接数
func (h *Hub) Stats() (rooms, members, conns int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.rooms {
		members += len(r.members)
	}
	return len(h.rooms), members, len(h.conns)
}

func without(ids []ConnID, excluding []ConnID) []ConnID {
	if len(excluding) == 0 {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		skip := false
		for _, ex := range excluding {
			if id == ex {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, id)
		}
	}
	return out
}
