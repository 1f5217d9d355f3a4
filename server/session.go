package server

import (
	"github.com/sasha-s/go-deadlock"

	"arenasync/protocol"
)

// Session 单个连接的游戏状态（服务端权威）。PlayerID 为 0 表示尚未上线，不参与广播
type Session struct {
	ConnID      ConnID
	PlayerID    int32
	MapID       int32
	Job         string
	Position    protocol.Vec3
	Velocity    protocol.Vec3
	Rotation    protocol.Quat
	ScaleFactor int32
}

// Bound 是否已通过 PlayerOnline 绑定玩家身份
func (s Session) Bound() bool { return s.PlayerID != 0 }

// State 广播给其他玩家的完整状态
func (s Session) State() protocol.PlayerState {
	return protocol.PlayerState{
		PlayerID:    s.PlayerID,
		MapID:       s.MapID,
		Job:         s.Job,
		Position:    s.Position,
		Velocity:    s.Velocity,
		Rotation:    s.Rotation,
		ScaleFactor: s.ScaleFactor,
	}
}

// Transform 移动广播
func (s Session) Transform() protocol.Transform {
	return protocol.Transform{
		PlayerID:    s.PlayerID,
		Position:    s.Position,
		Velocity:    s.Velocity,
		Rotation:    s.Rotation,
		ScaleFactor: s.ScaleFactor,
	}
}

// SessionStore 以连接为键的会话表。所有读取都返回副本，写入在锁内一次完成
type SessionStore struct {
	mu       deadlock.RWMutex
	sessions map[ConnID]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[ConnID]*Session)}
}

// Open 连接建立时创建空会话；已存在则不变
func (s *SessionStore) Open(id ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &Session{ConnID: id}
	}
}

// Bind 整体替换会话内容（不存在则创建），返回替换前的会话
func (s *SessionStore) Bind(id ConnID, state Session) (prev Session, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.ConnID = id
	if cur, ok := s.sessions[id]; ok {
		prev, existed = *cur, true
	}
	s.sessions[id] = &state
	return prev, existed
}

// Update 在锁内修改会话并返回修改后的副本；会话不存在时返回 false
func (s *SessionStore) Update(id ConnID, fn func(*Session)) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	fn(cur)
	cur.ConnID = id
	return *cur, true
}

func (s *SessionStore) Get(id ConnID) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *cur, true
}

// Clear 删除会话。幂等：只有真正执行删除的那次调用返回 true
func (s *SessionStore) Clear(id ConnID) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(s.sessions, id)
	return *cur, true
}

// Snapshot 按给定顺序返回存在的会话副本
func (s *SessionStore) Snapshot(ids []ConnID) []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		if cur, ok := s.sessions[id]; ok {
			out = append(out, *cur)
		}
	}
	return out
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
