package server

import (
	"context"
	"errors"
	"fmt"
	"math"

	"arenasync/protocol"
	"arenasync/store"
)

const msgMissingOnlineFields = "player_online 消息缺少必要字段"

// handleLogin 校验账号密码；成功时先推送角色信息，再回复带封禁标记的登录结果
func (s *Server) handleLogin(ctx context.Context, id ConnID, payload []byte) error {
	req, err := protocol.DecodeLoginRequest(payload)
	if err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return invalid(msgMissingFields)
	}

	acc, err := s.store.FindAccount(ctx, req.Username, req.Password)
	if errors.Is(err, store.ErrNotFound) {
		return reject(msgBadCredential, err)
	}
	if err != nil {
		return fmt.Errorf("find account %s: %w", req.Username, err)
	}

	info, err := s.chars.InfoFrame(ctx, req.Username)
	if err != nil {
		return err
	}
	s.sendTo(id, info)
	s.sendTo(id, protocol.MustFrame(protocol.MsgPlayerLogin, protocol.LoginResult{Banned: acc.Banned}.Encode()))
	Log.Infow("login ok", "conn", id, "account", req.Username, "banned", acc.Banned)
	return nil
}

// handlePlayerOnline 绑定玩家身份并进入地图：
// 入房与单播花名册、现存道具在 Hub 锁内一次完成，再向房间其他人广播自己上线
func (s *Server) handlePlayerOnline(ctx context.Context, id ConnID, payload []byte) error {
	req, err := protocol.DecodeOnlineRequest(payload)
	if err != nil {
		return err
	}
	if req.PlayerID <= 0 || req.MapID <= 0 || req.Job == "" {
		return invalid(msgMissingOnlineFields)
	}
	if req.ScaleFactor <= 0 {
		req.ScaleFactor = s.cfg.DefaultScale
	}
	if req.Rotation == (protocol.Quat{}) {
		req.Rotation = protocol.IdentityQuat
	}

	if err := s.store.UpsertPlayer(ctx, store.PlayerRecord{
		PlayerID:    req.PlayerID,
		MapID:       req.MapID,
		Job:         req.Job,
		Position:    toStorePos(req.Position),
		ScaleFactor: req.ScaleFactor,
	}); err != nil {
		return fmt.Errorf("upsert player %d: %w", req.PlayerID, err)
	}

	state := Session{
		PlayerID:    req.PlayerID,
		MapID:       req.MapID,
		Job:         req.Job,
		Position:    req.Position,
		Rotation:    req.Rotation,
		ScaleFactor: req.ScaleFactor,
	}
	var (
		players  int
		items    int
		primeErr error
	)
	prev, existed, failed := s.hub.EnterWith(id, state, func(roster []Session) [][]byte {
		states := make([]protocol.PlayerState, 0, len(roster))
		for _, other := range roster {
			states = append(states, other.State())
		}
		list, err := protocol.EncodePlayerList(states)
		if err != nil {
			primeErr = err
			return nil
		}
		frames, err := s.spawns.ActiveFrames(ctx, req.MapID)
		if err != nil {
			// 道具快照失败不影响上线
			Log.Warnw("active items snapshot failed", "conn", id, "map", req.MapID, "error", err)
		}
		players, items = len(states), len(frames)
		return append([][]byte{protocol.MustFrame(protocol.MsgPlayerList, list)}, frames...)
	})
	s.metrics.AddFailed(failed)
	if existed && prev.Bound() && (prev.MapID != req.MapID || prev.PlayerID != req.PlayerID) {
		// 换图或换身份：旧身份在旧房间视为下线
		s.broadcast(prev.MapID, protocol.MustFrame(protocol.MsgOffline, protocol.EncodeOffline(prev.PlayerID)), id)
	}
	if primeErr != nil {
		return primeErr
	}

	online, err := state.State().Encode()
	if err != nil {
		return err
	}
	s.broadcast(req.MapID, protocol.MustFrame(protocol.MsgPlayerOnline, online), id)
	Log.Infow("player online", "conn", id, "player", req.PlayerID, "map", req.MapID, "job", req.Job,
		"roster", players, "items", items)
	return nil
}

// handlePlayerMove 只做地图包围盒检查：x ∈ [0, Width]，z ∈ [0, Depth]
func (s *Server) handlePlayerMove(ctx context.Context, id ConnID, payload []byte) error {
	req, err := protocol.DecodeMoveRequest(payload)
	if err != nil {
		return err
	}
	sess, ok := s.sessions.Get(id)
	if !ok || !sess.Bound() {
		return reject(msgNotOnline, nil)
	}
	if req.PlayerID != sess.PlayerID || req.MapID != sess.MapID {
		return invalid(fmt.Sprintf("移动请求与当前会话不符: player=%d map=%d", req.PlayerID, req.MapID))
	}

	b := s.bounds.Get(sess.MapID)
	if !inBounds(req.Position, b) {
		s.metrics.IncMovesRejected()
		return reject(msgOutOfBounds, fmt.Errorf("%w: (%.2f, %.2f) outside %gx%g", ErrValidation,
			req.Position.X, req.Position.Z, b.Width, b.Depth))
	}

	updated, ok := s.sessions.Update(id, func(cur *Session) {
		cur.Position = req.Position
		cur.Velocity = req.Velocity
		cur.Rotation = req.Rotation
	})
	if !ok {
		return reject(msgNotOnline, nil)
	}
	s.broadcast(updated.MapID, protocol.MustFrame(protocol.MsgPlayerMove, updated.Transform().Encode()), id)
	return nil
}

func inBounds(p protocol.Vec3, b MapConfig) bool {
	if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
		return false
	}
	return p.X >= 0 && p.X <= b.Width && p.Z >= 0 && p.Z <= b.Depth
}

func finite(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// handleItemCollected 拾取：道具类型不在表中时静默忽略（不论是否已上线）；
// 声明类型必须与刷新点实际道具一致，缩放增量以实际道具为准。
// 刷新点以条件更新转为 collected，并发拾取只有一个成功。成功后向整个房间（含自己）广播新的缩放与拾取通知
func (s *Server) handleItemCollected(ctx context.Context, id ConnID, payload []byte) error {
	req, err := protocol.DecodeItemCollected(payload)
	if err != nil {
		return err
	}
	if _, known := s.scales[req.ItemType]; !known {
		Log.Debugw("unknown item type ignored", "conn", id, "itemType", req.ItemType, "spawn", req.SpawnID)
		return nil
	}
	sess, ok := s.sessions.Get(id)
	if !ok || !sess.Bound() {
		return reject(msgNotOnline, nil)
	}

	spawn, item, err := s.spawns.Collect(ctx, req.SpawnID, sess.MapID, req.ItemType)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return reject(msgItemGone, err)
	case errors.Is(err, ErrItemMismatch):
		return reject(msgItemMismatch, err)
	case err != nil:
		return fmt.Errorf("collect spawn %d: %w", req.SpawnID, err)
	}

	updated, ok := s.sessions.Update(id, func(cur *Session) { cur.ScaleFactor += item.ScaleValue })
	if !ok {
		return reject(msgNotOnline, nil)
	}
	s.metrics.IncItemsCollected()

	notice, err := protocol.ItemCollected{ItemType: item.Name, SpawnID: spawn.ID}.Encode()
	if err != nil {
		return err
	}
	s.broadcast(updated.MapID, protocol.MustFrame(protocol.MsgPlayerMove, updated.Transform().Encode()))
	s.broadcast(updated.MapID, protocol.MustFrame(protocol.MsgItemCollected, notice))
	Log.Infow("item collected", "conn", id, "player", updated.PlayerID, "spawn", spawn.ID,
		"itemType", item.Name, "scale", updated.ScaleFactor)
	return nil
}

// handleOffline 客户端主动下线，连接保持
func (s *Server) handleOffline(ctx context.Context, id ConnID, _ []byte) error {
	s.release(ctx, id, "offline")
	return nil
}

// handlePing 原样回显负载
func (s *Server) handlePing(_ context.Context, id ConnID, payload []byte) error {
	s.sendTo(id, protocol.MustFrame(protocol.MsgPong, payload))
	return nil
}

// release 回收会话与分组；Offline 与断线可能同时触发，只有真正回收的一方广播下线
func (s *Server) release(ctx context.Context, id ConnID, reason string) {
	sess, ok := s.hub.Release(id)
	if !ok || !sess.Bound() {
		return
	}
	s.broadcast(sess.MapID, protocol.MustFrame(protocol.MsgOffline, protocol.EncodeOffline(sess.PlayerID)), id)

	if err := s.store.UpsertPlayer(ctx, store.PlayerRecord{
		PlayerID:    sess.PlayerID,
		MapID:       sess.MapID,
		Job:         sess.Job,
		Position:    toStorePos(sess.Position),
		ScaleFactor: sess.ScaleFactor,
	}); err != nil {
		Log.Warnw("save last state failed", "conn", id, "player", sess.PlayerID, "error", err)
	}
	Log.Infow("player offline", "conn", id, "player", sess.PlayerID, "map", sess.MapID, "reason", reason)
}

func toStorePos(v protocol.Vec3) store.Position {
	return store.Position{X: v.X, Y: v.Y, Z: v.Z}
}

func fromStorePos(p store.Position) protocol.Vec3 {
	return protocol.Vec3{X: p.X, Y: p.Y, Z: p.Z}
}
