package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arenasync/protocol"
	"arenasync/store"
)

const defaultSpawnInterval = 5 * time.Second

// SpawnScheduler 道具刷新调度：周期性把到期的 collected 刷新点恢复为 active 并广播
type SpawnScheduler struct {
	store    store.Store
	hub      *Hub
	metrics  *ServerMetrics
	interval time.Duration
	mapID    int32
	now      func() time.Time
}

func NewSpawnScheduler(st store.Store, hub *Hub, metrics *ServerMetrics, cfg SpawnConfig, now func() time.Time) *SpawnScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSpawnInterval
	}
	if now == nil {
		now = time.Now
	}
	return &SpawnScheduler{
		store:    st,
		hub:      hub,
		metrics:  metrics,
		interval: cfg.Interval,
		mapID:    cfg.MapID,
		now:      now,
	}
}

// Run 启动时先广播一次初始道具，然后每个周期执行一次 Tick，直到 ctx 结束
func (s *SpawnScheduler) Run(ctx context.Context) error {
	frames, err := s.ActiveFrames(ctx, s.mapID)
	if err != nil {
		Log.Errorw("initial items broadcast failed", "map", s.mapID, "error", err)
	}
	for _, f := range frames {
		s.broadcast(s.mapID, f)
	}
	Log.Infow("spawn scheduler started", "map", s.mapID, "items", len(frames), "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			Log.Infow("spawn scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			s.Tick(ctx)
			s.metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

// Tick 处理一轮到期刷新，返回实际恢复的数量。
// 单个刷新点失败只记录日志，不影响同轮其余刷新点
func (s *SpawnScheduler) Tick(ctx context.Context) int {
	due, err := s.store.DueSpawns(ctx, s.now())
	if err != nil {
		Log.Errorw("load due spawns failed", "error", err)
		return 0
	}

	respawned := 0
	for _, sp := range due {
		updated, err := s.store.RespawnSpawn(ctx, sp.ID)
		if errors.Is(err, store.ErrNotFound) {
			// 已被其他调度者恢复
			continue
		}
		if err != nil {
			Log.Errorw("respawn failed", "spawn", sp.ID, "error", err)
			continue
		}
		frame, err := s.itemFrame(ctx, updated)
		if err != nil {
			Log.Errorw("encode item spawned failed", "spawn", sp.ID, "error", err)
			continue
		}
		s.broadcast(updated.MapID, frame)
		s.metrics.IncItemsRespawned()
		respawned++
	}
	if respawned > 0 {
		Log.Debugw("items respawned", "count", respawned, "due", len(due))
	}
	return respawned
}

// ActiveFrames 地图上所有 active 刷新点的 ItemSpawned 帧
func (s *SpawnScheduler) ActiveFrames(ctx context.Context, mapID int32) ([][]byte, error) {
	spawns, err := s.store.ActiveSpawns(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("active spawns of map %d: %w", mapID, err)
	}
	frames := make([][]byte, 0, len(spawns))
	for _, sp := range spawns {
		f, err := s.itemFrame(ctx, sp)
		if err != nil {
			Log.Warnw("skip spawn", "spawn", sp.ID, "error", err)
			continue
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// ErrItemMismatch 客户端声明的道具类型与刷新点实际道具不一致
var ErrItemMismatch = errors.New("item type mismatch")

// Collect 拾取 mapID 上的刷新点，返回转为 collected 后的刷新点及其道具配置。
// 不存在、不在该地图或已被拾取返回 store.ErrNotFound；itemType 与实际道具不符返回 ErrItemMismatch，
// 两种情况下刷新点状态都不变
func (s *SpawnScheduler) Collect(ctx context.Context, spawnID, mapID int32, itemType string) (store.Spawn, store.Item, error) {
	sp, err := s.store.Spawn(ctx, spawnID)
	if err != nil {
		return store.Spawn{}, store.Item{}, err
	}
	if sp.MapID != mapID {
		return store.Spawn{}, store.Item{}, fmt.Errorf("spawn %d on map %d: %w", spawnID, sp.MapID, store.ErrNotFound)
	}
	item, err := s.store.Item(ctx, sp.ItemID)
	if err != nil {
		return store.Spawn{}, store.Item{}, fmt.Errorf("item %d of spawn %d: %w", sp.ItemID, spawnID, err)
	}
	if item.Name != itemType {
		return store.Spawn{}, store.Item{}, fmt.Errorf("spawn %d holds %s, claimed %s: %w", spawnID, item.Name, itemType, ErrItemMismatch)
	}
	collected, err := s.store.CollectSpawn(ctx, spawnID, s.now())
	if err != nil {
		return store.Spawn{}, store.Item{}, err
	}
	return collected, item, nil
}

func (s *SpawnScheduler) itemFrame(ctx context.Context, sp store.Spawn) ([]byte, error) {
	item, err := s.store.Item(ctx, sp.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", sp.ItemID, err)
	}
	payload, err := protocol.ItemSpawned{
		SpawnID:  sp.ID,
		ItemType: item.Name,
		Position: fromStorePos(sp.Position),
	}.Encode()
	if err != nil {
		return nil, err
	}
	return protocol.Frame(protocol.MsgItemSpawned, payload)
}

func (s *SpawnScheduler) broadcast(mapID int32, frame []byte) {
	_, failed := s.hub.Broadcast(mapID, frame)
	s.metrics.AddBroadcast(failed)
}
