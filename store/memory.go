package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/crypto/bcrypt"
)

// 新角色初始属性
const (
	initialLevel = 1
	initialHP    = 100
	initialMP    = 50
)

// Memory 进程内实现，全部状态由一把读写锁保护
type Memory struct {
	mu deadlock.RWMutex

	accounts   map[string]Account
	characters map[int32]*Character
	byAccount  map[string]int32
	byName     map[string]int32
	nextCharID int32

	players map[int32]PlayerRecord
	items   map[int32]Item

	spawns      map[int32]*Spawn
	nextSpawnID int32

	bcryptCost int
	now        func() time.Time
}

// MemoryOption 构造选项
type MemoryOption func(*Memory)

// WithBcryptCost 调整密码哈希强度（测试中可用 bcrypt.MinCost 加速）
func WithBcryptCost(cost int) MemoryOption {
	return func(m *Memory) { m.bcryptCost = cost }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		accounts:   make(map[string]Account),
		characters: make(map[int32]*Character),
		byAccount:  make(map[string]int32),
		byName:     make(map[string]int32),
		players:    make(map[int32]PlayerRecord),
		items:      make(map[int32]Item),
		spawns:     make(map[int32]*Spawn),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*Memory)(nil)

// AddAccount 注册账号（已存在则覆盖）
func (m *Memory) AddAccount(email, password string, banned bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", email, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[email] = Account{Email: email, PasswordHash: hash, Banned: banned}
	return nil
}

func (m *Memory) FindAccount(ctx context.Context, email, password string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	m.mu.RLock()
	acc, ok := m.accounts[email]
	m.mu.RUnlock()
	if !ok {
		return Account{}, fmt.Errorf("account %q: %w", email, ErrNotFound)
	}
	// 比对哈希较慢，放在锁外
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return Account{}, fmt.Errorf("account %q: %w", email, ErrNotFound)
	}
	return acc, nil
}

func (m *Memory) CharacterByAccount(ctx context.Context, accountName string) (Character, error) {
	if err := ctx.Err(); err != nil {
		return Character{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byAccount[accountName]
	if !ok {
		return Character{}, fmt.Errorf("character of %q: %w", accountName, ErrNotFound)
	}
	return *m.characters[id], nil
}

func (m *Memory) CreateCharacter(ctx context.Context, name, accountName string) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAccount[accountName]; ok {
		return 0, ErrDuplicateAccount
	}
	if _, ok := m.byName[name]; ok {
		return 0, ErrDuplicateName
	}
	m.nextCharID++
	now := m.now()
	c := &Character{
		ID:          m.nextCharID,
		AccountName: accountName,
		Name:        name,
		Level:       initialLevel,
		CurHP:       initialHP,
		MaxHP:       initialHP,
		CurMP:       initialMP,
		MaxMP:       initialMP,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.characters[c.ID] = c
	m.byAccount[accountName] = c.ID
	m.byName[name] = c.ID
	return c.ID, nil
}

func (m *Memory) UpsertPlayer(ctx context.Context, rec PlayerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.UpdatedAt = m.now()
	m.players[rec.PlayerID] = rec
	return nil
}

func (m *Memory) Player(ctx context.Context, playerID int32) (PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return PlayerRecord{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.players[playerID]
	if !ok {
		return PlayerRecord{}, fmt.Errorf("player %d: %w", playerID, ErrNotFound)
	}
	return rec, nil
}

// PutItem 写入道具配置
func (m *Memory) PutItem(item Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

// Items 所有道具配置，按 id 排序
func (m *Memory) Items() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Item(ctx context.Context, itemID int32) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return it, nil
}

// AddSpawn 放置一个刷新点，忽略传入的 ID 并返回新分配的 id
func (m *Memory) AddSpawn(s Spawn) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSpawnID++
	s.ID = m.nextSpawnID
	if s.Status == "" {
		s.Status = SpawnActive
	}
	s.UpdatedAt = m.now()
	m.spawns[s.ID] = &s
	return s.ID
}

// ClearSpawns 删除地图上的全部刷新点
func (m *Memory) ClearSpawns(mapID int32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.spawns {
		if s.MapID == mapID {
			delete(m.spawns, id)
			n++
		}
	}
	return n
}

// Spawn 单个刷新点的副本
func (m *Memory) Spawn(ctx context.Context, spawnID int32) (Spawn, error) {
	if err := ctx.Err(); err != nil {
		return Spawn{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.spawns[spawnID]
	if !ok {
		return Spawn{}, fmt.Errorf("spawn %d: %w", spawnID, ErrNotFound)
	}
	return copySpawn(s), nil
}

func (m *Memory) ActiveSpawns(ctx context.Context, mapID int32) ([]Spawn, error) {
	return m.selectSpawns(ctx, func(s *Spawn) bool {
		return s.MapID == mapID && s.Status == SpawnActive
	})
}

func (m *Memory) DueSpawns(ctx context.Context, now time.Time) ([]Spawn, error) {
	return m.selectSpawns(ctx, func(s *Spawn) bool {
		return s.Status == SpawnCollected && s.NextRespawn != nil && !s.NextRespawn.After(now)
	})
}

func (m *Memory) selectSpawns(ctx context.Context, keep func(*Spawn) bool) ([]Spawn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Spawn
	for _, s := range m.spawns {
		if keep(s) {
			out = append(out, copySpawn(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CollectSpawn(ctx context.Context, spawnID int32, now time.Time) (Spawn, error) {
	if err := ctx.Err(); err != nil {
		return Spawn{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.spawns[spawnID]
	if !ok || s.Status != SpawnActive {
		return Spawn{}, fmt.Errorf("active spawn %d: %w", spawnID, ErrNotFound)
	}
	it, ok := m.items[s.ItemID]
	if !ok {
		return Spawn{}, fmt.Errorf("item %d of spawn %d: %w", s.ItemID, spawnID, ErrNotFound)
	}
	next := now.Add(it.RespawnTime)
	s.Status = SpawnCollected
	s.NextRespawn = &next
	s.UpdatedAt = m.now()
	return copySpawn(s), nil
}

func (m *Memory) RespawnSpawn(ctx context.Context, spawnID int32) (Spawn, error) {
	if err := ctx.Err(); err != nil {
		return Spawn{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.spawns[spawnID]
	if !ok || s.Status != SpawnCollected {
		return Spawn{}, fmt.Errorf("collected spawn %d: %w", spawnID, ErrNotFound)
	}
	s.Status = SpawnActive
	s.NextRespawn = nil
	s.UpdatedAt = m.now()
	return copySpawn(s), nil
}

func copySpawn(s *Spawn) Spawn {
	out := *s
	if s.NextRespawn != nil {
		t := *s.NextRespawn
		out.NextRespawn = &t
	}
	return out
}
