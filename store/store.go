// Package store 定义游戏持久化协作方的边界（账号、角色、玩家最后状态、道具配置与刷新点），
// 并提供一个进程内实现 Memory。
//
// 刷新点状态只通过 CollectSpawn / RespawnSpawn 两个条件更新改变：
// 只有当前状态仍符合预期时才会转换，并发拾取同一个刷新点时只有一个调用方成功。
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound 记录不存在、凭证不匹配，或刷新点不处于期望状态
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateAccount 账号已拥有角色（每个账号最多一个角色）
	ErrDuplicateAccount = errors.New("store: account already owns a character")
	// ErrDuplicateName 角色名已被占用
	ErrDuplicateName = errors.New("store: character name taken")
)

// Position 世界坐标
type Position struct {
	X, Y, Z float32
}

// Account 登录账号，密码以 bcrypt 哈希保存
type Account struct {
	Email        string
	PasswordHash []byte
	Banned       bool
}

// Character 每个账号至多一个，名称全局唯一
type Character struct {
	ID          int32
	AccountName string
	Name        string
	Level       int32
	CurHP       int32
	MaxHP       int32
	CurMP       int32
	MaxMP       int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlayerRecord 玩家最后已知状态，按 PlayerID 覆盖写入
type PlayerRecord struct {
	PlayerID    int32
	MapID       int32
	Job         string
	Position    Position
	ScaleFactor int32
	UpdatedAt   time.Time
}

// Item 道具配置
type Item struct {
	ID          int32
	Name        string // 线上道具类型，如 Gem01
	RespawnTime time.Duration
	ScaleValue  int32
	SpawnCount  int     // 每张地图最多生成的实例数
	Density     float64 // 每平方单位的实例密度，与 SpawnCount 取小
}

// SpawnStatus 刷新点状态
type SpawnStatus string

const (
	SpawnActive    SpawnStatus = "active"
	SpawnCollected SpawnStatus = "collected"
)

// Spawn 地图上的一个可拾取道具实例
type Spawn struct {
	ID          int32
	ItemID      int32
	MapID       int32
	Position    Position
	Status      SpawnStatus
	NextRespawn *time.Time // 仅 collected 状态有值
	UpdatedAt   time.Time
}

// Store 持久化协作方。所有调用都可能阻塞
type Store interface {
	// FindAccount 按邮箱与明文密码查找账号；不存在或密码错误返回 ErrNotFound
	FindAccount(ctx context.Context, email, password string) (Account, error)

	CharacterByAccount(ctx context.Context, accountName string) (Character, error)
	// CreateCharacter 原子地检查账号角色数与名称唯一性后插入，返回新 id
	CreateCharacter(ctx context.Context, name, accountName string) (int32, error)

	UpsertPlayer(ctx context.Context, rec PlayerRecord) error
	Player(ctx context.Context, playerID int32) (PlayerRecord, error)

	Item(ctx context.Context, itemID int32) (Item, error)

	Spawn(ctx context.Context, spawnID int32) (Spawn, error)
	ActiveSpawns(ctx context.Context, mapID int32) ([]Spawn, error)
	// DueSpawns 返回 collected 且 NextRespawn <= now 的刷新点
	DueSpawns(ctx context.Context, now time.Time) ([]Spawn, error)
	// CollectSpawn 仅当状态为 active 时转为 collected，并设置 NextRespawn = now + 道具刷新时间
	CollectSpawn(ctx context.Context, spawnID int32, now time.Time) (Spawn, error)
	// RespawnSpawn 仅当状态为 collected 时转为 active，并清空 NextRespawn
	RespawnSpawn(ctx context.Context, spawnID int32) (Spawn, error)
}
