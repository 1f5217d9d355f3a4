package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config 启动时加载的静态配置：地图边界、刷新周期、道具表、初始账号
type Config struct {
	Addr    string `yaml:"addr" json:"addr"`
	LogFile string `yaml:"log_file" json:"logFile"`

	// DefaultMap 未在 Maps 中列出的地图使用该边界
	DefaultMap MapConfig   `yaml:"default_map" json:"defaultMap"`
	Maps       []MapConfig `yaml:"maps" json:"maps"`

	Spawn SpawnConfig  `yaml:"spawn" json:"spawn"`
	Items []ItemConfig `yaml:"items" json:"items"`

	// DefaultScale 客户端上线未携带缩放值时使用
	DefaultScale int32 `yaml:"default_scale" json:"defaultScale"`

	Accounts []AccountConfig `yaml:"accounts" json:"-"`
}

// MapConfig 地图移动范围：x ∈ [0, Width]，z ∈ [0, Depth]
type MapConfig struct {
	ID    int32   `yaml:"id" json:"id"`
	Width float32 `yaml:"width" json:"width"`
	Depth float32 `yaml:"depth" json:"depth"`
	// Seed 启动时是否按道具表重新生成该地图的刷新点
	Seed bool `yaml:"seed" json:"seed"`
}

// SpawnConfig 道具刷新调度
type SpawnConfig struct {
	Interval    time.Duration `yaml:"interval" json:"interval"`
	MapID       int32         `yaml:"map_id" json:"mapId"` // 启动时广播初始道具的地图
	MinDistance float64       `yaml:"min_distance" json:"minDistance"`
}

// ItemConfig 道具表条目，Name 即线上的 itemType
type ItemConfig struct {
	ID          int32         `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Scale       int32         `yaml:"scale" json:"scale"`
	RespawnTime time.Duration `yaml:"respawn_time" json:"respawnTime"`
	SpawnCount  int           `yaml:"spawn_count" json:"spawnCount"`
	Density     float64       `yaml:"density" json:"density"`
}

// AccountConfig 启动时写入存储的账号
type AccountConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Banned   bool   `yaml:"banned"`
}

// DefaultConfig 默认配置：1 号地图 1000x1000，5 秒检查一次刷新
func DefaultConfig() Config {
	return Config{
		Addr:       ":8080",
		LogFile:    "app.log",
		DefaultMap: MapConfig{Width: 1000, Depth: 1000},
		Maps: []MapConfig{
			{ID: 1, Width: 1000, Depth: 1000, Seed: true},
		},
		Spawn: SpawnConfig{
			Interval:    5 * time.Second,
			MapID:       1,
			MinDistance: 1,
		},
		Items: []ItemConfig{
			{ID: 1, Name: "Gem01", Scale: 100, RespawnTime: 30 * time.Second, SpawnCount: 40, Density: 0.0001},
			{ID: 2, Name: "Gem02", Scale: 200, RespawnTime: 45 * time.Second, SpawnCount: 30, Density: 0.0001},
			{ID: 3, Name: "Potion01", Scale: 150, RespawnTime: 60 * time.Second, SpawnCount: 20, Density: 0.0001},
			{ID: 4, Name: "Potion02", Scale: 250, RespawnTime: 90 * time.Second, SpawnCount: 10, Density: 0.0001},
			{ID: 5, Name: "Star01", Scale: 300, RespawnTime: 120 * time.Second, SpawnCount: 5, Density: 0.0001},
			{ID: 6, Name: "Star02", Scale: 400, RespawnTime: 180 * time.Second, SpawnCount: 3, Density: 0.0001},
		},
		DefaultScale: 1000,
	}
}

// LoadConfig 以默认配置为底，叠加 YAML 文件内容；path 为空时直接返回默认配置
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv 用 ARENA_* 环境变量覆盖配置（.env 由 main 通过 godotenv 加载）
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("ARENA_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("ARENA_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := getenv("ARENA_SPAWN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ARENA_SPAWN_INTERVAL: %w", err)
		}
		c.Spawn.Interval = d
	}
	if v := getenv("ARENA_SPAWN_MAP"); v != "" {
		id, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("ARENA_SPAWN_MAP: %w", err)
		}
		c.Spawn.MapID = int32(id)
	}
	return c.Validate()
}

// Validate 检查配置一致性
func (c Config) Validate() error {
	var err error
	if c.Spawn.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("spawn.interval must be positive, got %s", c.Spawn.Interval))
	}
	if c.DefaultMap.Width <= 0 || c.DefaultMap.Depth <= 0 {
		err = multierr.Append(err, errors.New("default_map bounds must be positive"))
	}
	seenMaps := map[int32]bool{}
	for _, m := range c.Maps {
		if m.ID <= 0 {
			err = multierr.Append(err, fmt.Errorf("map id must be positive, got %d", m.ID))
		}
		if seenMaps[m.ID] {
			err = multierr.Append(err, fmt.Errorf("duplicate map id %d", m.ID))
		}
		seenMaps[m.ID] = true
		if m.Width <= 0 || m.Depth <= 0 {
			err = multierr.Append(err, fmt.Errorf("map %d bounds must be positive", m.ID))
		}
	}
	seenIDs := map[int32]bool{}
	seenNames := map[string]bool{}
	for _, it := range c.Items {
		if it.Name == "" {
			err = multierr.Append(err, fmt.Errorf("item %d has no name", it.ID))
		}
		if seenIDs[it.ID] {
			err = multierr.Append(err, fmt.Errorf("duplicate item id %d", it.ID))
		}
		if seenNames[it.Name] {
			err = multierr.Append(err, fmt.Errorf("duplicate item name %q", it.Name))
		}
		seenIDs[it.ID] = true
		seenNames[it.Name] = true
		if it.RespawnTime < 0 {
			err = multierr.Append(err, fmt.Errorf("item %s respawn_time is negative", it.Name))
		}
	}
	return err
}

// MapBounds 查找地图边界，未配置的地图使用 DefaultMap
func (c Config) MapBounds(mapID int32) MapConfig {
	for _, m := range c.Maps {
		if m.ID == mapID {
			return m
		}
	}
	b := c.DefaultMap
	b.ID = mapID
	return b
}

// ScaleTable 道具类型 → 缩放增量
func (c Config) ScaleTable() map[string]int32 {
	t := make(map[string]int32, len(c.Items))
	for _, it := range c.Items {
		t[it.Name] = it.Scale
	}
	return t
}
