package server

import (
	"math/rand"

	"go.uber.org/multierr"

	"arenasync/store"
)

// Bootstrap 把配置中的账号、道具表写入内存存储，并为标记了 seed 的地图生成刷新点。
// rng 为 nil 时使用随机种子
func Bootstrap(m *store.Memory, cfg Config, rng *rand.Rand) error {
	var err error
	for _, a := range cfg.Accounts {
		err = multierr.Append(err, m.AddAccount(a.Email, a.Password, a.Banned))
	}
	for _, it := range cfg.Items {
		m.PutItem(store.Item{
			ID:          it.ID,
			Name:        it.Name,
			RespawnTime: it.RespawnTime,
			ScaleValue:  it.Scale,
			SpawnCount:  it.SpawnCount,
			Density:     it.Density,
		})
	}
	for _, mc := range cfg.Maps {
		if !mc.Seed {
			continue
		}
		n := m.SeedSpawns(mc.ID, store.SeedOptions{
			Width:       float64(mc.Width),
			Depth:       float64(mc.Depth),
			MinDistance: cfg.Spawn.MinDistance,
			Rand:        rng,
		})
		Log.Infow("map seeded", "map", mc.ID, "spawns", n)
	}
	return err
}
