package store

import (
	"math"
	"math/rand"
)

// spawnHeight 道具固定离地高度
const spawnHeight = 0.5

// maxPlacementAttempts 单个实例寻找合法位置的最大尝试次数
const maxPlacementAttempts = 50

// SeedOptions 地图道具分布参数
type SeedOptions struct {
	Width       float64
	Depth       float64
	MinDistance float64 // 道具之间的最小水平距离
	Rand        *rand.Rand
}

// SeedSpawns 清空地图上已有刷新点，并按道具配置重新生成：
// 每种道具生成 min(SpawnCount, floor(面积*Density)) 个实例，位置均匀随机且彼此保持 MinDistance。
// 找不到合法位置的实例直接跳过。返回生成数量
func (m *Memory) SeedSpawns(mapID int32, opts SeedOptions) int {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	m.ClearSpawns(mapID)

	area := opts.Width * opts.Depth
	var placed []Position
	for _, it := range m.Items() {
		count := it.SpawnCount
		if byDensity := int(math.Floor(area * it.Density)); byDensity < count {
			count = byDensity
		}
		for i := 0; i < count; i++ {
			pos, ok := pickPosition(opts, placed)
			if !ok {
				continue
			}
			m.AddSpawn(Spawn{ItemID: it.ID, MapID: mapID, Position: pos, Status: SpawnActive})
			placed = append(placed, pos)
		}
	}
	return len(placed)
}

func pickPosition(opts SeedOptions, placed []Position) (Position, bool) {
	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		// 取值范围 [1, 边长]，避开地图边缘
		x := 1 + opts.Rand.Float64()*math.Max(opts.Width-1, 0)
		z := 1 + opts.Rand.Float64()*math.Max(opts.Depth-1, 0)
		if tooClose(x, z, placed, opts.MinDistance) {
			continue
		}
		return Position{X: float32(x), Y: spawnHeight, Z: float32(z)}, true
	}
	return Position{}, false
}

func tooClose(x, z float64, placed []Position, minDistance float64) bool {
	for _, p := range placed {
		if math.Hypot(x-float64(p.X), z-float64(p.Z)) < minDistance {
			return true
		}
	}
	return false
}
