package server

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"arenasync/store"
)

func TestBootstrap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Maps = []MapConfig{
		{ID: 1, Width: 1000, Depth: 1000, Seed: true},
		{ID: 2, Width: 1000, Depth: 1000},
	}
	cfg.Accounts = []AccountConfig{{Email: "a@b.c", Password: "pw", Banned: true}}

	mem := store.NewMemory(store.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, Bootstrap(mem, cfg, rand.New(rand.NewSource(1))))
	ctx := context.Background()

	acc, err := mem.FindAccount(ctx, "a@b.c", "pw")
	require.NoError(t, err)
	assert.True(t, acc.Banned)

	require.Len(t, mem.Items(), len(cfg.Items))
	gem, err := mem.Item(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Gem01", gem.Name)
	assert.EqualValues(t, 100, gem.ScaleValue)

	// 面积 1e6 * 密度 1e-4 = 100，均取 SpawnCount：40+30+20+10+5+3
	active, err := mem.ActiveSpawns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 108)
	for _, sp := range active {
		assert.GreaterOrEqual(t, sp.Position.X, float32(1))
		assert.LessOrEqual(t, sp.Position.X, float32(1000))
		assert.EqualValues(t, 0.5, sp.Position.Y)
	}

	unseeded, err := mem.ActiveSpawns(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, unseeded)
}
