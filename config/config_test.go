package config

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gridlearn/checkpoint"
	"gridlearn/grid_world"
	"gridlearn/reinforcement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, grid_world.Maze, cfg.Variant)
		assert.Equal(t, 1000, cfg.Episode.MaxMoves)
		assert.Equal(t, reinforcement.Params{Alpha: 1, Gamma: 0.9, Epsilon: 0}, cfg.Training.Params(cfg.Variant))
	})

	t.Run("envelope body overrides arena defaults", func(t *testing.T) {
		path := writeFile(t, "arena.yaml", `
kind: arena
def:
  seed: 17
  world:
    width: 10
    foodCount: 5
    rewards:
      food: 75
  training:
    hyperParams:
      - key: alpha
        val: 0.2
  episode:
    maxMoves: 50
  server:
    tickInterval: 250ms
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, grid_world.Arena, cfg.Variant)
		assert.Equal(t, grid_world.Arena, cfg.World.Variant)
		assert.Equal(t, int64(17), cfg.Seed)
		assert.Equal(t, 10, cfg.World.Width)
		assert.Equal(t, 16, cfg.World.Height, "unset keys keep their defaults")
		assert.Equal(t, 5, cfg.World.FoodCount)
		assert.Equal(t, 75.0, cfg.World.Rewards.Food)
		assert.Equal(t, -250.0, cfg.World.Rewards.Hazard)
		assert.Equal(t, 50, cfg.Episode.MaxMoves)
		assert.Equal(t, 0.5, cfg.Episode.HazardShrink)
		assert.Equal(t, 250*time.Millisecond, cfg.Server.TickInterval)

		params := cfg.Training.Params(cfg.Variant)
		assert.Equal(t, 0.2, params.Alpha)
		assert.Equal(t, 0.95, params.Gamma)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := writeFile(t, "maze.yaml", "kind: maze\ndef:\n  checkpoint:\n    path: a.qtable\n")
		t.Setenv("GRIDLEARN_KIND", "arena")
		t.Setenv("GRIDLEARN_CHECKPOINT_PATH", "b.qtable")
		t.Setenv("GRIDLEARN_REDIS_ADDR", "localhost:6379")
		t.Setenv("GRIDLEARN_SEED", "99")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, grid_world.Arena, cfg.Variant)
		assert.Equal(t, "b.qtable", cfg.Checkpoint.Path)
		assert.Equal(t, "localhost:6379", cfg.Checkpoint.RedisAddr)
		assert.Equal(t, int64(99), cfg.Seed)
	})

	t.Run("bad values are rejected", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.yaml", "kind: arena\ndef:\n  episode:\n    hazardShrink: 2\n"))
		assert.Error(t, err)

		_, err = Load(writeFile(t, "kind.yaml", "kind: dungeon\n"))
		assert.Error(t, err)

		_, err = Load(writeFile(t, "decay.yaml", "kind: arena\ndef:\n  training:\n    hyperParams:\n      - key: epsilonDecay\n        val: 0\n"))
		assert.ErrorContains(t, err, "epsilonDecay")

		_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("the shipped config loads", func(t *testing.T) {
		cfg, err := Load(filepath.Join("..", "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, grid_world.Arena, cfg.Variant)
		assert.Equal(t, reinforcement.Schedule{Decay: 0.99, Minimum: 0.01}, cfg.Training.Schedule(cfg.Variant))
	})
}

func TestWorldFactory(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("arena", func(t *testing.T) {
		cfg := Default(grid_world.Arena)
		factory, err := cfg.WorldFactory()
		require.NoError(t, err)
		world, err := factory(rng)
		require.NoError(t, err)
		assert.Equal(t, 16, world.Rows())
		assert.Equal(t, 24, world.Cols())
	})

	t.Run("built-in and generated mazes", func(t *testing.T) {
		cfg := Default(grid_world.Maze)
		factory, err := cfg.WorldFactory()
		require.NoError(t, err)
		world, err := factory(rng)
		require.NoError(t, err)
		assert.Equal(t, 8, world.Rows())

		cfg.World.Generate = true
		factory, err = cfg.WorldFactory()
		require.NoError(t, err)
		world, err = factory(rng)
		require.NoError(t, err)
		assert.Equal(t, 9, world.Rows())
		_, ok := world.Goal()
		assert.True(t, ok)
	})

	t.Run("malformed layout files fail early", func(t *testing.T) {
		cfg := Default(grid_world.Maze)
		cfg.World.Layout = writeFile(t, "maze.txt", "?..\n..\n..!\n")
		_, err := cfg.WorldFactory()
		var malformed *grid_world.MalformedLayoutError
		assert.ErrorAs(t, err, &malformed)
	})
}

func TestOpenStore(t *testing.T) {
	cfg := Default(grid_world.Arena)
	store, closeFn := cfg.OpenStore()
	defer closeFn()
	assert.IsType(t, &checkpoint.FileStore{}, store)

	cfg.Checkpoint.RedisAddr = "localhost:0"
	store, closeRedis := cfg.OpenStore()
	defer closeRedis()
	assert.IsType(t, &checkpoint.RedisStore{}, store)

	cfg.Checkpoint = CheckpointConfig{}
	store, _ = cfg.OpenStore()
	assert.Nil(t, store)
}
