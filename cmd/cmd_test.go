package cmd

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gridlearn/grid_world"
	"gridlearn/reinforcement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mazeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "maze.yaml")
	content := fmt.Sprintf(`
kind: maze
def:
  seed: 5
  episode:
    maxMoves: 200
  checkpoint:
    path: %s
`, filepath.Join(dir, "maze.qtable"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := RootCommand()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	cfgPath := mazeConfig(t, dir)
	tablePath := filepath.Join(dir, "maze.qtable")
	dump := filepath.Join(dir, "maze.txt")

	out, err := execute(t, "train", "--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env"),
		"--episodes", "3", "--dump", dump)
	require.NoError(t, err)
	assert.Contains(t, out, "3 episodes")
	assert.FileExists(t, tablePath)
	assert.FileExists(t, dump)

	saved := reinforcement.NewQTable(reinforcement.DefaultParams(grid_world.Maze), rand.New(rand.NewSource(1)))
	require.NoError(t, saved.Load(tablePath))
	assert.Positive(t, saved.Len())

	t.Run("a second run resumes from the checkpoint", func(t *testing.T) {
		_, err := execute(t, "train", "--config", cfgPath, "--episodes", "1", "--no-save")
		require.NoError(t, err)

		again := reinforcement.NewQTable(reinforcement.DefaultParams(grid_world.Maze), rand.New(rand.NewSource(1)))
		require.NoError(t, again.Load(tablePath))
		assert.True(t, saved.Equal(again), "--no-save leaves the checkpoint untouched")
	})

	t.Run("a bad config fails before training", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("kind: racetrack\n"), 0o644))
		_, err := execute(t, "train", "--config", bad, "--episodes", "1")
		assert.Error(t, err)
	})
}
