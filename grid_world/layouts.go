package grid_world

import (
	"math/rand"
	"strings"
)

// DefaultMaze is the classic 8x8 mouse maze. There is no border; the grid edge acts as one.
var DefaultMaze = strings.Join([]string{
	"?..x....",
	"....xxx.",
	"xxx.....",
	"....x.xx",
	"..xxxxx.",
	"....x...",
	"....x.x.",
	"......x!",
}, "\n")

// ArenaLayout returns an open floor of the given size surrounded by a wall border.
// Dimensions below 3 are raised to 3 so that at least one open cell exists.
func ArenaLayout(width, height int) string {
	width = max(width, 3)
	height = max(height, 3)

	border := strings.Repeat(string(rune(WALL)), width)
	inner := string(rune(WALL)) + strings.Repeat(string(rune(FLOOR)), width-2) + string(rune(WALL))

	rows := make([]string, 0, height)
	rows = append(rows, border)
	for i := 0; i < height-2; i++ {
		rows = append(rows, inner)
	}
	rows = append(rows, border)
	return strings.Join(rows, "\n")
}

// MazeLayout generates a perfect maze of rows x cols rooms using Wilson's algorithm:
// loop-erased random walks from unvisited rooms until they hit the visited tree. Rooms sit on
// odd coordinates of a (2*rows+1) x (2*cols+1) wall grid, and carving a passage opens the wall
// between two rooms. The start is the top-left room and the goal the bottom-right one.
func MazeLayout(rows, cols int, rng *rand.Rand) string {
	rows = max(rows, 1)
	cols = max(cols, 1)

	height, width := 2*rows+1, 2*cols+1
	grid := make([][]byte, height)
	for r := range grid {
		grid[r] = []byte(strings.Repeat(string(rune(WALL)), width))
	}

	inRooms := func(p Position) bool {
		return p.Row >= 0 && p.Row < rows && p.Col >= 0 && p.Col < cols
	}
	open := func(p Position) {
		grid[2*p.Row+1][2*p.Col+1] = FLOOR
	}

	visited := map[Position]bool{}
	first := Position{Row: rng.Intn(rows), Col: rng.Intn(cols)}
	visited[first] = true
	open(first)

	for len(visited) < rows*cols {
		unvisited := []Position{}
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if p := (Position{Row: r, Col: c}); !visited[p] {
					unvisited = append(unvisited, p)
				}
			}
		}
		start := unvisited[rng.Intn(len(unvisited))]

		// Overwriting the exit of a room on revisits erases loops from the walk.
		exits := map[Position]Action{}
		for cur := start; !visited[cur]; {
			moves := []Action{}
			for _, a := range Actions {
				if inRooms(cur.Add(a)) {
					moves = append(moves, a)
				}
			}
			a := moves[rng.Intn(len(moves))]
			exits[cur] = a
			cur = cur.Add(a)
		}

		for cur := start; !visited[cur]; {
			a := exits[cur]
			next := cur.Add(a)
			dr, dc := a.Delta()
			open(cur)
			grid[2*cur.Row+1+dr][2*cur.Col+1+dc] = FLOOR
			visited[cur] = true
			cur = next
		}
	}

	grid[1][1] = START
	grid[height-2][width-2] = GOAL
	if height == 3 && width == 3 {
		// A single room cannot hold both markers; put the goal in the wall next to it.
		grid[1][1] = START
		grid[1][2] = GOAL
	}

	lines := make([]string, height)
	for r := range grid {
		lines[r] = string(grid[r])
	}
	return strings.Join(lines, "\n")
}
