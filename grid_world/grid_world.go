package grid_world

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Layout symbols. A layout is a rectangular block of these runes, one row per line.
const (
	WALL  = 'x'
	FLOOR = '.'
	START = '?'
	GOAL  = '!'
)

// CellKind is the content of a single grid cell.
type CellKind uint8

const (
	Empty CellKind = iota
	Wall
	Food
	Hazard
	Goal
)

func (k CellKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	case Food:
		return "food"
	case Hazard:
		return "hazard"
	case Goal:
		return "goal"
	}
	return fmt.Sprintf("cell(%d)", uint8(k))
}

// Position is a (row, col) grid coordinate; row 0 is the top line of the layout.
type Position struct {
	Row int `yaml:"row" json:"row"`
	Col int `yaml:"col" json:"col"`
}

// Add returns the position displaced by one unit in the direction of the action.
func (p Position) Add(a Action) Position {
	dr, dc := a.Delta()
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

// Manhattan returns the L1 distance between two positions.
func (p Position) Manhattan(q Position) int {
	return absInt(p.Row-q.Row) + absInt(p.Col-q.Col)
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Action is one of the four unit moves.
type Action uint8

const (
	Up Action = iota
	Down
	Left
	Right
)

// NumActions is the size of the action set.
const NumActions = 4

// Actions is the canonical iteration order of the action set. Greedy ties are broken
// by this order, so it must not change.
var Actions = [NumActions]Action{Up, Down, Left, Right}

// Delta returns the unit displacement of the action as (drow, dcol).
func (a Action) Delta() (int, int) {
	switch a {
	case Up:
		return -1, 0
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	case Right:
		return 0, 1
	}
	return 0, 0
}

func (a Action) String() string {
	switch a {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction converts a name such as "up" (or its initial, "u") into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u":
		return Up, nil
	case "down", "d":
		return Down, nil
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) (err error) {
	*a, err = ParseAction(string(text))
	return
}

// Reading is the categorical result of sensing in one direction.
type Reading uint8

const (
	SeesEmpty Reading = iota
	SeesWall
	SeesFood
	SeesHazard
	SeesGoal
)

var readingNames = [...]string{"empty", "wall", "food", "hazard", "goal"}

func (r Reading) String() string {
	if int(r) < len(readingNames) {
		return readingNames[r]
	}
	return fmt.Sprintf("reading(%d)", uint8(r))
}

// ParseReading is the inverse of Reading.String.
func ParseReading(s string) (Reading, error) {
	for i, name := range readingNames {
		if name == s {
			return Reading(i), nil
		}
	}
	return 0, fmt.Errorf("unknown reading %q", s)
}

// SensorVector holds one Reading per action direction, indexed in Actions order.
type SensorVector [NumActions]Reading

// State is the discretized key of the value table: the head position plus what lies
// in each direction. It is a comparable value type, so it can key a map directly.
// The same physical situation always produces the same State.
type State struct {
	Head    Position
	Sensors SensorVector
}

func (s State) String() string {
	parts := make([]string, NumActions)
	for i, r := range s.Sensors {
		parts[i] = r.String()
	}
	return fmt.Sprintf("%v[%s]", s.Head, strings.Join(parts, " "))
}

// Variant selects between the maze and the arena rule sets.
type Variant uint8

const (
	Maze Variant = iota
	Arena
)

func (v Variant) String() string {
	if v == Arena {
		return "arena"
	}
	return "maze"
}

// ParseVariant converts "maze" or "arena" into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maze":
		return Maze, nil
	case "arena":
		return Arena, nil
	}
	return Maze, fmt.Errorf("unknown variant %q", s)
}

// UnmarshalYAML lets config files name the variant.
func (v *Variant) UnmarshalYAML(node *yaml.Node) (err error) {
	var s string
	if err = node.Decode(&s); err != nil {
		return
	}
	*v, err = ParseVariant(s)
	return
}

// MarshalYAML writes the variant by name.
func (v Variant) MarshalYAML() (interface{}, error) {
	return v.String(), nil
}

// Rewards enumerates every reward constant used by the environment and the episode controller.
type Rewards struct {
	// Step is the reward for an ordinary move.
	Step    float64 `yaml:"step"`
	Blocked float64 `yaml:"blocked"`
	Food    float64 `yaml:"food"`
	Hazard  float64 `yaml:"hazard"`
	Goal    float64 `yaml:"goal"`
	// Closer and Farther shape ordinary moves by whether the head approached the nearest food.
	Closer  float64 `yaml:"closer"`
	Farther float64 `yaml:"farther"`
	// Inter-actor collision overrides, applied by the episode controller.
	LearnerDeath  float64 `yaml:"learnerDeath"`
	OpponentDeath float64 `yaml:"opponentDeath"`
}

// DefaultRewards returns the reward table for a variant.
func DefaultRewards(variant Variant) Rewards {
	if variant == Arena {
		return Rewards{
			Step:          -1,
			Blocked:       -200,
			Food:          50,
			Hazard:        -250,
			LearnerDeath:  -500,
			OpponentDeath: 300,
		}
	}
	return Rewards{
		Step:    -1,
		Blocked: -100,
		Goal:    1000,
	}
}

// Config holds the environment parameters; it is fixed for a GridWorld's lifetime.
type Config struct {
	Variant Variant `yaml:"variant"`
	// Lookahead is the number of cells sensed in each direction.
	Lookahead      int     `yaml:"lookahead"`
	FoodCount      int     `yaml:"foodCount"`
	HazardCount    int     `yaml:"hazardCount"`
	FoodSeparation int     `yaml:"foodSeparation"`
	Rewards        Rewards `yaml:"rewards"`
}

// DefaultConfig returns the environment defaults of a variant.
func DefaultConfig(variant Variant) Config {
	cfg := Config{
		Variant:        variant,
		Lookahead:      3,
		FoodSeparation: 3,
		Rewards:        DefaultRewards(variant),
	}
	if variant == Arena {
		cfg.FoodCount = 30
		cfg.HazardCount = 10
	}
	return cfg
}

// GridWorld owns the cell contents of one map and its active food and hazard sets.
// Walls and the goal are static; food and hazards are placed and consumed at runtime.
type GridWorld struct {
	cfg      Config
	rows     int
	cols     int
	cells    [][]CellKind
	start    Position
	goal     Position
	hasGoal  bool
	food     map[Position]struct{}
	hazards  map[Position]struct{}
	rng      *rand.Rand
	openCell int
}

// FromLayout converts layout text into a GridWorld.
// Blank leading and trailing lines are ignored. The width is that of the first row and every
// row must match it. A MalformedLayoutError is returned for ragged rows, unknown symbols, a layout
// without open cells, or marker violations: the maze variant needs exactly one goal reachable from
// its (at most one) start, and the arena variant accepts neither marker.
// A nil rng is replaced by a time-seeded source.
func FromLayout(text string, cfg Config, rng *rand.Rand) (*GridWorld, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 1
	}

	rows := strings.Split(strings.Trim(strings.ReplaceAll(text, "\r\n", "\n"), "\n"), "\n")
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &MalformedLayoutError{Reason: "empty layout"}
	}

	width := len(rows[0])
	gw := &GridWorld{
		cfg:     cfg,
		rows:    len(rows),
		cols:    width,
		cells:   make([][]CellKind, len(rows)),
		food:    map[Position]struct{}{},
		hazards: map[Position]struct{}{},
		rng:     rng,
	}

	var starts, goals []Position
	for r, line := range rows {
		if len(line) != width {
			return nil, &MalformedLayoutError{
				Line:   r + 1,
				Reason: fmt.Sprintf("width %d, expected %d", len(line), width),
			}
		}
		gw.cells[r] = make([]CellKind, width)
		for c, sym := range []byte(line) {
			pos := Position{Row: r, Col: c}
			switch sym {
			case WALL:
				gw.cells[r][c] = Wall
			case FLOOR:
				gw.cells[r][c] = Empty
			case START:
				gw.cells[r][c] = Empty
				starts = append(starts, pos)
			case GOAL:
				gw.cells[r][c] = Goal
				goals = append(goals, pos)
			default:
				return nil, &MalformedLayoutError{Line: r + 1, Reason: fmt.Sprintf("unknown symbol %q", sym)}
			}
			if gw.cells[r][c] != Wall {
				gw.openCell++
			}
		}
	}

	if gw.openCell == 0 {
		return nil, &MalformedLayoutError{Reason: "no open cells"}
	}

	var ok bool
	switch cfg.Variant {
	case Maze:
		if len(goals) != 1 {
			return nil, &MalformedLayoutError{Reason: fmt.Sprintf("maze needs exactly one goal, found %d", len(goals))}
		}
		if len(starts) > 1 {
			return nil, &MalformedLayoutError{Reason: fmt.Sprintf("maze allows at most one start, found %d", len(starts))}
		}
		gw.goal, gw.hasGoal = goals[0], true
		if len(starts) == 1 {
			gw.start = starts[0]
		} else if gw.start, ok = gw.firstOpen(); !ok {
			return nil, &MalformedLayoutError{Reason: "no open start cell"}
		}
		if !gw.reachable(gw.start, gw.goal) {
			return nil, &MalformedLayoutError{Reason: fmt.Sprintf("goal %v unreachable from start %v", gw.goal, gw.start)}
		}
	case Arena:
		if len(goals) > 0 || len(starts) > 0 {
			return nil, &MalformedLayoutError{Reason: "arena layouts take no start or goal markers"}
		}
		if gw.start, ok = gw.firstOpen(); !ok {
			return nil, &MalformedLayoutError{Reason: "no open start cell"}
		}
	}

	return gw, nil
}

// firstOpen returns the first empty cell in row-major order.
func (gw *GridWorld) firstOpen() (Position, bool) {
	for r := range gw.cells {
		for c := range gw.cells[r] {
			if gw.cells[r][c] == Empty {
				return Position{Row: r, Col: c}, true
			}
		}
	}
	return Position{}, false
}

// reachable does a breadth first search over passable cells.
func (gw *GridWorld) reachable(from, to Position) bool {
	seen := map[Position]bool{from: true}
	queue := []Position{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		for _, a := range Actions {
			next := cur.Add(a)
			if !seen[next] && gw.IsPassable(next) {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func (gw *GridWorld) Rows() int      { return gw.rows }
func (gw *GridWorld) Cols() int      { return gw.cols }
func (gw *GridWorld) Config() Config { return gw.cfg }

// Start returns the start marker of a maze, or the first open cell of an arena.
func (gw *GridWorld) Start() Position { return gw.start }

// Goal returns the goal position, if the grid has one.
func (gw *GridWorld) Goal() (Position, bool) { return gw.goal, gw.hasGoal }

// InBounds reports whether p lies inside the grid.
func (gw *GridWorld) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < gw.rows && p.Col >= 0 && p.Col < gw.cols
}

// Cell returns the content at p. Positions outside the grid read as walls.
func (gw *GridWorld) Cell(p Position) CellKind {
	if !gw.InBounds(p) {
		return Wall
	}
	if _, ok := gw.food[p]; ok {
		return Food
	}
	if _, ok := gw.hazards[p]; ok {
		return Hazard
	}
	return gw.cells[p.Row][p.Col]
}

// IsPassable is true iff p is in bounds and not a wall.
func (gw *GridWorld) IsPassable(p Position) bool {
	return gw.InBounds(p) && gw.cells[p.Row][p.Col] != Wall
}

// Food returns the active food positions in row-major order.
func (gw *GridWorld) Food() []Position {
	return sortedKeys(gw.food)
}

// Hazards returns the active hazard positions in row-major order.
func (gw *GridWorld) Hazards() []Position {
	return sortedKeys(gw.hazards)
}

// IsHazard reports whether a hazard occupies p.
func (gw *GridWorld) IsHazard(p Position) bool {
	_, ok := gw.hazards[p]
	return ok
}

// PlaceRandom places up to count items of kind (Food or Hazard) on empty cells not in excluded,
// chosen uniformly at random. Food items placed by the same call keep a Manhattan separation
// greater than the configured FoodSeparation. Fewer items are placed when eligible cells run out.
func (gw *GridWorld) PlaceRandom(kind CellKind, count int, excluded map[Position]bool) []Position {
	var target map[Position]struct{}
	switch kind {
	case Food:
		target = gw.food
	case Hazard:
		target = gw.hazards
	default:
		return nil
	}

	candidates := []Position{}
	for r := range gw.cells {
		for c := range gw.cells[r] {
			p := Position{Row: r, Col: c}
			if gw.Cell(p) == Empty && !excluded[p] {
				candidates = append(candidates, p)
			}
		}
	}

	placed := []Position{}
	for len(placed) < count && len(candidates) > 0 {
		i := gw.rng.Intn(len(candidates))
		pos := candidates[i]
		candidates[i] = candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]

		if kind == Food && !gw.separated(pos, placed) {
			continue
		}
		target[pos] = struct{}{}
		placed = append(placed, pos)
	}
	return placed
}

func (gw *GridWorld) separated(pos Position, others []Position) bool {
	for _, o := range others {
		if pos.Manhattan(o) <= gw.cfg.FoodSeparation {
			return false
		}
	}
	return true
}

// ClearItems removes all food and hazards.
func (gw *GridWorld) ClearItems() {
	gw.food = map[Position]struct{}{}
	gw.hazards = map[Position]struct{}{}
}

// NearestFood returns the food closest to p by Manhattan distance; ties resolve in row-major order.
func (gw *GridWorld) NearestFood(p Position) (nearest Position, dist int, ok bool) {
	for _, f := range gw.Food() {
		if d := p.Manhattan(f); !ok || d < dist {
			nearest, dist, ok = f, d, true
		}
	}
	return
}

// String renders the grid in layout symbols, with food as '*' and hazards as '#', for debugging.
func (gw *GridWorld) String() string {
	var sb strings.Builder
	for r := 0; r < gw.rows; r++ {
		for c := 0; c < gw.cols; c++ {
			p := Position{Row: r, Col: c}
			switch gw.Cell(p) {
			case Wall:
				sb.WriteByte(WALL)
			case Goal:
				sb.WriteByte(GOAL)
			case Food:
				sb.WriteByte('*')
			case Hazard:
				sb.WriteByte('#')
			default:
				if gw.hasGoal && p == gw.start {
					sb.WriteByte(START)
				} else {
					sb.WriteByte(FLOOR)
				}
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func sortedKeys(set map[Position]struct{}) []Position {
	out := make([]Position, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
