package grid_world

import (
	"errors"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

var room3x3 = "xxxxx\nx...x\nx...x\nx...x\nxxxxx"

func newArena(t *testing.T, layout string) *GridWorld {
	cfg := DefaultConfig(Arena)
	gw, err := FromLayout(layout, cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	return gw
}

func TestFromLayout(t *testing.T) {
	Convey("When parsing layouts", t, func() {
		Convey("The default maze loads with its start and goal", func() {
			gw, err := FromLayout(DefaultMaze, DefaultConfig(Maze), nil)
			So(err, ShouldBeNil)
			So(gw.Rows(), ShouldEqual, 8)
			So(gw.Cols(), ShouldEqual, 8)
			So(gw.Start(), ShouldResemble, Position{0, 0})
			goal, ok := gw.Goal()
			So(ok, ShouldBeTrue)
			So(goal, ShouldResemble, Position{7, 7})
			So(gw.Cell(Position{0, 3}), ShouldEqual, Wall)
		})

		Convey("Ragged rows are rejected with the offending line", func() {
			_, err := FromLayout("?..\n..\n..!", DefaultConfig(Maze), nil)
			var malformed *MalformedLayoutError
			So(errors.As(err, &malformed), ShouldBeTrue)
			So(malformed.Line, ShouldEqual, 2)
		})

		Convey("A maze without a goal is rejected", func() {
			_, err := FromLayout("?...\n....", DefaultConfig(Maze), nil)
			var malformed *MalformedLayoutError
			So(errors.As(err, &malformed), ShouldBeTrue)
		})

		Convey("A maze whose goal is walled off is rejected", func() {
			_, err := FromLayout("?.x!\n..x.", DefaultConfig(Maze), nil)
			var malformed *MalformedLayoutError
			So(errors.As(err, &malformed), ShouldBeTrue)
		})

		Convey("A maze without an open start cell is rejected", func() {
			for _, layout := range []string{"x!", "!"} {
				_, err := FromLayout(layout, DefaultConfig(Maze), nil)
				var malformed *MalformedLayoutError
				So(errors.As(err, &malformed), ShouldBeTrue)
				So(malformed.Reason, ShouldEqual, "no open start cell")
			}
		})

		Convey("A layout of only walls is rejected", func() {
			_, err := FromLayout("xxx\nxxx", DefaultConfig(Arena), nil)
			var malformed *MalformedLayoutError
			So(errors.As(err, &malformed), ShouldBeTrue)
		})

		Convey("Unknown symbols are rejected", func() {
			_, err := FromLayout("x.x\nxQx", DefaultConfig(Arena), nil)
			So(err, ShouldNotBeNil)
		})

		Convey("Arena layouts refuse maze markers", func() {
			_, err := FromLayout("?..!", DefaultConfig(Arena), nil)
			So(err, ShouldNotBeNil)
		})

		Convey("Blank surrounding lines are ignored", func() {
			gw, err := FromLayout("\n"+room3x3+"\n\n", DefaultConfig(Arena), nil)
			So(err, ShouldBeNil)
			So(gw.Rows(), ShouldEqual, 5)
		})
	})
}

func TestGenerators(t *testing.T) {
	Convey("Generated layouts always parse", t, func() {
		rng := rand.New(rand.NewSource(42))
		for _, dims := range [][2]int{{1, 1}, {1, 5}, {4, 4}, {6, 9}} {
			_, err := FromLayout(MazeLayout(dims[0], dims[1], rng), DefaultConfig(Maze), rng)
			So(err, ShouldBeNil)
		}
		gw, err := FromLayout(ArenaLayout(10, 6), DefaultConfig(Arena), rng)
		So(err, ShouldBeNil)
		So(gw.Cols(), ShouldEqual, 10)
		So(gw.Rows(), ShouldEqual, 6)
		So(gw.IsPassable(Position{0, 4}), ShouldBeFalse)
		So(gw.IsPassable(Position{1, 1}), ShouldBeTrue)
	})
}

func TestPlaceRandom(t *testing.T) {
	Convey("When placing food", t, func() {
		gw := newArena(t, ArenaLayout(12, 12))

		Convey("Items placed in one call keep their separation", func() {
			placed := gw.PlaceRandom(Food, 10, nil)
			So(len(placed), ShouldBeGreaterThan, 0)
			for i := range placed {
				for j := i + 1; j < len(placed); j++ {
					So(placed[i].Manhattan(placed[j]), ShouldBeGreaterThan, gw.Config().FoodSeparation)
				}
			}
		})

		Convey("Excluded cells are never used", func() {
			excluded := map[Position]bool{}
			for r := 1; r < 11; r++ {
				for c := 1; c < 11; c++ {
					if r != 5 || c != 5 {
						excluded[Position{r, c}] = true
					}
				}
			}
			placed := gw.PlaceRandom(Hazard, 3, excluded)
			So(placed, ShouldResemble, []Position{{5, 5}})
		})

		Convey("Exhausted cells degrade to fewer items", func() {
			small := newArena(t, room3x3)
			placed := small.PlaceRandom(Hazard, 20, nil)
			So(len(placed), ShouldEqual, 9)
			So(len(small.PlaceRandom(Food, 1, nil)), ShouldEqual, 0)
		})
	})
}

func TestSense(t *testing.T) {
	Convey("Sensing classifies the first thing in each direction", t, func() {
		gw := newArena(t, ArenaLayout(9, 9))
		gw.food[Position{4, 6}] = struct{}{}
		gw.hazards[Position{2, 4}] = struct{}{}

		sensors := gw.Sense(Position{4, 4})
		So(sensors[Up], ShouldEqual, SeesHazard)
		So(sensors[Down], ShouldEqual, SeesEmpty)
		So(sensors[Left], ShouldEqual, SeesEmpty)
		So(sensors[Right], ShouldEqual, SeesFood)

		edge := gw.Sense(Position{1, 1})
		So(edge[Up], ShouldEqual, SeesWall)
		So(edge[Left], ShouldEqual, SeesWall)

		Convey("The same situation always gives the same state", func() {
			a, err := gw.Observe(Position{4, 4})
			So(err, ShouldBeNil)
			b, _ := gw.Observe(Position{4, 4})
			So(a == b, ShouldBeTrue)
		})

		Convey("Walls and off-grid positions are invalid states", func() {
			_, err := gw.Observe(Position{0, 0})
			var invalid *InvalidStateError
			So(errors.As(err, &invalid), ShouldBeTrue)
			_, err = gw.Observe(Position{-1, 3})
			So(errors.As(err, &invalid), ShouldBeTrue)
		})
	})
}

func TestStep(t *testing.T) {
	Convey("When stepping", t, func() {
		gw := newArena(t, ArenaLayout(8, 8))

		Convey("Walls block without moving", func() {
			head, outcome := gw.Step([]Position{{1, 1}}, Up)
			So(outcome, ShouldEqual, Blocked)
			So(head, ShouldResemble, Position{1, 1})
			So(gw.Reward(outcome), ShouldEqual, gw.Config().Rewards.Blocked)
		})

		Convey("Food is consumed and replenished", func() {
			gw.food[Position{3, 4}] = struct{}{}
			head, outcome := gw.Step([]Position{{3, 3}, {3, 2}}, Right)
			So(outcome, ShouldEqual, ConsumedFood)
			So(head, ShouldResemble, Position{3, 4})
			food := gw.Food()
			So(len(food), ShouldEqual, 1)
			So(food[0], ShouldNotResemble, Position{3, 4})
			So(food[0], ShouldNotResemble, Position{3, 2})
		})

		Convey("Replenished food avoids other occupied cells", func() {
			room := newArena(t, room3x3)
			room.food[Position{1, 2}] = struct{}{}
			others := []Position{{1, 3}, {2, 1}, {2, 2}, {2, 3}, {3, 1}, {3, 2}}
			_, outcome := room.StepAvoiding([]Position{{1, 1}}, Right, others)
			So(outcome, ShouldEqual, ConsumedFood)
			So(room.Food(), ShouldResemble, []Position{{3, 3}})
		})

		Convey("Hazards are reported and stay on the map", func() {
			gw.hazards[Position{2, 1}] = struct{}{}
			_, outcome := gw.Step([]Position{{1, 1}}, Down)
			So(outcome, ShouldEqual, HitHazard)
			So(gw.IsHazard(Position{2, 1}), ShouldBeTrue)
		})

		Convey("Random walks never leave the grid or enter walls", func() {
			rng := rand.New(rand.NewSource(9))
			body := []Position{{4, 4}}
			for i := 0; i < 500; i++ {
				head, _ := gw.Step(body, Actions[rng.Intn(NumActions)])
				So(gw.InBounds(head), ShouldBeTrue)
				So(gw.Cell(head), ShouldNotEqual, Wall)
				body = []Position{head}
			}
		})

		Convey("An empty body panics", func() {
			So(func() { gw.Step(nil, Up) }, ShouldPanic)
		})
	})

	Convey("Maze goals end in a goal outcome", t, func() {
		gw, err := FromLayout("?!", DefaultConfig(Maze), nil)
		So(err, ShouldBeNil)
		head, outcome := gw.Step([]Position{gw.Start()}, Right)
		So(outcome, ShouldEqual, ReachedGoal)
		So(head, ShouldResemble, Position{0, 1})
		So(gw.Reward(outcome), ShouldEqual, 1000)

		_, outcome = gw.Step([]Position{gw.Start()}, Up)
		So(outcome, ShouldEqual, Blocked)
		So(gw.Reward(outcome), ShouldEqual, -100)
	})
}

func TestTransitionReward(t *testing.T) {
	Convey("Shaping rewards approach toward food", t, func() {
		cfg := DefaultConfig(Arena)
		cfg.Rewards.Closer = 5
		cfg.Rewards.Farther = -10
		gw, err := FromLayout(ArenaLayout(8, 8), cfg, rand.New(rand.NewSource(3)))
		So(err, ShouldBeNil)
		gw.food[Position{1, 6}] = struct{}{}

		So(gw.TransitionReward(Position{1, 3}, Position{1, 4}, Normal), ShouldEqual, cfg.Rewards.Step+5)
		So(gw.TransitionReward(Position{1, 3}, Position{1, 2}, Normal), ShouldEqual, cfg.Rewards.Step-10)
		So(gw.TransitionReward(Position{1, 3}, Position{1, 3}, Blocked), ShouldEqual, cfg.Rewards.Blocked)
	})
}
