package actors

import (
	"math/rand"
	"testing"

	. "gridlearn/grid_world"
	"gridlearn/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

func arena(t *testing.T, width, height int) *GridWorld {
	cfg := DefaultConfig(Arena)
	cfg.FoodCount, cfg.HazardCount = 0, 0
	gw, err := FromLayout(ArenaLayout(width, height), cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	return gw
}

func TestSegments(t *testing.T) {
	Convey("When a body advances", t, func() {
		b := NewSegments(Position{Row: 1, Col: 1})

		Convey("Its length is constant without growth", func() {
			b.Advance(Position{Row: 1, Col: 2})
			b.Advance(Position{Row: 1, Col: 3})
			So(b.Body(), ShouldResemble, []Position{{Row: 1, Col: 3}})
		})

		Convey("Growth keeps the tail once", func() {
			b.Grow()
			b.Advance(Position{Row: 1, Col: 2})
			b.Advance(Position{Row: 1, Col: 3})
			So(b.Body(), ShouldResemble, []Position{{Row: 1, Col: 3}, {Row: 1, Col: 2}})
			b.Grow()
			b.Advance(Position{Row: 2, Col: 3})
			So(b.Body(), ShouldResemble, []Position{{Row: 2, Col: 3}, {Row: 1, Col: 3}, {Row: 1, Col: 2}})
		})

		Convey("Reset returns to a single segment", func() {
			b.Grow()
			b.Advance(Position{Row: 1, Col: 2})
			b.Reset(Position{Row: 4, Col: 4})
			b.Advance(Position{Row: 4, Col: 5})
			So(b.Body(), ShouldResemble, []Position{{Row: 4, Col: 5}})
		})
	})

	Convey("Shrinking keeps at least one segment and always shortens", t, func() {
		for length := 1; length <= 40; length++ {
			for _, fraction := range []float64{0.01, 0.25, 0.5, 0.9, 1} {
				b := NewSegments(Position{Row: 0, Col: 0})
				for i := 1; i < length; i++ {
					b.Grow()
					b.Advance(Position{Row: 0, Col: i})
				}
				So(b.Len(), ShouldEqual, length)
				head := b.Head()
				b.Shrink(fraction)
				So(b.Len(), ShouldBeGreaterThanOrEqualTo, MinLength)
				So(b.Head(), ShouldResemble, head)
				if length > 1 {
					So(b.Len(), ShouldBeLessThan, length)
				}
			}
		}

		b := NewSegments(Position{Row: 0, Col: 0})
		for i := 1; i < 10; i++ {
			b.Grow()
			b.Advance(Position{Row: 0, Col: i})
		}
		b.Shrink(0.5)
		So(b.Len(), ShouldEqual, 5)
	})
}

func TestLearner(t *testing.T) {
	Convey("A greedy learner follows its table", t, func() {
		gw := arena(t, 6, 6)
		table := reinforcement.NewQTable(reinforcement.Params{Alpha: 1, Gamma: 0.9}, rand.New(rand.NewSource(2)))
		learner := NewLearner(Position{Row: 2, Col: 2}, table)
		s, err := gw.Observe(learner.Head())
		So(err, ShouldBeNil)

		table.Set(s, Right, 7)
		So(learner.DecideAction(Context{World: gw, State: s}), ShouldEqual, Right)

		next, _ := gw.Observe(Position{Row: 2, Col: 3})
		So(learner.Learn(s, Right, -1, next), ShouldEqual, -1)
		So(learner.DecideAction(Context{World: gw, State: s}), ShouldEqual, Up)
	})
}

func TestScripted(t *testing.T) {
	Convey("When the scripted opponent decides", t, func() {
		gw := arena(t, 8, 8)
		opp := NewScripted(Position{Row: 3, Col: 3}, rand.New(rand.NewSource(3)))
		ctx := Context{World: gw}

		Convey("Adjacent food is taken", func() {
			gw.PlaceRandom(Food, 1, allBut(gw, Position{Row: 3, Col: 2}))
			So(opp.DecideAction(ctx), ShouldEqual, Left)
		})

		Convey("Distant food is approached", func() {
			gw.PlaceRandom(Food, 1, allBut(gw, Position{Row: 6, Col: 3}))
			So(opp.DecideAction(ctx), ShouldEqual, Down)
		})

		Convey("Hazards are avoided even on the way to food", func() {
			gw.PlaceRandom(Food, 1, allBut(gw, Position{Row: 6, Col: 3}))
			gw.PlaceRandom(Hazard, 1, allBut(gw, Position{Row: 4, Col: 3}))
			action := opp.DecideAction(ctx)
			So(action, ShouldNotEqual, Down)
			So(gw.IsHazard(Position{Row: 3, Col: 3}.Add(action)), ShouldBeFalse)
		})

		Convey("Boxed in, it still returns some action", func() {
			small, err := FromLayout("xxx\nx.x\nxxx", DefaultConfig(Arena), nil)
			So(err, ShouldBeNil)
			boxed := NewScripted(Position{Row: 1, Col: 1}, rand.New(rand.NewSource(4)))
			a := boxed.DecideAction(Context{World: small})
			So(a, ShouldBeBetweenOrEqual, Up, Right)
		})
	})
}

func allBut(gw *GridWorld, keep Position) map[Position]bool {
	excluded := map[Position]bool{}
	for r := 0; r < gw.Rows(); r++ {
		for c := 0; c < gw.Cols(); c++ {
			if p := (Position{Row: r, Col: c}); p != keep {
				excluded[p] = true
			}
		}
	}
	return excluded
}
