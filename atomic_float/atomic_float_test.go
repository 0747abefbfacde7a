package atomic_float

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAtomicAdd(t *testing.T) {
	Convey("When atomicAdd is called", t, func() {
		Convey("When multiple writers add to the float value concurrently", func() {
			f64 := NewAtomicFloat64(0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters)
			adder := func() {
				<-start
				for i := 0; i < numOps; i++ {
					for succeeded := false; !succeeded; _, succeeded = f64.AtomicAdd(1.0) {
					}
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go adder()
			}

			// Wait for goroutines to begin
			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(f64.AtomicRead(), ShouldEqual, float64(numOps*numWriters))
		})

		Convey("When multiple writers increment and decrement the float value concurrently", func() {
			var f64 AtomicFloat64
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters * 2)
			worker := func(addend float64) {
				<-start
				for i := 0; i < numOps; i++ {
					f64.Add(addend)
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go worker(1.0)
				go worker(-1.0)
			}

			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(f64.AtomicRead(), ShouldEqual, float64(0.0))
		})
	})

	Convey("When a value is set while readers poll it", t, func() {
		f64 := NewAtomicFloat64(-1)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for f64.AtomicRead() != 42.5 {
			}
		}()
		f64.AtomicSet(42.5)
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		So(f64.AtomicRead(), ShouldEqual, 42.5)
	})
}
