package episode

import (
	"gonum.org/v1/gonum/stat"
)

const defaultHistorySize = 100

// History is a bounded rolling record of episode scores. Once full, each new score evicts the oldest.
type History struct {
	scores []float64
	next   int
	full   bool
}

// NewHistory returns a history retaining the last size scores; size < 1 uses the default of 100.
func NewHistory(size int) *History {
	if size < 1 {
		size = defaultHistorySize
	}
	return &History{scores: make([]float64, size)}
}

// Push records a score.
func (h *History) Push(score float64) {
	h.scores[h.next] = score
	h.next = (h.next + 1) % len(h.scores)
	if h.next == 0 {
		h.full = true
	}
}

func (h *History) Len() int {
	if h.full {
		return len(h.scores)
	}
	return h.next
}

func (h *History) Cap() int { return len(h.scores) }

// Scores returns the retained scores, oldest first.
func (h *History) Scores() []float64 {
	if !h.full {
		return append([]float64(nil), h.scores[:h.next]...)
	}
	out := make([]float64, 0, len(h.scores))
	out = append(out, h.scores[h.next:]...)
	return append(out, h.scores[:h.next]...)
}

// Mean of the retained scores; zero when empty.
func (h *History) Mean() float64 {
	if h.Len() == 0 {
		return 0
	}
	return stat.Mean(h.Scores(), nil)
}

// StdDev is the sample standard deviation of the retained scores; zero with fewer than two.
func (h *History) StdDev() float64 {
	if h.Len() < 2 {
		return 0
	}
	return stat.StdDev(h.Scores(), nil)
}

// Best returns the highest retained score.
func (h *History) Best() (best float64, ok bool) {
	for i, s := range h.Scores() {
		if i == 0 || s > best {
			best, ok = s, true
		}
	}
	return
}
