package schema

import "github.com/zhukovaskychina/grizzly/value"

// exactSetThreshold bounds how many distinct values the estimator tracks
// exactly before falling back to the sketch.
const exactSetThreshold = 1024

// CardinalityEstimator tracks approximate distinct-value counts for a
// column. Below exactSetThreshold it keeps every distinct hash seen
// (exact); above it, it switches to a Flajolet-Martin-style probabilistic
// sketch over value.Value.Hash().
type CardinalityEstimator struct {
	exact map[uint64]struct{}
	sketch *sketch
	useSketch bool
}

type sketch struct {
	seen map[uint64]bool
	mask uint64
	maxSize int
}

func newSketch(maxSize int) *sketch {
	return &sketch{seen: make(map[uint64]bool), maxSize: maxSize}
}

func (s *sketch) insert(h uint64) {
	if (h & s.mask) != 0 {
		return
	}
	s.seen[h] = true
	if len(s.seen) > s.maxSize {
		s.mask = s.mask*2 + 1
		for k := range s.seen {
			if (k & s.mask) != 0 {
				delete(s.seen, k)
			}
		}
	}
}

func (s *sketch) ndv() int64 {
	return int64(s.mask+1) * int64(len(s.seen))
}

// NewCardinalityEstimator returns an estimator that starts exact and
// upgrades to the sketch once exactSetThreshold distinct values are seen.
func NewCardinalityEstimator() *CardinalityEstimator {
	return &CardinalityEstimator{exact: make(map[uint64]struct{})}
}

// Observe records one more occurrence of v.
func (c *CardinalityEstimator) Observe(v value.Value) {
	h := v.Hash()
	if c.useSketch {
		c.sketch.insert(h)
		return
	}
	c.exact[h] = struct{}{}
	if len(c.exact) > exactSetThreshold {
		c.upgrade()
	}
}

func (c *CardinalityEstimator) upgrade() {
	s := newSketch(exactSetThreshold * 4)
	for h := range c.exact {
		s.insert(h)
	}
	c.sketch = s
	c.exact = nil
	c.useSketch = true
}

// Distinct returns the estimated (exact, below the threshold) number of
// distinct values observed.
func (c *CardinalityEstimator) Distinct() int64 {
	if c.useSketch {
		return c.sketch.ndv()
	}
	return int64(len(c.exact))
}

// IsExact reports whether Distinct() is an exact count rather than a
// sketch estimate.
func (c *CardinalityEstimator) IsExact() bool { return !c.useSketch }
