// Package kll implements a streaming approximate-quantile sketch: a stack
// of bounded compactors with merge-based cross-partition combination, the
// structure backing the Median and Percentile analyzers.
package kll

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"

	"github.com/dqguard/dqguard/internal/errs"
)

// compactor is one level of the stack: a bounded-capacity buffer of
// unsorted inserted values awaiting the next cascade.
type compactor struct {
	Buf []float64 `json:"buf"`
}

// Sketch is one KLL quantile summary. k bounds per-level capacity and
// sets the declared relative-error bound 1.65/√k. Zero value is not
// usable; construct with New.
type Sketch struct {
	K      int         `json:"k"`
	N      int64       `json:"n"`
	Min    float64     `json:"min"`
	Max    float64     `json:"max"`
	Levels []compactor `json:"levels"`
}

// New builds an empty sketch. k must be >= 2.
func New(k int) (*Sketch, error) {
	if k < 2 {
		return nil, errs.ErrConfiguration.New("kll sketch k must be >= 2")
	}
	return &Sketch{K: k}, nil
}

// ErrorBound returns the sketch's declared relative-error bound, 1.65/√k.
func (s *Sketch) ErrorBound() float64 { return 1.65 / math.Sqrt(float64(s.K)) }

func (s *Sketch) IsEmpty() bool { return s.N == 0 }

func (s *Sketch) Marshal() ([]byte, error) { return json.Marshal(s) }

// Unmarshal reconstructs a Sketch from Marshal's output, for the
// incremental runner's per-partition state store.
func Unmarshal(data []byte) (*Sketch, error) {
	var s Sketch
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Insert adds one value. NaN is ignored.
func (s *Sketch) Insert(v float64) {
	if math.IsNaN(v) {
		return
	}
	if s.N == 0 || v < s.Min {
		s.Min = v
	}
	if s.N == 0 || v > s.Max {
		s.Max = v
	}
	s.N++
	s.ensureLevel(0)
	s.Levels[0].Buf = append(s.Levels[0].Buf, v)
	s.cascade()
}

func (s *Sketch) ensureLevel(i int) {
	for len(s.Levels) <= i {
		s.Levels = append(s.Levels, compactor{})
	}
}

// cascade walks the stack from level 0 upward, compacting every level
// that holds more than k values. Promotions only ever target level i+1, so
// a single forward pass re-establishes the full-capacity invariant even
// when a compaction cascades several levels up.
func (s *Sketch) cascade() {
	for i := 0; i < len(s.Levels); i++ {
		if len(s.Levels[i].Buf) > s.K {
			s.compactLevel(i)
		}
	}
}

// compactLevel sorts level i, keeps one parity half in place, and
// promotes the other half to level i+1 (created on demand). The parity
// kept is chosen by a uniform random bit.
func (s *Sketch) compactLevel(i int) {
	buf := s.Levels[i].Buf
	sort.Float64s(buf)
	promoteOdd := rand.Intn(2) == 1

	keep := make([]float64, 0, len(buf)/2+1)
	promote := make([]float64, 0, len(buf)/2+1)
	for idx, v := range buf {
		if (idx%2 == 1) == promoteOdd {
			promote = append(promote, v)
		} else {
			keep = append(keep, v)
		}
	}
	s.Levels[i].Buf = keep
	s.ensureLevel(i + 1)
	s.Levels[i+1].Buf = append(s.Levels[i+1].Buf, promote...)
}

// Quantile returns the value at quantile phi in [0, 1].
func (s *Sketch) Quantile(phi float64) (float64, error) {
	if s.N == 0 {
		return 0, errs.ErrEmptySketch.New()
	}
	if phi < 0 || phi > 1 {
		return 0, errs.ErrInvalidQuantile.New(phi)
	}
	if phi == 0 {
		return s.Min, nil
	}
	if phi == 1 {
		return s.Max, nil
	}

	type weighted struct {
		v float64
		w int64
	}
	var items []weighted
	for i, lvl := range s.Levels {
		weight := int64(1) << uint(i)
		for _, v := range lvl.Buf {
			items = append(items, weighted{v, weight})
		}
	}
	sort.Slice(items, func(a, b int) bool { return items[a].v < items[b].v })

	target := int64(math.Floor(phi * float64(s.N)))
	var cum int64
	for _, it := range items {
		cum += it.w
		if cum >= target {
			return it.v, nil
		}
	}
	return s.Max, nil
}

// Merge folds other into s. Both sketches must share k. Merging leaves
// other unchanged; s gains other's inserts.
func (s *Sketch) Merge(other *Sketch) error {
	if s.K != other.K {
		return errs.ErrIncompatibleSketch.New(s.K, other.K)
	}
	if other.N == 0 {
		return nil
	}
	if s.N == 0 {
		s.Min, s.Max = other.Min, other.Max
	} else {
		if other.Min < s.Min {
			s.Min = other.Min
		}
		if other.Max > s.Max {
			s.Max = other.Max
		}
	}
	s.N += other.N

	for i, lvl := range other.Levels {
		if len(lvl.Buf) == 0 {
			continue
		}
		s.ensureLevel(i)
		s.Levels[i].Buf = append(s.Levels[i].Buf, lvl.Buf...)
	}
	s.cascade()
	return nil
}

// MemoryUsage returns an upper bound on the sketch's footprint in bytes:
// O(k · log2(n/k)) values, 8 bytes each.
func (s *Sketch) MemoryUsage() uint64 {
	levels := len(s.Levels)
	if levels == 0 {
		levels = 1
	}
	return uint64(s.K) * uint64(levels) * 8
}
