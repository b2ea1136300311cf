// Package statistics summarizes player results from settled hands in big
// blinds, the way simulations are compared.
package statistics

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lox/cardroom/internal/game"
)

// BigPotBB is the pot size, in big blinds, counted as a big pot
const BigPotBB = 50

// HandResult is one player's outcome in one hand
type HandResult struct {
	NetBB          float64 // Net big blinds won or lost
	WentToShowdown bool
	PotBB          float64 // Contested pot in big blinds
	RakePaid       int64   // Chips
}

// Statistics accumulates results for one player or group of players
type Statistics struct {
	Hands  int
	SumBB  float64
	SumBB2 float64 // Sum of squares for the variance
	Values []float64

	ShowdownWins    int
	NonShowdownWins int
	ShowdownBB      float64 // Wins and losses in hands that went to showdown
	NonShowdownBB   float64
	AllBB           float64

	RakePaid  int64
	MaxPotBB  float64
	BigPots   int
	BigPotsBB float64
}

// Add incorporates a hand result
func (s *Statistics) Add(r HandResult) {
	s.Hands++
	s.SumBB += r.NetBB
	s.SumBB2 += r.NetBB * r.NetBB
	s.Values = append(s.Values, r.NetBB)
	s.AllBB += r.NetBB
	s.RakePaid += r.RakePaid

	if r.WentToShowdown {
		s.ShowdownBB += r.NetBB
		if r.NetBB > 0 {
			s.ShowdownWins++
		}
	} else {
		s.NonShowdownBB += r.NetBB
		if r.NetBB > 0 {
			s.NonShowdownWins++
		}
	}

	s.MaxPotBB = math.Max(s.MaxPotBB, r.PotBB)
	if r.PotBB >= BigPotBB {
		s.BigPots++
		s.BigPotsBB += r.NetBB
	}
}

// Mean returns big blinds per hand
func (s *Statistics) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.SumBB / float64(s.Hands)
}

// BBPer100 returns big blinds per hundred hands
func (s *Statistics) BBPer100() float64 {
	return s.Mean() * 100
}

// Variance returns the sample variance
func (s *Statistics) Variance() float64 {
	if s.Hands < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumBB2 - float64(s.Hands)*mean*mean) / float64(s.Hands-1)
}

// StdDev returns the sample standard deviation
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(math.Max(0, s.Variance()))
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Hands))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Median returns the median result
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the interpolated result at p, between 0 and 1
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), s.Values...)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Validate checks that the buckets account for every result
func (s *Statistics) Validate() error {
	if math.Abs(s.AllBB-s.ShowdownBB-s.NonShowdownBB) > 1e-6 {
		return fmt.Errorf("results mismatch: all=%.6f showdown=%.6f non-showdown=%.6f",
			s.AllBB, s.ShowdownBB, s.NonShowdownBB)
	}
	if len(s.Values) != s.Hands {
		return fmt.Errorf("%d values recorded for %d hands", len(s.Values), s.Hands)
	}
	if wins := s.ShowdownWins + s.NonShowdownWins; wins > s.Hands {
		return fmt.Errorf("%d wins exceed %d hands", wins, s.Hands)
	}
	return nil
}

// Tracker groups results from settlements by a key derived from the seat
// identity. It is safe for concurrent use and can be registered as a hand
// monitor.
type Tracker struct {
	key func(identity string) string

	mu    sync.Mutex
	stats map[string]*Statistics
}

// NewTracker returns a tracker grouping by key. A nil key groups by identity.
func NewTracker(key func(identity string) string) *Tracker {
	if key == nil {
		key = func(identity string) string { return identity }
	}
	return &Tracker{key: key, stats: make(map[string]*Statistics)}
}

// OnHandSettled records every dealt seat's result
func (t *Tracker) OnHandSettled(s game.Settlement) {
	if s.Blinds.Big <= 0 {
		return
	}
	bb := float64(s.Blinds.Big)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range s.Seats {
		k := t.key(r.Identity)
		st, ok := t.stats[k]
		if !ok {
			st = &Statistics{}
			t.stats[k] = st
		}
		st.Add(HandResult{
			NetBB:          float64(r.Delta) / bb,
			WentToShowdown: s.Showdown && !r.Folded,
			PotBB:          float64(s.PotTotal) / bb,
			RakePaid:       r.RakePaid,
		})
	}
}

func (t *Tracker) OnComplete(int, string) {}

// Keys returns the tracked keys sorted by big blinds won, best first
func (t *Tracker) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.stats))
	for k := range t.stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := t.stats[keys[i]].SumBB, t.stats[keys[j]].SumBB
		if a != b {
			return a > b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Get returns a copy of the statistics for key
func (t *Tracker) Get(key string) (Statistics, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.stats[key]
	if !ok {
		return Statistics{}, false
	}
	out := *st
	out.Values = append([]float64(nil), st.Values...)
	return out, true
}
