package scale

import (
	"math"
	"sort"
	"time"
)

// ringCapacity is the sample window the controller reasons over. Power of two
// so the ring index wraps with a mask.
const ringCapacity = 64

// frameStats is a fixed-capacity ring of recent frame times with the derived
// statistics the controller needs. All values are float64 seconds internally;
// durations convert at the boundary.
type frameStats struct {
	samples [ringCapacity]float64
	head    int
	count   int
}

func (s *frameStats) push(d time.Duration) {
	s.samples[s.head] = d.Seconds()
	s.head = (s.head + 1) & (ringCapacity - 1)
	if s.count < ringCapacity {
		s.count++
	}
}

func (s *frameStats) reset() {
	s.head = 0
	s.count = 0
}

func (s *frameStats) len() int { return s.count }

// last returns the most recently pushed sample, 0 if empty.
func (s *frameStats) last() float64 {
	if s.count == 0 {
		return 0
	}
	return s.samples[(s.head-1+ringCapacity)&(ringCapacity-1)]
}

func (s *frameStats) mean() float64 {
	if s.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < s.count; i++ {
		sum += s.samples[i]
	}
	return sum / float64(s.count)
}

func (s *frameStats) stddev() float64 {
	if s.count < 2 {
		return 0
	}
	m := s.mean()
	sum := 0.0
	for i := 0; i < s.count; i++ {
		d := s.samples[i] - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(s.count))
}

// percentileFiltered computes the p-th percentile after discarding samples
// further than sigma standard deviations from the mean, so a one-off spike
// cannot drag the decision value. If filtering would discard everything the
// unfiltered percentile is returned.
func (s *frameStats) percentileFiltered(p, sigma float64) float64 {
	if s.count == 0 {
		return 0
	}
	m := s.mean()
	sd := s.stddev()

	kept := make([]float64, 0, s.count)
	for i := 0; i < s.count; i++ {
		v := s.samples[i]
		if sd > 0 && math.Abs(v-m) > sigma*sd {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		for i := 0; i < s.count; i++ {
			kept = append(kept, s.samples[i])
		}
	}

	sort.Float64s(kept)
	if p <= 0 {
		return kept[0]
	}
	if p >= 1 {
		return kept[len(kept)-1]
	}
	idx := int(math.Ceil(p*float64(len(kept)))) - 1
	if idx < 0 {
		idx = 0
	}
	return kept[idx]
}
