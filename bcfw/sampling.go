package bcfw

import (
	"fmt"
	"math/rand"
)

// SampleMethod selects how samples are ordered within an epoch.
type SampleMethod string

const (
	// Permutation visits every sample exactly once per epoch in a fresh random order.
	Permutation SampleMethod = "permutation"
	// RandomWithReplacement draws N indices uniformly; samples may repeat or be skipped.
	RandomWithReplacement SampleMethod = "random-with-replacement"
)

// ParseSampleMethod accepts the canonical names and the short aliases "perm" and "rnd".
func ParseSampleMethod(s string) (SampleMethod, error) {
	switch s {
	case string(Permutation), "perm":
		return Permutation, nil
	case string(RandomWithReplacement), "rnd":
		return RandomWithReplacement, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSampleMethod, s)
}

// order fills buf with the visiting order for one epoch over n samples.
func (m SampleMethod) order(rng *rand.Rand, n int, buf []int) []int {
	if cap(buf) < n {
		buf = make([]int, n)
	}
	buf = buf[:n]
	switch m {
	case RandomWithReplacement:
		for j := range buf {
			buf[j] = rng.Intn(n)
		}
	default:
		for j := range buf {
			buf[j] = j
		}
		rng.Shuffle(n, func(a, b int) { buf[a], buf[b] = buf[b], buf[a] })
	}
	return buf
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(seed))
}
