// Package sampler draws uniform random samples of document IDs.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidParameter indicates an invalid sampling parameter combination.
var ErrInvalidParameter = errors.New("invalid sampling parameter")

// Options controls a sampling run. Exactly one of N or P must be set.
type Options struct {
	// N is an absolute sample size. Values larger than the population
	// are clamped to the population size.
	N *int

	// P is a sample proportion in [0, 1]. The resulting size is
	// max(1, floor(len * P)) for a non-empty population.
	P *float64

	// Rand is the randomness source. Nil uses the package-global source;
	// tests inject a seeded *rand.Rand for determinism.
	Rand *rand.Rand
}

// N returns Options sampling a fixed number of IDs.
func N(n int) Options {
	return Options{N: &n}
}

// P returns Options sampling a proportion of IDs.
func P(p float64) Options {
	return Options{P: &p}
}

// Sample draws a uniform sample without replacement from allIDs.
// The input slice is never modified. An empty population yields an empty
// sample and no error.
func Sample(allIDs []string, opts Options) ([]string, error) {
	size, err := sampleSize(len(allIDs), opts)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []string{}, nil
	}

	shuffled := make([]string, len(allIDs))
	copy(shuffled, allIDs)

	if opts.Rand != nil {
		opts.Rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	} else {
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	}

	return shuffled[:size], nil
}

func sampleSize(population int, opts Options) (int, error) {
	switch {
	case opts.N != nil && opts.P != nil:
		return 0, fmt.Errorf("%w: cannot set both n and p", ErrInvalidParameter)
	case opts.N == nil && opts.P == nil:
		return 0, fmt.Errorf("%w: one of n or p is required", ErrInvalidParameter)
	case opts.N != nil:
		n := *opts.N
		if n < 1 {
			return 0, fmt.Errorf("%w: n must be at least 1, got %d", ErrInvalidParameter, n)
		}
		if n > population {
			n = population
		}
		return n, nil
	default:
		p := *opts.P
		if p < 0 || p > 1 {
			return 0, fmt.Errorf("%w: p must be within [0, 1], got %g", ErrInvalidParameter, p)
		}
		if population == 0 {
			return 0, nil
		}
		size := int(math.Floor(float64(population) * p))
		if size < 1 {
			size = 1
		}
		return size, nil
	}
}
