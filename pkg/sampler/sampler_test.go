package sampler_test

import (
	"fmt"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lectorhq/lector/pkg/sampler"
)

var _ = Describe("Sample", func() {
	ids := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("id-%d", i)
		}
		return out
	}

	seeded := func() *rand.Rand {
		return rand.New(rand.NewSource(42))
	}

	Describe("parameter validation", func() {
		It("rejects both n and p", func() {
			n, p := 3, 0.5
			_, err := sampler.Sample(ids(10), sampler.Options{N: &n, P: &p})
			Expect(err).To(MatchError(sampler.ErrInvalidParameter))
		})

		It("rejects neither n nor p", func() {
			_, err := sampler.Sample(ids(10), sampler.Options{})
			Expect(err).To(MatchError(sampler.ErrInvalidParameter))
		})

		It("rejects n below 1", func() {
			_, err := sampler.Sample(ids(10), sampler.N(0))
			Expect(err).To(MatchError(sampler.ErrInvalidParameter))
		})

		It("rejects p outside [0, 1]", func() {
			_, err := sampler.Sample(ids(10), sampler.P(1.5))
			Expect(err).To(MatchError(sampler.ErrInvalidParameter))

			_, err = sampler.Sample(ids(10), sampler.P(-0.1))
			Expect(err).To(MatchError(sampler.ErrInvalidParameter))
		})
	})

	Describe("sampling by n", func() {
		It("returns exactly n IDs", func() {
			opts := sampler.N(3)
			opts.Rand = seeded()
			sample, err := sampler.Sample(ids(10), opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(sample).To(HaveLen(3))
		})

		It("clamps n to the population size", func() {
			opts := sampler.N(50)
			opts.Rand = seeded()
			sample, err := sampler.Sample(ids(10), opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(sample).To(HaveLen(10))
		})
	})

	Describe("sampling by p", func() {
		It("returns max(1, floor(len*p)) IDs for any valid p", func() {
			for _, tc := range []struct {
				population int
				p          float64
			}{
				{10, 0.5}, {10, 0.0}, {10, 1.0}, {7, 0.33}, {1, 0.99}, {100, 0.015},
			} {
				opts := sampler.P(tc.p)
				opts.Rand = seeded()
				sample, err := sampler.Sample(ids(tc.population), opts)
				Expect(err).NotTo(HaveOccurred())

				want := int(math.Floor(float64(tc.population) * tc.p))
				if want < 1 {
					want = 1
				}
				Expect(sample).To(HaveLen(want),
					"population=%d p=%g", tc.population, tc.p)
			}
		})
	})

	Describe("sample properties", func() {
		It("returns an empty sample for an empty population", func() {
			sample, err := sampler.Sample(nil, sampler.P(0.5))
			Expect(err).NotTo(HaveOccurred())
			Expect(sample).To(BeEmpty())
		})

		It("samples without replacement", func() {
			opts := sampler.N(10)
			opts.Rand = seeded()
			sample, err := sampler.Sample(ids(10), opts)
			Expect(err).NotTo(HaveOccurred())

			seen := map[string]struct{}{}
			for _, id := range sample {
				seen[id] = struct{}{}
			}
			Expect(seen).To(HaveLen(10))
		})

		It("only returns IDs from the population", func() {
			population := ids(20)
			opts := sampler.N(5)
			opts.Rand = seeded()
			sample, err := sampler.Sample(population, opts)
			Expect(err).NotTo(HaveOccurred())
			for _, id := range sample {
				Expect(population).To(ContainElement(id))
			}
		})

		It("does not modify the input slice", func() {
			population := ids(10)
			original := make([]string, len(population))
			copy(original, population)

			opts := sampler.N(5)
			opts.Rand = seeded()
			_, err := sampler.Sample(population, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(population).To(Equal(original))
		})

		It("is deterministic with a fixed source", func() {
			optsA := sampler.N(5)
			optsA.Rand = rand.New(rand.NewSource(7))
			a, err := sampler.Sample(ids(30), optsA)
			Expect(err).NotTo(HaveOccurred())

			optsB := sampler.N(5)
			optsB.Rand = rand.New(rand.NewSource(7))
			b, err := sampler.Sample(ids(30), optsB)
			Expect(err).NotTo(HaveOccurred())

			Expect(a).To(Equal(b))
		})
	})
})
