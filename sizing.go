package seenindex

import (
	"fmt"
	"math/bits"

	boom "github.com/tylertreat/BoomFilters"
)

// SuggestExponent returns the smallest exponent whose 2^n bits hold expected
// elements at the target false positive rate, together with the matching
// number of hash rounds.
func SuggestExponent(expected uint, fpRate float64) (int, uint32, error) {
	if expected == 0 || fpRate <= 0 || fpRate >= 1 {
		return 0, 0, fmt.Errorf("%w: need expected > 0 and 0 < fpRate < 1", ErrInvalidSize)
	}
	m := boom.OptimalM(expected, fpRate)
	k := boom.OptimalK(fpRate)
	if k == 0 {
		k = 1
	}

	// round m up to the next power of two.
	exponent := bits.Len(m - 1)
	if m <= 1 {
		exponent = 0
	}
	if exponent < MinExponent {
		exponent = MinExponent
	}
	if exponent > MaxExponent {
		return 0, 0, fmt.Errorf("%w: %d elements at rate %g need %d bits", ErrInvalidSize, expected, fpRate, m)
	}
	return exponent, uint32(k), nil
}
