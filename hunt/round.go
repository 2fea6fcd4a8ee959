package hunt

import (
	"math/bits"
	"slices"
)

// Split cuts pool into two contiguous halves. On odd sizes the first half gets
// the extra candidate. The halves never share backing storage with pool.
func Split(pool []Candidate) (first, second []Candidate) {
	mid := (len(pool) + 1) / 2
	return slices.Clone(pool[:mid]), slices.Clone(pool[mid:])
}

// EstimateRounds returns ceil(log2(n)), the number of bisection rounds needed
// to isolate one of n candidates in the worst case. Pools of 0 or 1 need none.
func EstimateRounds(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}
