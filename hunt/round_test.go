package hunt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ExhaustiveAndDisjoint(t *testing.T) {
	for n := 0; n <= 17; n++ {
		pool := testMembers(n)
		first, second := Split(pool)

		require.Len(t, first, (n+1)/2, "n=%d", n)
		require.Equal(t, n, len(first)+len(second), "n=%d", n)

		seen := map[string]int{}
		for _, c := range append(append([]Candidate{}, first...), second...) {
			seen[c.ID]++
		}
		for _, c := range pool {
			assert.Equal(t, 1, seen[c.ID], "n=%d id=%s", n, c.ID)
		}
		assert.Equal(t, pool, append(first, second...))
	}
}

func TestSplit_DoesNotAliasPool(t *testing.T) {
	pool := testMembers(4)
	first, second := Split(pool)
	first[0].ID = "changed"
	_ = append(first, Candidate{ID: "extra"})

	assert.Equal(t, "U1", pool[0].ID)
	assert.Equal(t, "U3", second[0].ID)
}

func TestEstimateRounds(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4, 17: 5, 1000: 10}
	for n, want := range cases {
		assert.Equal(t, want, EstimateRounds(n), fmt.Sprintf("n=%d", n))
	}
}
