package leaderrotation_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/relab/bft"
	"github.com/relab/bft/leaderrotation"
	"github.com/stretchr/testify/require"
)

func newWeighted(t *testing.T, set *bft.ValidatorSet, opts ...leaderrotation.Option) *leaderrotation.Election {
	t.Helper()
	e, err := leaderrotation.New(leaderrotation.WeightedRotating, set, opts...)
	require.NoError(t, err)
	return e
}

// sequential returns the leaders of views [0, n) computed one view at a time.
func sequential(t *testing.T, set *bft.ValidatorSet, n int) []bft.PublicKey {
	t.Helper()
	e := newWeighted(t, set)
	leaders := make([]bft.PublicKey, n)
	for v := range leaders {
		leaders[v] = e.GetProposer(bft.View(v))
	}
	return leaders
}

func TestWeightedFairness(t *testing.T) {
	set := validatorSet(t, 1, 2, 3)
	e := newWeighted(t, set)

	period, ok := e.Period()
	require.True(t, ok)
	require.EqualValues(t, 6, period)

	counts := make(map[bft.PublicKey]int)
	for v := bft.View(0); v < 6; v++ {
		counts[e.GetProposer(v)]++
	}
	require.Equal(t, 1, counts[key(1)])
	require.Equal(t, 2, counts[key(2)])
	require.Equal(t, 3, counts[key(3)])

	want := []bft.PublicKey{key(1), key(3), key(2), key(3), key(2), key(3)}
	for cycle := 0; cycle < 4; cycle++ {
		for i, leader := range want {
			view := bft.View(cycle*6 + i)
			require.Equal(t, leader, e.GetProposer(view), "view %d", view)
		}
	}
}

func TestWeightedEqualPowerRotatesByDescendingKey(t *testing.T) {
	set := validatorSet(t, 1, 1, 1, 1)
	e := newWeighted(t, set)
	want := []bft.PublicKey{key(4), key(3), key(2), key(1)}
	for v := bft.View(0); v < 16; v++ {
		require.Equal(t, want[v%4], e.GetProposer(v), "view %d", v)
	}
	period, ok := e.Period()
	require.True(t, ok)
	require.EqualValues(t, 4, period)
}

func TestWeightedTieBreakFavorsGreaterKey(t *testing.T) {
	low := bft.PublicKey([]byte{0x02, 0x10, 0xff})
	high := bft.PublicKey([]byte{0x02, 0x11, 0x00})
	set, err := bft.NewValidatorSet(
		bft.MustNewValidator(low, 7),
		bft.MustNewValidator(high, 7),
	)
	require.NoError(t, err)

	e := newWeighted(t, set)
	// both validators start with identical credit
	require.Equal(t, high, e.GetProposer(0))
	require.Equal(t, low, e.GetProposer(1))
	require.Equal(t, high, e.GetProposer(2))
}

func TestWeightedColdQueriesMatchSequential(t *testing.T) {
	tests := []struct {
		name   string
		powers []int64
	}{
		{"1-2-3", []int64{1, 2, 3}},
		{"equal", []int64{1, 1, 1, 1}},
		{"2-3", []int64{2, 3}},
		{"3-1", []int64{3, 1}},
		{"1-3", []int64{1, 3}},
		{"primes", []int64{5, 7, 11}},
		{"unbounded-period", []int64{1, 1000}},
		{"large-gcd", []int64{100, 200, 300, 400}},
	}
	const n = 300
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			set := validatorSet(t, test.powers...)
			want := sequential(t, set, n)

			backwards := newWeighted(t, set)
			for v := n - 1; v >= 0; v-- {
				require.Equal(t, want[v], backwards.GetProposer(bft.View(v)), "backwards view %d", v)
			}

			rnd := rand.New(rand.NewSource(int64(len(test.powers))))
			random := newWeighted(t, set, leaderrotation.WithCacheSize(3))
			for i := 0; i < 200; i++ {
				v := rnd.Intn(n)
				require.Equal(t, want[v], random.GetProposer(bft.View(v)), "random view %d", v)
			}

			tiny := newWeighted(t, set, leaderrotation.WithCacheSize(1))
			for _, v := range []int{n - 1, 0, n / 2, n/2 - 1, 17, n - 2} {
				require.Equal(t, want[v], tiny.GetProposer(bft.View(v)), "tiny cache view %d", v)
			}
		})
	}
}

func TestWeightedPeriodVerification(t *testing.T) {
	tests := []struct {
		name       string
		validators []bft.Validator
		wantPeriod uint64
		wantOK     bool
	}{
		{
			// the heavier validator wins the tie in view 3, and the rotation returns to genesis after 4 views
			name:       "heavy validator has greater key",
			validators: []bft.Validator{bft.MustNewValidator(key(1), 1), bft.MustNewValidator(key(2), 3)},
			wantPeriod: 12,
			wantOK:     true,
		},
		{
			// the lighter validator wins the tie in view 3, and the genesis credits never recur
			name:       "light validator has greater key",
			validators: []bft.Validator{bft.MustNewValidator(key(1), 3), bft.MustNewValidator(key(2), 1)},
			wantOK:     false,
		},
		{
			name:       "period above bound",
			validators: []bft.Validator{bft.MustNewValidator(key(1), 1), bft.MustNewValidator(key(2), 1000)},
			wantOK:     false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			set, err := bft.NewValidatorSet(test.validators...)
			require.NoError(t, err)
			period, ok := newWeighted(t, set).Period()
			require.Equal(t, test.wantOK, ok)
			if ok {
				require.Equal(t, test.wantPeriod, period)
			}
		})
	}
}

func TestWeightedFarFutureViewUsesBaseline(t *testing.T) {
	set := validatorSet(t, 1, 2, 3)
	e := newWeighted(t, set)
	want := []bft.PublicKey{key(1), key(3), key(2), key(3), key(2), key(3)}

	// 6 divides 6e15, so these views are resolved from the baseline instead of a replay from genesis
	far := bft.View(6_000_000_000_000_000)
	for i := range want {
		require.Equal(t, want[i], e.GetProposer(far+bft.View(i)))
	}
	require.Equal(t, want[0], e.GetProposer(bft.View(0)))
}

func BenchmarkWeightedSequential(b *testing.B) {
	for _, n := range []int{4, 16, 64} {
		b.Run(fmt.Sprintf("validators=%d", n), func(b *testing.B) {
			powers := make([]int64, n)
			for i := range powers {
				powers[i] = int64(i + 1)
			}
			e, err := leaderrotation.New(leaderrotation.WeightedRotating, validatorSet(b, powers...))
			if err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				e.GetProposer(bft.View(i))
			}
		})
	}
}
