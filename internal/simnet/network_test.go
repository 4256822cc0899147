package simnet

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relab/bft"
	"github.com/relab/bft/internal/testutil"
	"github.com/relab/bft/leaderrotation"
	"github.com/relab/bft/logging"
)

type counts map[bft.Counter]int

func (c counts) Increment(counter bft.Counter) {
	c[counter]++
}

func keys(ids ...uint8) []bft.PublicKey {
	out := make([]bft.PublicKey, len(ids))
	for i, id := range ids {
		out[i] = testutil.Key(id)
	}
	return out
}

func set(t *testing.T, powers map[uint8]int64) *bft.ValidatorSet {
	t.Helper()
	validators := make([]bft.Validator, 0, len(powers))
	for id, power := range powers {
		validators = append(validators, bft.MustNewValidator(testutil.Key(id), power))
	}
	s, err := bft.NewValidatorSet(validators...)
	require.NoError(t, err)
	return s
}

func TestLivenessAcrossEpochChanges(t *testing.T) {
	nodeCounters := make(map[bft.PublicKey]counts)
	network, err := New(Config{
		Nodes:      keys(1, 2, 3, 4, 5),
		Validators: set(t, map[uint8]int64{1: 1, 2: 1, 3: 1, 4: 1}),
		Changes: []EpochPlan{
			{
				// node 1 leaves
				AfterView:  5,
				Validators: set(t, map[uint8]int64{2: 1, 3: 2, 4: 3, 5: 4}),
				Config:     bft.BFTConfiguration{LeaderRotation: leaderrotation.NameWeightedRotating},
			},
			{
				AfterView:  5,
				Validators: set(t, map[uint8]int64{2: 5, 3: 5, 4: 5, 5: 5}),
			},
		},
		Seed: 1,
		Counters: func(key bft.PublicKey) bft.Counters {
			c := counts{}
			nodeCounters[key] = c
			return c
		},
		Logger: logging.NewWithDest(io.Discard, "simnet"),
	})
	require.NoError(t, err)
	require.Equal(t, bft.Epoch(3), network.FinalEpoch())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	target := bft.EpochView{Epoch: 3, View: 6}
	require.NoError(t, network.Run(ctx, target))

	stats := network.Stats()
	for _, key := range keys(2, 3, 4, 5) {
		require.False(t, stats.Progress[key].Less(target), "node %v only reached %v", key, stats.Progress[key])
		require.Equal(t, 3, nodeCounters[key][bft.CounterEpochChanges])
	}
	for epoch := bft.Epoch(1); epoch <= 3; epoch++ {
		require.GreaterOrEqual(t, stats.QCs[epoch], 5, "epoch %d", epoch)
	}

	// node 1 observes epochs 2 and 3 without proposing or voting
	one := testutil.Key(1)
	require.Positive(t, stats.Votes[1][one])
	for _, epoch := range []bft.Epoch{2, 3} {
		require.Zero(t, stats.Proposals[epoch][one], "epoch %d", epoch)
		require.Zero(t, stats.Votes[epoch][one], "epoch %d", epoch)
	}
	require.Equal(t, 3, nodeCounters[one][bft.CounterEpochChanges])

	// node 5 joins in epoch 2
	require.Zero(t, stats.Votes[1][testutil.Key(5)])
	require.Positive(t, stats.Votes[2][testutil.Key(5)])
}

func TestRunStopsWithContext(t *testing.T) {
	// no message arrives before the deadline
	network, err := New(Config{
		Nodes:      keys(1, 2, 3, 4),
		Validators: set(t, map[uint8]int64{1: 1, 2: 1, 3: 1, 4: 1}),
		Latencies:  []LatencyClass{{Delay: time.Hour, Weight: 1}},
		Logger:     logging.NewWithDest(io.Discard, "simnet"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = network.Run(ctx, bft.EpochView{Epoch: 1, View: 3})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	validators := set(t, map[uint8]int64{1: 1, 2: 1})
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no nodes", Config{Validators: validators}},
		{"no validators", Config{Nodes: keys(1, 2)}},
		{"duplicate node", Config{Nodes: keys(1, 2, 2), Validators: validators}},
		{"validator is not a node", Config{Nodes: keys(1), Validators: validators}},
		{"later validator is not a node", Config{
			Nodes:      keys(1, 2),
			Validators: validators,
			Changes:    []EpochPlan{{Validators: set(t, map[uint8]int64{3: 1})}},
		}},
		{"zero latency weights", Config{
			Nodes:      keys(1, 2),
			Validators: validators,
			Latencies:  []LatencyClass{{Delay: time.Millisecond}},
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.cfg.Logger = logging.NewWithDest(io.Discard, "simnet")
			_, err := New(test.cfg)
			require.Error(t, err)
		})
	}
}
