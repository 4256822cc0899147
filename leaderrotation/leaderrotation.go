// Package leaderrotation provides the proposer election algorithms.
//
// An Election maps each view of an epoch to the validator that proposes in it.
// The mapping is deterministic for a fixed validator set and election kind.
// Elections are not safe for concurrent use; each one is owned by the consensus task of its epoch.
package leaderrotation

import (
	"fmt"

	"github.com/relab/bft"
	"github.com/relab/bft/logging"
)

// Names of the election algorithms, as used in configuration files and on the command line.
const (
	NameRoundRobin       = "round-robin"
	NameWeightedRotating = "weighted-rotating"
)

// Kind selects the election algorithm.
type Kind uint8

const (
	// RoundRobin rotates through the validators in key order.
	RoundRobin Kind = iota
	// WeightedRotating rotates through the validators proportionally to their power.
	WeightedRotating
)

func (k Kind) String() string {
	switch k {
	case RoundRobin:
		return NameRoundRobin
	case WeightedRotating:
		return NameWeightedRotating
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind returns the kind with the given name.
// An empty name selects round-robin.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "", NameRoundRobin:
		return RoundRobin, nil
	case NameWeightedRotating:
		return WeightedRotating, nil
	default:
		return 0, fmt.Errorf("invalid leader-rotation algorithm: '%s'", name)
	}
}

type options struct {
	cacheSize   int
	periodBound uint64
	logger      logging.Logger
}

// Option configures an Election.
type Option func(*options)

// WithCacheSize sets the number of leaders kept by the weighted election.
func WithCacheSize(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// WithPeriodBound sets the longest rotation period the weighted election will verify
// and use as a replay baseline. If the period of the validator set exceeds the bound, no
// baseline exists and a query that misses the cache replays every view from genesis, so its
// cost grows linearly with the view number.
func WithPeriodBound(views uint64) Option {
	return func(o *options) {
		o.periodBound = views
	}
}

// WithLogger sets the logger used by the election.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Election is the proposer election of one epoch.
type Election struct {
	kind       Kind
	roundRobin *roundRobin
	weighted   *weightedRotating
}

// New returns an election of the given kind over the validator set.
func New(kind Kind, validators *bft.ValidatorSet, opts ...Option) (*Election, error) {
	o := options{
		cacheSize:   DefaultCacheSize,
		periodBound: DefaultPeriodBound,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New("leaderrotation")
	}

	switch kind {
	case RoundRobin:
		return &Election{kind: kind, roundRobin: newRoundRobin(validators)}, nil
	case WeightedRotating:
		if o.cacheSize < 1 {
			return nil, fmt.Errorf("invalid cache size %d", o.cacheSize)
		}
		return &Election{kind: kind, weighted: newWeightedRotating(validators, o)}, nil
	default:
		return nil, fmt.Errorf("unknown election kind %v", kind)
	}
}

// NewByName is like New, but looks up the kind by name.
func NewByName(name string, validators *bft.ValidatorSet, opts ...Option) (*Election, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return New(kind, validators, opts...)
}

// Kind returns the election algorithm in use.
func (e *Election) Kind() Kind {
	return e.kind
}

// GetProposer returns the key of the leader in the given view.
func (e *Election) GetProposer(view bft.View) bft.PublicKey {
	switch e.kind {
	case RoundRobin:
		return e.roundRobin.getProposer(view)
	case WeightedRotating:
		return e.weighted.getProposer(view)
	}
	panic("unreachable: unknown election kind " + e.kind.String())
}

// Period returns the number of views after which the leader schedule repeats,
// if the election knows it.
func (e *Election) Period() (uint64, bool) {
	if e.kind == RoundRobin {
		return uint64(len(e.roundRobin.leaders)), true
	}
	return e.weighted.Period()
}
