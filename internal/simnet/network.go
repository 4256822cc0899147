// Package simnet runs several nodes in one process over a simulated network.
//
// Each node has its own event loop and epoch manager. Messages are delivered through the
// receiver's event loop after a delay drawn from weighted latency classes. The leader of the
// next view aggregates votes into a QC, standing in for the vote aggregator of a real node,
// and the network emits the planned epoch changes when the QC of the configured view forms.
package simnet

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	wr "github.com/mroth/weightedrand"

	"github.com/relab/bft"
	"github.com/relab/bft/epochmanager"
	"github.com/relab/bft/eventloop"
	"github.com/relab/bft/logging"
	"github.com/relab/bft/pacemaker"
)

// FirstEpoch is the epoch that every simulation starts in.
const FirstEpoch bft.Epoch = 1

// DefaultQueueSize is the event queue capacity of each node.
const DefaultQueueSize = 1024

// LatencyClass is a message delay and the relative frequency of messages that experience it.
type LatencyClass struct {
	Delay  time.Duration
	Weight uint
}

// DefaultLatencies is mostly fast with an occasional slow message.
var DefaultLatencies = []LatencyClass{
	{Delay: time.Millisecond, Weight: 80},
	{Delay: 5 * time.Millisecond, Weight: 15},
	{Delay: 20 * time.Millisecond, Weight: 5},
}

// EpochPlan describes an epoch change.
type EpochPlan struct {
	// AfterView is the first view of the previous epoch whose QC triggers the change.
	AfterView  bft.View
	Validators *bft.ValidatorSet
	Config     bft.BFTConfiguration
}

// Config describes a simulation.
type Config struct {
	// Nodes are the keys of every node on the network, including nodes that are never validators.
	Nodes []bft.PublicKey
	// Validators is the validator set of the first epoch.
	Validators *bft.ValidatorSet
	// BFT is the configuration of the first epoch.
	BFT bft.BFTConfiguration
	// Changes are the epoch changes, in order. Change i starts epoch FirstEpoch+i+1.
	Changes   []EpochPlan
	Latencies []LatencyClass
	Seed      int64
	QueueSize uint
	// Counters returns the counters of a node. Defaults to bft.NopCounters.
	Counters func(node bft.PublicKey) bft.Counters
	Logger   logging.Logger
	// Options are passed to every epoch manager.
	Options []epochmanager.Option
}

// Stats summarizes a simulation.
type Stats struct {
	// Progress is the latest view entered by each node.
	Progress map[bft.PublicKey]bft.EpochView
	// Proposals counts the proposals broadcast per epoch and proposer.
	Proposals map[bft.Epoch]map[bft.PublicKey]int
	// Votes counts the votes sent per epoch and voter.
	Votes map[bft.Epoch]map[bft.PublicKey]int
	// QCs counts the QCs formed per epoch.
	QCs      map[bft.Epoch]int
	Timeouts int
}

type node struct {
	key     bft.PublicKey
	loop    *eventloop.EventLoop
	manager *epochmanager.EpochManager
}

type tallyKey struct {
	receiver bft.PublicKey
	ev       bft.EpochView
	vertex   bft.Hash
}

type tally struct {
	voters    map[bft.PublicKey]bool
	power     *big.Int
	certified bool
}

// Network is a simulated network of nodes.
type Network struct {
	cfg     Config
	nodes   map[bft.PublicKey]*node
	order   []bft.PublicKey
	latency *wr.Chooser
	logger  logging.Logger

	mut     sync.Mutex // protects the following:
	rnd     *rand.Rand
	tallies map[tallyKey]*tally
	changed map[bft.Epoch]bool
	stats   Stats
	target  bft.EpochView
	done    chan struct{}
	reached bool
}

// New creates the nodes of a simulation.
func New(cfg Config) (*Network, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Latencies) == 0 {
		cfg.Latencies = DefaultLatencies
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Counters == nil {
		cfg.Counters = func(bft.PublicKey) bft.Counters { return bft.NopCounters{} }
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("simnet")
	}

	choices := make([]wr.Choice, len(cfg.Latencies))
	for i, class := range cfg.Latencies {
		choices[i] = wr.Choice{Item: class.Delay, Weight: class.Weight}
	}
	chooser, err := wr.NewChooser(choices...)
	if err != nil {
		return nil, fmt.Errorf("invalid latency classes: %w", err)
	}

	n := &Network{
		cfg:     cfg,
		nodes:   make(map[bft.PublicKey]*node, len(cfg.Nodes)),
		order:   cfg.Nodes,
		latency: chooser,
		logger:  cfg.Logger,
		rnd:     rand.New(rand.NewSource(cfg.Seed)),
		tallies: make(map[tallyKey]*tally),
		changed: make(map[bft.Epoch]bool),
		stats: Stats{
			Progress:  make(map[bft.PublicKey]bft.EpochView),
			Proposals: make(map[bft.Epoch]map[bft.PublicKey]int),
			Votes:     make(map[bft.Epoch]map[bft.PublicKey]int),
			QCs:       make(map[bft.Epoch]int),
		},
		done: make(chan struct{}),
	}
	for _, key := range cfg.Nodes {
		n.nodes[key] = n.newNode(key)
	}
	return n, nil
}

func validate(cfg Config) error {
	if len(cfg.Nodes) == 0 {
		return errors.New("no nodes")
	}
	if cfg.Validators == nil {
		return bft.ErrEmptyValidatorSet
	}
	known := make(map[bft.PublicKey]bool, len(cfg.Nodes))
	for _, key := range cfg.Nodes {
		if known[key] {
			return fmt.Errorf("%w: %v", bft.ErrDuplicateValidator, key)
		}
		known[key] = true
	}
	sets := []*bft.ValidatorSet{cfg.Validators}
	for i, change := range cfg.Changes {
		if change.Validators == nil {
			return fmt.Errorf("epoch change %d: %w", i, bft.ErrEmptyValidatorSet)
		}
		sets = append(sets, change.Validators)
	}
	for _, set := range sets {
		for _, key := range set.Keys() {
			if !known[key] {
				return fmt.Errorf("validator %v is not a node on the network", key)
			}
		}
	}
	return nil
}

func (n *Network) newNode(key bft.PublicKey) *node {
	nd := &node{key: key}
	nd.loop = eventloop.New(n.cfg.QueueSize, n.cfg.Logger)
	s := &sender{network: n, self: key}
	opts := []epochmanager.Option{
		epochmanager.WithCounters(n.cfg.Counters(key)),
		epochmanager.WithLogger(n.cfg.Logger),
		epochmanager.WithVoteSubscriber(func(vote bft.Vote) { n.onVote(key, vote) }),
		epochmanager.WithViewSubscriber(func(vc pacemaker.ViewChange) { n.onView(key, vc) }),
		epochmanager.WithTimeoutSubscriber(func(t bft.EpochLocalTimeoutOccurrence) { n.onTimeout(key, t) }),
	}
	nd.manager = epochmanager.New(key, epochmanager.Dependencies{
		Commands:    commandGenerator{key},
		Signer:      keySigner{key},
		Broadcaster: s,
		VoteSender:  s,
		Scheduler:   nd.loop,
	}, append(opts, n.cfg.Options...)...)
	nd.loop.SetHandler(nd.manager)
	return nd
}

// GenesisQC returns the genesis QC of an epoch.
func GenesisQC(epoch bft.Epoch) bft.QuorumCert {
	return bft.NewQuorumCert(epoch, bft.GenesisView, sha256.Sum256(epoch.ToBytes()))
}

// FinalEpoch returns the epoch that the simulation ends in.
func (n *Network) FinalEpoch() bft.Epoch {
	return FirstEpoch + bft.Epoch(len(n.cfg.Changes))
}

func (n *Network) validators(epoch bft.Epoch) *bft.ValidatorSet {
	if epoch == FirstEpoch {
		return n.cfg.Validators
	}
	return n.cfg.Changes[epoch-FirstEpoch-1].Validators
}

// Run starts every node and returns when all validators of the final epoch have reached the target,
// or with an error when ctx is done first.
func (n *Network) Run(ctx context.Context, target bft.EpochView) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.mut.Lock()
	n.target = target
	n.mut.Unlock()

	start := bft.EpochChange{
		Epoch:      FirstEpoch,
		Validators: n.cfg.Validators,
		GenesisQC:  GenesisQC(FirstEpoch),
		Config:     n.cfg.BFT,
	}
	for _, key := range n.order {
		n.nodes[key].loop.AddEvent(start)
	}

	var wg sync.WaitGroup
	for _, key := range n.order {
		wg.Add(1)
		go func(nd *node) {
			defer wg.Done()
			nd.loop.Run(ctx)
		}(n.nodes[key])
	}

	var err error
	select {
	case <-n.done:
		n.logger.Infof("all validators reached %v", target)
	case <-ctx.Done():
		err = fmt.Errorf("simulation stopped before reaching %v: %w", target, ctx.Err())
	}
	cancel()
	wg.Wait()

	for _, key := range n.order {
		n.nodes[key].manager.Stop()
	}
	return err
}

// Stats returns a copy of the statistics collected so far.
func (n *Network) Stats() Stats {
	n.mut.Lock()
	defer n.mut.Unlock()

	stats := Stats{
		Progress:  make(map[bft.PublicKey]bft.EpochView, len(n.stats.Progress)),
		Proposals: make(map[bft.Epoch]map[bft.PublicKey]int, len(n.stats.Proposals)),
		Votes:     make(map[bft.Epoch]map[bft.PublicKey]int, len(n.stats.Votes)),
		QCs:       make(map[bft.Epoch]int, len(n.stats.QCs)),
		Timeouts:  n.stats.Timeouts,
	}
	for k, v := range n.stats.Progress {
		stats.Progress[k] = v
	}
	for epoch, m := range n.stats.Proposals {
		stats.Proposals[epoch] = copyCounts(m)
	}
	for epoch, m := range n.stats.Votes {
		stats.Votes[epoch] = copyCounts(m)
	}
	for k, v := range n.stats.QCs {
		stats.QCs[k] = v
	}
	return stats
}

func copyCounts(m map[bft.PublicKey]int) map[bft.PublicKey]int {
	c := make(map[bft.PublicKey]int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func increment(m map[bft.Epoch]map[bft.PublicKey]int, epoch bft.Epoch, key bft.PublicKey) {
	if m[epoch] == nil {
		m[epoch] = make(map[bft.PublicKey]int)
	}
	m[epoch][key]++
}

// deliverLocked schedules the event on the receiver's event loop after a random delay.
// It must be called with n.mut held.
func (n *Network) deliverLocked(to bft.PublicKey, event bft.Event) {
	nd, ok := n.nodes[to]
	if !ok {
		n.logger.Warnf("dropping %T for unknown node %v", event, to)
		return
	}
	delay := n.latency.PickSource(n.rnd).(time.Duration)
	nd.loop.Schedule(event, delay)
}

func (n *Network) onVote(receiver bft.PublicKey, vote bft.Vote) {
	n.mut.Lock()
	defer n.mut.Unlock()

	key := tallyKey{receiver: receiver, ev: vote.EpochView(), vertex: vote.Vertex}
	t, ok := n.tallies[key]
	if !ok {
		t = &tally{voters: make(map[bft.PublicKey]bool), power: new(big.Int)}
		n.tallies[key] = t
	}
	if t.certified || t.voters[vote.Voter] {
		return
	}
	set := n.validators(vote.Epoch)
	t.voters[vote.Voter] = true
	t.power.Add(t.power, set.PowerOf(vote.Voter))
	if t.power.Cmp(set.QuorumPower()) < 0 {
		return
	}
	t.certified = true
	n.stats.QCs[vote.Epoch]++
	for k := range n.tallies {
		if k.ev.Less(key.ev) {
			delete(n.tallies, k)
		}
	}

	qc := bft.ViewQuorumReached{Epoch: vote.Epoch, QC: bft.NewQuorumCert(vote.Epoch, vote.View, vote.Vertex)}
	n.logger.Debugf("%v formed %v", receiver, qc.QC)

	if change, ok := n.epochChangeLocked(vote.Epoch, vote.View); ok {
		// the change is queued everywhere before any node can propose in the new epoch
		for _, key := range n.order {
			n.nodes[key].loop.AddEvent(change)
		}
	}
	for _, key := range n.order {
		n.deliverLocked(key, qc)
	}
}

func (n *Network) epochChangeLocked(epoch bft.Epoch, view bft.View) (bft.EpochChange, bool) {
	next := epoch + 1
	if next > n.FinalEpoch() || n.changed[next] {
		return bft.EpochChange{}, false
	}
	plan := n.cfg.Changes[epoch-FirstEpoch]
	if view < plan.AfterView {
		return bft.EpochChange{}, false
	}
	n.changed[next] = true
	n.logger.Infof("epoch %d ends after view %d; starting epoch %d with %d validators", epoch, view, next, plan.Validators.Len())
	return bft.EpochChange{
		Epoch:      next,
		Validators: plan.Validators,
		GenesisQC:  GenesisQC(next),
		Config:     plan.Config,
	}, true
}

func (n *Network) onView(key bft.PublicKey, vc pacemaker.ViewChange) {
	n.mut.Lock()
	defer n.mut.Unlock()

	n.stats.Progress[key] = vc.EpochView
	if n.reached || n.target.Epoch == 0 {
		return
	}
	for _, validator := range n.validators(n.FinalEpoch()).Keys() {
		progress, ok := n.stats.Progress[validator]
		if !ok || progress.Less(n.target) {
			return
		}
	}
	n.reached = true
	close(n.done)
}

func (n *Network) onTimeout(key bft.PublicKey, timeout bft.EpochLocalTimeoutOccurrence) {
	n.mut.Lock()
	n.stats.Timeouts++
	n.mut.Unlock()
	n.logger.Debugf("%v: %v", key, timeout)
}

type sender struct {
	network *Network
	self    bft.PublicKey
}

func (s *sender) BroadcastProposal(proposal bft.Proposal, recipients []bft.PublicKey) {
	s.network.mut.Lock()
	defer s.network.mut.Unlock()

	increment(s.network.stats.Proposals, proposal.Epoch, s.self)
	for _, to := range recipients {
		s.network.deliverLocked(to, bft.ProposalReceived{Proposal: proposal})
	}
}

func (s *sender) SendVote(vote bft.Vote, leader bft.PublicKey) {
	s.network.mut.Lock()
	defer s.network.mut.Unlock()

	increment(s.network.stats.Votes, vote.Epoch, s.self)
	s.network.deliverLocked(leader, bft.VoteReceived{Vote: vote})
}

type commandGenerator struct {
	self bft.PublicKey
}

func (g commandGenerator) GenerateNextCommand(view bft.View, _ []bft.Hash) bft.Command {
	return bft.Command(fmt.Sprintf("%v/%d", g.self, view))
}

// keySigner produces deterministic signatures. They are never verified in the simulation,
// so no pairing-based scheme is needed; real signing belongs to the HashSigner of the host.
type keySigner struct {
	key bft.PublicKey
}

func (s keySigner) Sign(hash bft.Hash) ([]byte, error) {
	sig := sha256.Sum256(append(s.key.Bytes(), hash[:]...))
	return sig[:], nil
}
