// Package epochmanager routes consensus events to the pacemaker and proposer election of the active epoch.
//
// The EpochManager owns exactly one epoch context at a time. An EpochChange for a later epoch
// stops the old pacemaker and replaces the context. Events tagged with any other epoch are
// dropped and counted, never surfaced as errors.
package epochmanager

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/relab/bft"
	"github.com/relab/bft/leaderrotation"
	"github.com/relab/bft/logging"
	"github.com/relab/bft/pacemaker"
)

// Defaults used when neither the EpochChange nor the options configure a setting.
const (
	DefaultViewTimeout = time.Second
	DefaultTimeoutRate = 2.0
	DefaultMaxExponent = 6
)

// Dependencies are the collaborators supplied by the rest of the node.
type Dependencies struct {
	Commands    bft.NextCommandGenerator
	Signer      bft.HashSigner
	Broadcaster bft.ProposalBroadcaster
	VoteSender  bft.VoteSender
	Scheduler   bft.Scheduler
}

// Option configures an EpochManager.
type Option func(*EpochManager)

// WithCounters sets the counters that consensus actions are recorded in.
func WithCounters(counters bft.Counters) Option {
	return func(em *EpochManager) {
		em.counters = counters
	}
}

// WithLogger sets the logger used by the manager and the components it creates.
func WithLogger(logger logging.Logger) Option {
	return func(em *EpochManager) {
		em.logger = logger
	}
}

// WithDefaults sets the configuration used for fields that an EpochChange leaves unset.
func WithDefaults(cfg bft.BFTConfiguration) Option {
	return func(em *EpochManager) {
		em.defaults = cfg
	}
}

// WithBackoff sets the growth rate and maximum exponent of the local timeout.
func WithBackoff(rate float64, maxExponent int) Option {
	return func(em *EpochManager) {
		em.timeoutRate = rate
		em.maxExponent = maxExponent
	}
}

// WithElectionOptions sets options for every election the manager creates.
func WithElectionOptions(opts ...leaderrotation.Option) Option {
	return func(em *EpochManager) {
		em.electionOpts = opts
	}
}

// WithStaleLogLimit limits how often dropped stale events are logged.
func WithStaleLogLimit(limit rate.Limit, burst int) Option {
	return func(em *EpochManager) {
		em.staleLog = rate.NewLimiter(limit, burst)
	}
}

// WithTimeoutSubscriber adds a function that is called for every local timeout of the active epoch.
func WithTimeoutSubscriber(f func(bft.EpochLocalTimeoutOccurrence)) Option {
	return func(em *EpochManager) {
		em.timeoutSubscribers = append(em.timeoutSubscribers, f)
	}
}

// WithVoteSubscriber adds a function that is called for every vote received in the active epoch.
func WithVoteSubscriber(f func(bft.Vote)) Option {
	return func(em *EpochManager) {
		em.voteSubscribers = append(em.voteSubscribers, f)
	}
}

// WithViewSubscriber adds a function that is called whenever the active pacemaker enters a view.
func WithViewSubscriber(f func(pacemaker.ViewChange)) Option {
	return func(em *EpochManager) {
		em.viewSubscribers = append(em.viewSubscribers, f)
	}
}

type epochContext struct {
	epoch      bft.Epoch
	validators *bft.ValidatorSet
	election   *leaderrotation.Election
	pacemaker  *pacemaker.Pacemaker
	member     bool
	// the highest view this node voted in; votes are only cast in views after it
	lastVoted bft.View
}

// EpochManager is the single entry point for consensus events of a node.
// It is not safe for concurrent use; HandleEvent must only be called from the event loop.
type EpochManager struct {
	self bft.PublicKey
	deps Dependencies

	counters     bft.Counters
	logger       logging.Logger
	defaults     bft.BFTConfiguration
	timeoutRate  float64
	maxExponent  int
	electionOpts []leaderrotation.Option
	staleLog     *rate.Limiter

	timeoutSubscribers []func(bft.EpochLocalTimeoutOccurrence)
	voteSubscribers    []func(bft.Vote)
	viewSubscribers    []func(pacemaker.ViewChange)

	active *epochContext
}

// New returns an uninitialized EpochManager for the node with the given key.
// It ignores everything except an EpochChange until the first epoch starts.
func New(self bft.PublicKey, deps Dependencies, opts ...Option) *EpochManager {
	em := &EpochManager{
		self:        self,
		deps:        deps,
		counters:    bft.NopCounters{},
		defaults:    bft.BFTConfiguration{LeaderRotation: leaderrotation.NameRoundRobin, ViewTimeout: DefaultViewTimeout},
		timeoutRate: DefaultTimeoutRate,
		maxExponent: DefaultMaxExponent,
		staleLog:    rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(em)
	}
	if em.logger == nil {
		em.logger = logging.New("epochmanager")
	}
	return em
}

// HandleEvent processes an event.
func (em *EpochManager) HandleEvent(event bft.Event) {
	switch e := event.(type) {
	case bft.EpochChange:
		em.processEpochChange(e)
	case bft.ViewQuorumReached:
		if em.isCurrent(e.Epoch, e) {
			em.active.pacemaker.ProcessQC(bft.HighQC{Highest: e.QC})
		}
	case bft.ProposalReceived:
		if em.isCurrent(e.Proposal.Epoch, e) {
			em.processProposal(e.Proposal)
		}
	case bft.VoteReceived:
		if em.isCurrent(e.Vote.Epoch, e) {
			em.processVote(e.Vote)
		}
	case bft.ScheduledLocalTimeout:
		if em.isCurrent(e.EpochView.Epoch, e) {
			em.active.pacemaker.ProcessLocalTimeout(e)
		}
	case bft.EpochLocalTimeoutOccurrence:
		if em.isCurrent(e.Epoch, e) {
			em.publishTimeout(e)
		}
	default:
		em.logger.Warnf("unknown event type: %T", event)
	}
}

// EpochView returns the active epoch and view. The second result is false before the first epoch.
func (em *EpochManager) EpochView() (bft.EpochView, bool) {
	if em.active == nil {
		return bft.EpochView{}, false
	}
	return em.active.pacemaker.EpochView(), true
}

// IsMember reports whether this node is a validator of the active epoch.
func (em *EpochManager) IsMember() bool {
	return em.active != nil && em.active.member
}

// Validators returns the validator set of the active epoch, or nil.
func (em *EpochManager) Validators() *bft.ValidatorSet {
	if em.active == nil {
		return nil
	}
	return em.active.validators
}

// Proposer returns the leader of a view in the active epoch.
func (em *EpochManager) Proposer(view bft.View) (bft.PublicKey, bool) {
	if em.active == nil {
		return "", false
	}
	return em.active.election.GetProposer(view), true
}

// Stop stops the active pacemaker.
func (em *EpochManager) Stop() {
	if em.active != nil {
		em.active.pacemaker.Stop()
	}
}

func (em *EpochManager) isCurrent(epoch bft.Epoch, event bft.Event) bool {
	if em.active != nil && em.active.epoch == epoch {
		return true
	}
	em.dropStale(event)
	return false
}

func (em *EpochManager) dropStale(event bft.Event) {
	em.counters.Increment(bft.CounterStaleEventsDropped)
	if em.staleLog.Allow() {
		current, _ := em.EpochView()
		em.logger.Debugf("dropping stale event %T in epoch %d: %v", event, current.Epoch, event)
	}
}

func (em *EpochManager) processEpochChange(ec bft.EpochChange) {
	if em.active != nil && ec.Epoch <= em.active.epoch {
		em.dropStale(ec)
		return
	}
	if ec.Validators == nil || ec.Validators.Len() == 0 {
		em.logger.Errorf("cannot start epoch %d: %v", ec.Epoch, bft.ErrEmptyValidatorSet)
		return
	}

	cfg := em.resolve(ec.Config)
	election, err := leaderrotation.NewByName(cfg.LeaderRotation, ec.Validators, em.electionOptions()...)
	if err != nil {
		em.logger.Errorf("cannot start epoch %d: %v", ec.Epoch, err)
		return
	}
	duration, err := pacemaker.NewExponentialViewDuration(cfg.ViewTimeout, em.timeoutRate, em.maxExponent)
	if err != nil {
		em.logger.Errorf("cannot start epoch %d: %v", ec.Epoch, err)
		return
	}

	if em.active != nil {
		em.active.pacemaker.Stop()
	}

	ctx := &epochContext{
		epoch:      ec.Epoch,
		validators: ec.Validators,
		election:   election,
		member:     ec.Validators.Contains(em.self),
		lastVoted:  ec.GenesisQC.View(),
	}
	ctx.pacemaker = pacemaker.New(ec.Epoch, ec.GenesisQC, election, em.deps.Scheduler, duration,
		pacemaker.WithCounters(em.counters),
		pacemaker.WithLogger(em.logger),
		pacemaker.WithViewListener(func(vc pacemaker.ViewChange) { em.onViewChange(ctx, vc) }),
		pacemaker.WithTimeoutListener(em.publishTimeout),
	)
	em.active = ctx
	em.counters.Increment(bft.CounterEpochChanges)

	if ctx.member {
		em.logger.Infof("entering epoch %d with %d validators (%s)", ec.Epoch, ec.Validators.Len(), election.Kind())
	} else {
		em.logger.Infof("entering epoch %d as an observer; this node is not a validator", ec.Epoch)
	}
	ctx.pacemaker.Start()
}

func (em *EpochManager) resolve(cfg bft.BFTConfiguration) bft.BFTConfiguration {
	if cfg.LeaderRotation == "" {
		cfg.LeaderRotation = em.defaults.LeaderRotation
	}
	if cfg.ViewTimeout == 0 {
		cfg.ViewTimeout = em.defaults.ViewTimeout
	}
	return cfg
}

func (em *EpochManager) electionOptions() []leaderrotation.Option {
	opts := make([]leaderrotation.Option, 0, len(em.electionOpts)+1)
	opts = append(opts, leaderrotation.WithLogger(em.logger))
	return append(opts, em.electionOpts...)
}

func (em *EpochManager) onViewChange(ctx *epochContext, vc pacemaker.ViewChange) {
	for _, f := range em.viewSubscribers {
		f(vc)
	}
	if !ctx.member || vc.Leader != em.self {
		return
	}

	proposal := bft.Proposal{
		Epoch:    ctx.epoch,
		View:     vc.EpochView.View,
		Proposer: em.self,
		HighQC:   vc.HighQC,
		Command:  em.deps.Commands.GenerateNextCommand(vc.EpochView.View, []bft.Hash{vc.HighQC.Highest.Vertex()}),
	}
	sig, err := em.deps.Signer.Sign(proposal.Hash())
	if err != nil {
		em.logger.Warnf("failed to sign proposal for view %v: %v", vc.EpochView, err)
		return
	}
	proposal.Signature = sig

	em.logger.Debugf("proposing in view %v", vc.EpochView)
	em.deps.Broadcaster.BroadcastProposal(proposal, ctx.validators.Keys())
	em.counters.Increment(bft.CounterProposalsSent)
}

func (em *EpochManager) processProposal(proposal bft.Proposal) {
	ctx := em.active

	// the proposal's QC may let this node catch up to the proposal's view
	if proposal.HighQC.Highest.Epoch() == ctx.epoch {
		ctx.pacemaker.ProcessQC(proposal.HighQC)
	}

	if current := ctx.pacemaker.View(); proposal.View != current {
		em.logger.Debugf("ignoring proposal for view %d in view %d", proposal.View, current)
		return
	}
	if leader := ctx.election.GetProposer(proposal.View); proposal.Proposer != leader {
		em.logger.Warnf("dropping proposal for view %d from %v: the leader is %v", proposal.View, proposal.Proposer, leader)
		return
	}
	if !ctx.member || proposal.View <= ctx.lastVoted {
		return
	}

	vote := bft.Vote{
		Epoch:  ctx.epoch,
		View:   proposal.View,
		Voter:  em.self,
		Vertex: proposal.Hash(),
	}
	sig, err := em.deps.Signer.Sign(vote.Hash())
	if err != nil {
		em.logger.Warnf("failed to sign vote for view %d: %v", proposal.View, err)
		return
	}
	vote.Signature = sig
	ctx.lastVoted = proposal.View

	em.deps.VoteSender.SendVote(vote, ctx.election.GetProposer(proposal.View.Next()))
	em.counters.Increment(bft.CounterVotesSent)
}

func (em *EpochManager) processVote(vote bft.Vote) {
	if !em.active.validators.Contains(vote.Voter) {
		em.logger.Debugf("dropping vote from %v: not a validator of epoch %d", vote.Voter, vote.Epoch)
		return
	}
	for _, f := range em.voteSubscribers {
		f(vote)
	}
}

func (em *EpochManager) publishTimeout(timeout bft.EpochLocalTimeoutOccurrence) {
	for _, f := range em.timeoutSubscribers {
		f(timeout)
	}
}
