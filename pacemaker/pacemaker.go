// Package pacemaker drives view progression within a single epoch.
//
// A view ends when a QC for it (or a later view) is processed. If no QC arrives before the
// local timeout fires, the pacemaker reports a local timeout and schedules another one for
// the same view with a longer duration. Timeouts never advance the view by themselves.
package pacemaker

import (
	"github.com/relab/bft"
	"github.com/relab/bft/logging"
)

// ProposerElection returns the leader of a view.
type ProposerElection interface {
	GetProposer(view bft.View) bft.PublicKey
}

// ViewChange is reported to the view listener whenever the pacemaker enters a new view.
type ViewChange struct {
	EpochView bft.EpochView
	HighQC    bft.HighQC
	Leader    bft.PublicKey
	// Genesis is true if the view was entered from the genesis QC of the epoch.
	Genesis bool
}

// Option configures a Pacemaker.
type Option func(*Pacemaker)

// WithViewListener sets the function called after a new view is entered.
func WithViewListener(f func(ViewChange)) Option {
	return func(p *Pacemaker) {
		p.onView = f
	}
}

// WithTimeoutListener sets the function called after a local timeout.
func WithTimeoutListener(f func(bft.EpochLocalTimeoutOccurrence)) Option {
	return func(p *Pacemaker) {
		p.onTimeout = f
	}
}

// WithCounters sets the counters that timeouts are recorded in.
func WithCounters(counters bft.Counters) Option {
	return func(p *Pacemaker) {
		p.counters = counters
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pacemaker) {
		p.logger = logger
	}
}

// Pacemaker tracks the current view of one epoch.
// It is not safe for concurrent use; it must only be called from the consensus task.
type Pacemaker struct {
	epoch     bft.Epoch
	genesisQC bft.QuorumCert
	election  ProposerElection
	scheduler bft.Scheduler
	duration  ViewDuration
	counters  bft.Counters
	logger    logging.Logger

	onView    func(ViewChange)
	onTimeout func(bft.EpochLocalTimeoutOccurrence)

	currentView bft.View
	highQC      bft.HighQC
	// the number of local timeouts fired in the current view
	attempt int
	pending bft.Cancellable

	started bool
	stopped bool
}

// New returns a pacemaker for the epoch. The pacemaker does nothing until Start is called.
func New(
	epoch bft.Epoch,
	genesisQC bft.QuorumCert,
	election ProposerElection,
	scheduler bft.Scheduler,
	duration ViewDuration,
	opts ...Option,
) *Pacemaker {
	p := &Pacemaker{
		epoch:       epoch,
		genesisQC:   genesisQC,
		election:    election,
		scheduler:   scheduler,
		duration:    duration,
		counters:    bft.NopCounters{},
		currentView: genesisQC.View(),
		highQC:      bft.HighQC{Highest: genesisQC},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.New("pacemaker")
	}
	return p
}

// Start processes the genesis QC, entering the first view of the epoch and scheduling its timeout.
func (p *Pacemaker) Start() {
	if p.started {
		return
	}
	p.started = true
	p.advance(bft.HighQC{Highest: p.genesisQC}, true)
}

// Stop cancels the outstanding timeout. A stopped pacemaker ignores all further input.
func (p *Pacemaker) Stop() {
	p.stopped = true
	p.cancelTimeout()
}

// ProcessQC advances to the view after the QC if the QC is for the current view or later.
// It returns true if the view changed.
func (p *Pacemaker) ProcessQC(highQC bft.HighQC) bool {
	if !p.started || p.stopped {
		return false
	}
	if highQC.View() < p.currentView {
		p.logger.Debugf("ProcessQC: ignoring QC for view %d in view %d", highQC.View(), p.currentView)
		return false
	}
	p.duration.ViewSucceeded()
	p.advance(highQC, false)
	return true
}

// ProcessLocalTimeout handles a fired timeout. Timeouts for another epoch, another view,
// or an earlier attempt in the current view are ignored.
func (p *Pacemaker) ProcessLocalTimeout(timeout bft.ScheduledLocalTimeout) {
	if !p.started || p.stopped || timeout.EpochView != p.EpochView() || timeout.Attempt != p.attempt {
		p.logger.Debugf("ProcessLocalTimeout: ignoring stale timeout %v (attempt %d) in %v", timeout.EpochView, timeout.Attempt, p.EpochView())
		return
	}

	view := p.currentView
	occurrence := bft.EpochLocalTimeoutOccurrence{
		Epoch: p.epoch,
		LocalTimeoutOccurrence: bft.LocalTimeoutOccurrence{
			View:       view,
			Leader:     p.election.GetProposer(view),
			NextLeader: p.election.GetProposer(view.Next()),
		},
	}
	p.counters.Increment(bft.CounterTimeoutsSent)

	p.duration.ViewTimeout() // increase the duration of the next timeout
	p.attempt++
	p.pending = nil
	p.scheduleTimeout()

	p.logger.Infof("OnLocalTimeout: %v", occurrence)
	if p.onTimeout != nil {
		p.onTimeout(occurrence)
	}
}

// Epoch returns the epoch of the pacemaker.
func (p *Pacemaker) Epoch() bft.Epoch {
	return p.epoch
}

// View returns the current view.
func (p *Pacemaker) View() bft.View {
	return p.currentView
}

// EpochView returns the current view qualified by the epoch.
func (p *Pacemaker) EpochView() bft.EpochView {
	return bft.EpochView{Epoch: p.epoch, View: p.currentView}
}

// HighQC returns the highest QC processed so far.
func (p *Pacemaker) HighQC() bft.HighQC {
	return p.highQC
}

// HighestCertifiedView returns the view of the highest QC processed so far.
func (p *Pacemaker) HighestCertifiedView() bft.View {
	return p.highQC.View()
}

func (p *Pacemaker) advance(highQC bft.HighQC, genesis bool) {
	p.cancelTimeout()
	p.highQC = highQC
	p.currentView = highQC.View().Next()
	p.attempt = 0

	p.duration.ViewStarted()
	p.scheduleTimeout()

	change := ViewChange{
		EpochView: p.EpochView(),
		HighQC:    highQC,
		Leader:    p.election.GetProposer(p.currentView),
		Genesis:   genesis,
	}
	p.logger.Debugf("advanced to view %v (leader: %v)", change.EpochView, change.Leader)
	if p.onView != nil {
		p.onView(change)
	}
}

func (p *Pacemaker) scheduleTimeout() {
	timeout := bft.ScheduledLocalTimeout{EpochView: p.EpochView(), Attempt: p.attempt}
	p.pending = p.scheduler.Schedule(timeout, p.duration.Duration())
}

func (p *Pacemaker) cancelTimeout() {
	if p.pending != nil {
		p.pending.Cancel()
		p.pending = nil
	}
}
