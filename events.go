package bft

import (
	"fmt"
	"time"
)

// Event is a message processed by a node's consensus task.
// The set of events is closed; the task dispatches them with a type switch.
type Event interface {
	isEvent()
}

// BFTConfiguration holds the per-epoch consensus settings carried by an epoch change.
// Zero values mean that the node's own configuration should be used.
type BFTConfiguration struct {
	// LeaderRotation is the name of the proposer election algorithm, e.g. "round-robin".
	LeaderRotation string
	// ViewTimeout is the duration of the first local timeout of a view.
	ViewTimeout time.Duration
}

// EpochChange is emitted by the ledger when a commit changes the validator set.
type EpochChange struct {
	Epoch      Epoch
	Validators *ValidatorSet
	GenesisQC  QuorumCert
	Config     BFTConfiguration
}

func (ec EpochChange) String() string {
	return fmt.Sprintf("EpochChange{epoch: %d, validators: %d, genesis: %v}", ec.Epoch, ec.Validators.Len(), ec.GenesisQC)
}

// ViewQuorumReached is emitted when votes for a view have been aggregated into a QC.
type ViewQuorumReached struct {
	Epoch Epoch
	QC    QuorumCert
}

// ProposalReceived is emitted when a proposal arrives from the network.
type ProposalReceived struct {
	Proposal Proposal
}

// VoteReceived is emitted when a vote arrives from the network.
type VoteReceived struct {
	Vote Vote
}

// ScheduledLocalTimeout is delivered by the scheduler when a view's timeout expires.
type ScheduledLocalTimeout struct {
	EpochView EpochView
	// Attempt counts the timeouts already fired in this view.
	Attempt int
}

// LocalTimeoutOccurrence describes a view that timed out without a QC.
type LocalTimeoutOccurrence struct {
	View       View
	Leader     PublicKey
	NextLeader PublicKey
}

// EpochLocalTimeoutOccurrence is a LocalTimeoutOccurrence tagged with its epoch.
type EpochLocalTimeoutOccurrence struct {
	Epoch Epoch
	LocalTimeoutOccurrence
}

// EpochView returns the epoch and view that timed out.
func (t EpochLocalTimeoutOccurrence) EpochView() EpochView {
	return EpochView{Epoch: t.Epoch, View: t.View}
}

func (t EpochLocalTimeoutOccurrence) String() string {
	return fmt.Sprintf("LocalTimeout{epoch: %d, view: %d, leader: %v, next: %v}", t.Epoch, t.View, t.Leader, t.NextLeader)
}

func (EpochChange) isEvent()                 {}
func (ViewQuorumReached) isEvent()           {}
func (ProposalReceived) isEvent()            {}
func (VoteReceived) isEvent()                {}
func (ScheduledLocalTimeout) isEvent()       {}
func (EpochLocalTimeoutOccurrence) isEvent() {}
