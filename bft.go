// Package bft defines the core types and interfaces of the consensus liveness subsystem:
// the pacemaker, proposer election and the epoch manager.
//
// The following diagram illustrates how events flow through a node:
//
//	                      EpochChange
//	                           |
//	                           v
//	  ViewQuorumReached  +--------------+   GetProposer()   +------------------+
//	  ProposalReceived-->| EpochManager |------------------>| ProposerElection |
//	  VoteReceived       |              |                   +------------------+
//	                     |              |   ProcessQC()     +------------------+
//	                     |              |------------------>|    Pacemaker     |---Schedule()--+
//	                     +--------------+                   +------------------+               |
//	                        |        |                                 ^                      v
//	        BroadcastProposal()   SendVote()              ScheduledLocalTimeout         +-----------+
//	                        v        v                                 +----------------| Scheduler |
//	                  +------------------------+                                        +-----------+
//	                  | ProposalBroadcaster /  |
//	                  |      VoteSender        |
//	                  +------------------------+
//
// All state is owned by a single event loop per node. Events tagged with an epoch other
// than the active one are dropped before they reach the pacemaker.
package bft

import "time"

//go:generate mockgen -destination=internal/mocks/cmdgen_mock.go -package=mocks . NextCommandGenerator

// NextCommandGenerator is supplied by the mempool and returns the command to propose next.
type NextCommandGenerator interface {
	// GenerateNextCommand returns the command for the given view, excluding the prepared vertices.
	GenerateNextCommand(view View, prepared []Hash) Command
}

//go:generate mockgen -destination=internal/mocks/broadcaster_mock.go -package=mocks . ProposalBroadcaster

// ProposalBroadcaster sends proposals to the validators of an epoch.
type ProposalBroadcaster interface {
	// BroadcastProposal sends the proposal to all recipients.
	BroadcastProposal(proposal Proposal, recipients []PublicKey)
}

//go:generate mockgen -destination=internal/mocks/votesender_mock.go -package=mocks . VoteSender

// VoteSender delivers votes to the leader of the next view.
type VoteSender interface {
	// SendVote sends the vote to the given leader.
	SendVote(vote Vote, leader PublicKey)
}

//go:generate mockgen -destination=internal/mocks/signer_mock.go -package=mocks . HashSigner

// HashSigner signs hashes on behalf of the local validator.
type HashSigner interface {
	// Sign signs a hash.
	Sign(hash Hash) (sig []byte, err error)
}

// Cancellable is returned by a Scheduler and cancels a scheduled event.
type Cancellable interface {
	// Cancel prevents the event from being delivered if it has not fired yet.
	Cancel()
}

//go:generate mockgen -destination=internal/mocks/scheduler_mock.go -package=mocks . Scheduler

// Scheduler delivers an event to the consensus task after a delay.
// Schedule must never block.
type Scheduler interface {
	Schedule(event Event, delay time.Duration) Cancellable
}

// Counter names a monotonic counter incremented as a side effect of consensus actions.
type Counter string

const (
	CounterTimeoutsSent       Counter = "pacemaker_timeouts_sent"
	CounterProposalsSent      Counter = "proposals_sent"
	CounterVotesSent          Counter = "votes_sent"
	CounterStaleEventsDropped Counter = "stale_epoch_events_dropped"
	CounterEpochChanges       Counter = "epoch_changes"
)

//go:generate mockgen -destination=internal/mocks/counters_mock.go -package=mocks . Counters

// Counters records observability counters.
type Counters interface {
	Increment(counter Counter)
}

// NopCounters discards all counter updates.
type NopCounters struct{}

// Increment does nothing.
func (NopCounters) Increment(Counter) {}
