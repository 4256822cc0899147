package testutil

import (
	"github.com/relab/bft"
)

// SentProposal is a proposal recorded by a RecordingSender.
type SentProposal struct {
	Proposal   bft.Proposal
	Recipients []bft.PublicKey
}

// SentVote is a vote recorded by a RecordingSender.
type SentVote struct {
	Vote   bft.Vote
	Leader bft.PublicKey
}

// RecordingSender records outgoing proposals and votes.
type RecordingSender struct {
	Proposals []SentProposal
	Votes     []SentVote
}

// BroadcastProposal records the proposal.
func (s *RecordingSender) BroadcastProposal(proposal bft.Proposal, recipients []bft.PublicKey) {
	s.Proposals = append(s.Proposals, SentProposal{proposal, recipients})
}

// SendVote records the vote.
func (s *RecordingSender) SendVote(vote bft.Vote, leader bft.PublicKey) {
	s.Votes = append(s.Votes, SentVote{vote, leader})
}

// Reset forgets everything recorded so far.
func (s *RecordingSender) Reset() {
	s.Proposals = nil
	s.Votes = nil
}

var (
	_ bft.ProposalBroadcaster = (*RecordingSender)(nil)
	_ bft.VoteSender          = (*RecordingSender)(nil)
)
