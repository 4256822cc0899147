package epochmanager_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/relab/bft"
	"github.com/relab/bft/epochmanager"
	"github.com/relab/bft/internal/mocks"
	"github.com/relab/bft/internal/testutil"
	"github.com/relab/bft/leaderrotation"
	"github.com/relab/bft/logging"
)

type counts map[bft.Counter]int

func (c counts) Increment(counter bft.Counter) {
	c[counter]++
}

type fixture struct {
	em        *epochmanager.EpochManager
	sender    *testutil.RecordingSender
	scheduler *testutil.ManualScheduler
	counters  counts
	timeouts  []bft.EpochLocalTimeoutOccurrence
	votes     []bft.Vote
}

// newFixture returns a manager for the node with key id that records everything it sends.
func newFixture(t *testing.T, id uint8, opts ...epochmanager.Option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		sender:    &testutil.RecordingSender{},
		scheduler: testutil.NewManualScheduler(),
		counters:  counts{},
	}
	deps := epochmanager.Dependencies{
		Commands:    testutil.CreateMockCommandGenerator(t, ctrl, "cmd"),
		Signer:      testutil.CreateMockSigner(t, ctrl, testutil.Key(id)),
		Broadcaster: f.sender,
		VoteSender:  f.sender,
		Scheduler:   f.scheduler,
	}
	opts = append([]epochmanager.Option{
		epochmanager.WithCounters(f.counters),
		epochmanager.WithLogger(logging.NewWithDest(io.Discard, "epochmanager")),
		epochmanager.WithTimeoutSubscriber(func(o bft.EpochLocalTimeoutOccurrence) { f.timeouts = append(f.timeouts, o) }),
		epochmanager.WithVoteSubscriber(func(v bft.Vote) { f.votes = append(f.votes, v) }),
	}, opts...)
	f.em = epochmanager.New(testutil.Key(id), deps, opts...)
	return f
}

func epochChange(t *testing.T, epoch bft.Epoch, set *bft.ValidatorSet) bft.EpochChange {
	t.Helper()
	return bft.EpochChange{Epoch: epoch, Validators: set, GenesisQC: testutil.GenesisQC(epoch)}
}

func qcEvent(epoch bft.Epoch, view bft.View) bft.ViewQuorumReached {
	return bft.ViewQuorumReached{Epoch: epoch, QC: testutil.QC(epoch, view)}
}

func proposal(epoch bft.Epoch, view bft.View, proposer bft.PublicKey, highQC bft.QuorumCert) bft.ProposalReceived {
	return bft.ProposalReceived{Proposal: bft.Proposal{
		Epoch:    epoch,
		View:     view,
		Proposer: proposer,
		HighQC:   bft.HighQC{Highest: highQC},
		Command:  "cmd",
	}}
}

func TestEventsBeforeFirstEpochAreDropped(t *testing.T) {
	f := newFixture(t, 1)
	f.em.HandleEvent(qcEvent(0, 0))
	f.em.HandleEvent(bft.ScheduledLocalTimeout{})

	_, ok := f.em.EpochView()
	require.False(t, ok)
	require.Equal(t, 2, f.counters[bft.CounterStaleEventsDropped])
	require.Empty(t, f.scheduler.All())
}

func TestEpochChangeStartsPacemaker(t *testing.T) {
	set := testutil.ValidatorSet(t, 1, 1, 1, 1)
	// key 2 leads view 1 under round-robin
	f := newFixture(t, 2)
	f.em.HandleEvent(epochChange(t, 1, set))

	ev, ok := f.em.EpochView()
	require.True(t, ok)
	require.Equal(t, bft.EpochView{Epoch: 1, View: 1}, ev)
	require.True(t, f.em.IsMember())
	require.Equal(t, 1, f.counters[bft.CounterEpochChanges])

	require.Len(t, f.sender.Proposals, 1)
	sent := f.sender.Proposals[0]
	require.Equal(t, set.Keys(), sent.Recipients)
	require.Equal(t, bft.View(1), sent.Proposal.View)
	require.Equal(t, testutil.Key(2), sent.Proposal.Proposer)
	require.Equal(t, bft.Command("cmd"), sent.Proposal.Command)
	require.NotEmpty(t, sent.Proposal.Signature)
	require.Equal(t, 1, f.counters[bft.CounterProposalsSent])

	require.Len(t, f.scheduler.Pending(), 1)
}

func TestStaleEpochEventsDoNotProposeOrVote(t *testing.T) {
	ctrl := gomock.NewController(t)
	// no calls are expected on either mock
	broadcaster := mocks.NewMockProposalBroadcaster(ctrl)
	voteSender := mocks.NewMockVoteSender(ctrl)
	signer := mocks.NewMockHashSigner(ctrl)
	counters := counts{}

	em := epochmanager.New(testutil.Key(1), epochmanager.Dependencies{
		Commands:    testutil.CreateMockCommandGenerator(t, ctrl, "cmd"),
		Signer:      signer,
		Broadcaster: broadcaster,
		VoteSender:  voteSender,
		Scheduler:   testutil.NewManualScheduler(),
	}, epochmanager.WithCounters(counters), epochmanager.WithLogger(logging.NewWithDest(io.Discard, "epochmanager")))

	set := testutil.ValidatorSet(t, 1, 1, 1, 1)
	em.HandleEvent(epochChange(t, 1, set))
	em.HandleEvent(epochChange(t, 2, set))

	// key 1 would lead view 4 and vote for the proposal of view 1 in epoch 1
	em.HandleEvent(qcEvent(1, 3))
	em.HandleEvent(proposal(1, 1, testutil.Key(2), testutil.GenesisQC(1)))
	em.HandleEvent(bft.ScheduledLocalTimeout{EpochView: bft.EpochView{Epoch: 1, View: 1}})

	ev, _ := em.EpochView()
	require.Equal(t, bft.EpochView{Epoch: 2, View: 1}, ev)
	require.Equal(t, 3, counters[bft.CounterStaleEventsDropped])
	require.Zero(t, counters[bft.CounterProposalsSent])
	require.Zero(t, counters[bft.CounterVotesSent])
}

func TestNonMemberNeverProposesOrVotes(t *testing.T) {
	f := newFixture(t, 1)
	f.em.HandleEvent(epochChange(t, 1, testutil.ValidatorSet(t, 1, 1, 1, 1)))
	require.True(t, f.em.IsMember())

	// epoch 2 is governed by keys 2 to 5
	validators := make([]bft.Validator, 0, 4)
	for id := uint8(2); id <= 5; id++ {
		validators = append(validators, bft.MustNewValidator(testutil.Key(id), 1))
	}
	set, err := bft.NewValidatorSet(validators...)
	require.NoError(t, err)
	f.em.HandleEvent(epochChange(t, 2, set))
	require.False(t, f.em.IsMember())
	f.sender.Reset()

	for view := bft.View(1); view <= 8; view++ {
		leader, _ := f.em.Proposer(view)
		f.em.HandleEvent(proposal(2, view, leader, testutil.QC(2, view-1)))
		f.em.HandleEvent(qcEvent(2, view))
	}

	ev, _ := f.em.EpochView()
	require.Equal(t, bft.EpochView{Epoch: 2, View: 9}, ev)
	require.Empty(t, f.sender.Proposals)
	require.Empty(t, f.sender.Votes)
}

func TestDuplicateEpochChangeIsIgnored(t *testing.T) {
	f := newFixture(t, 1)
	set := testutil.ValidatorSet(t, 1, 1, 1, 1)
	f.em.HandleEvent(epochChange(t, 1, set))
	f.em.HandleEvent(epochChange(t, 2, set))
	f.em.HandleEvent(qcEvent(2, 2))
	scheduled := len(f.scheduler.All())

	f.em.HandleEvent(epochChange(t, 2, set))
	f.em.HandleEvent(epochChange(t, 1, set))

	ev, _ := f.em.EpochView()
	require.Equal(t, bft.EpochView{Epoch: 2, View: 3}, ev)
	require.Equal(t, 2, f.counters[bft.CounterEpochChanges])
	require.Equal(t, 2, f.counters[bft.CounterStaleEventsDropped])
	require.Len(t, f.scheduler.All(), scheduled)
}

func TestEpochChangeCancelsTimeouts(t *testing.T) {
	f := newFixture(t, 1)
	set := testutil.ValidatorSet(t, 1, 1, 1, 1)
	f.em.HandleEvent(epochChange(t, 1, set))
	old := f.scheduler.Last()
	f.em.HandleEvent(epochChange(t, 2, set))

	require.True(t, old.Cancelled)
	// a fire that raced the cancellation is dropped
	f.em.HandleEvent(old.Event)
	require.Empty(t, f.timeouts)
	require.Equal(t, 1, f.counters[bft.CounterStaleEventsDropped])
}

func TestLocalTimeoutIsPublished(t *testing.T) {
	f := newFixture(t, 1)
	f.em.HandleEvent(epochChange(t, 1, testutil.ValidatorSet(t, 1, 1, 1, 1)))

	event, ok := f.scheduler.FireNext()
	require.True(t, ok)
	f.em.HandleEvent(event)

	require.Equal(t, []bft.EpochLocalTimeoutOccurrence{{
		Epoch: 1,
		LocalTimeoutOccurrence: bft.LocalTimeoutOccurrence{
			View:       1,
			Leader:     testutil.Key(2),
			NextLeader: testutil.Key(3),
		},
	}}, f.timeouts)
	require.Equal(t, 1, f.counters[bft.CounterTimeoutsSent])
	require.Equal(t, 2*epochmanager.DefaultViewTimeout, f.scheduler.Last().Delay)
}

func TestVoteForLeaderProposal(t *testing.T) {
	f := newFixture(t, 1)
	f.em.HandleEvent(epochChange(t, 1, testutil.ValidatorSet(t, 1, 1, 1, 1)))

	p := proposal(1, 1, testutil.Key(2), testutil.GenesisQC(1))
	f.em.HandleEvent(p)
	require.Len(t, f.sender.Votes, 1)
	vote := f.sender.Votes[0]
	require.Equal(t, testutil.Key(3), vote.Leader)
	require.Equal(t, bft.EpochView{Epoch: 1, View: 1}, vote.Vote.EpochView())
	require.Equal(t, testutil.Key(1), vote.Vote.Voter)
	require.Equal(t, p.Proposal.Hash(), vote.Vote.Vertex)
	require.NotEmpty(t, vote.Vote.Signature)

	// at most one vote per view
	f.em.HandleEvent(p)
	require.Len(t, f.sender.Votes, 1)
	require.Equal(t, 1, f.counters[bft.CounterVotesSent])
}

func TestProposalFromNonLeaderIsDropped(t *testing.T) {
	f := newFixture(t, 1)
	f.em.HandleEvent(epochChange(t, 1, testutil.ValidatorSet(t, 1, 1, 1, 1)))

	f.em.HandleEvent(proposal(1, 1, testutil.Key(3), testutil.GenesisQC(1)))
	require.Empty(t, f.sender.Votes)
}

func TestProposalQCAdvancesView(t *testing.T) {
	f := newFixture(t, 1)
	f.em.HandleEvent(epochChange(t, 1, testutil.ValidatorSet(t, 1, 1, 1, 1)))

	f.em.HandleEvent(proposal(1, 3, testutil.Key(4), testutil.QC(1, 2)))

	ev, _ := f.em.EpochView()
	require.Equal(t, bft.EpochView{Epoch: 1, View: 3}, ev)
	require.Len(t, f.sender.Votes, 1)
	require.Equal(t, testutil.Key(1), f.sender.Votes[0].Leader)
}

func TestVotesAreForwarded(t *testing.T) {
	f := newFixture(t, 1)
	f.em.HandleEvent(epochChange(t, 1, testutil.ValidatorSet(t, 1, 1, 1, 1)))

	valid := bft.Vote{Epoch: 1, View: 1, Voter: testutil.Key(4)}
	f.em.HandleEvent(bft.VoteReceived{Vote: valid})
	f.em.HandleEvent(bft.VoteReceived{Vote: bft.Vote{Epoch: 1, View: 1, Voter: testutil.Key(9)}})
	f.em.HandleEvent(bft.VoteReceived{Vote: bft.Vote{Epoch: 0, View: 1, Voter: testutil.Key(4)}})

	require.Equal(t, []bft.Vote{valid}, f.votes)
	require.Equal(t, 1, f.counters[bft.CounterStaleEventsDropped])
}

func TestSigningFailureSuppressesProposal(t *testing.T) {
	ctrl := gomock.NewController(t)
	signer := mocks.NewMockHashSigner(ctrl)
	signer.EXPECT().Sign(gomock.Any()).Return(nil, errors.New("no key")).Times(1)
	sender := &testutil.RecordingSender{}

	em := epochmanager.New(testutil.Key(2), epochmanager.Dependencies{
		Commands:    testutil.CreateMockCommandGenerator(t, ctrl, "cmd"),
		Signer:      signer,
		Broadcaster: sender,
		VoteSender:  sender,
		Scheduler:   testutil.NewManualScheduler(),
	}, epochmanager.WithLogger(logging.NewWithDest(io.Discard, "epochmanager")))
	em.HandleEvent(epochChange(t, 1, testutil.ValidatorSet(t, 1, 1, 1, 1)))

	require.Empty(t, sender.Proposals)
}

func TestEpochConfiguration(t *testing.T) {
	f := newFixture(t, 1, epochmanager.WithDefaults(bft.BFTConfiguration{
		LeaderRotation: leaderrotation.NameWeightedRotating,
		ViewTimeout:    50 * time.Millisecond,
	}))
	set := testutil.ValidatorSet(t, 1, 2, 3)
	f.em.HandleEvent(epochChange(t, 1, set))

	// the weighted election picks key 3 in view 1 for powers 1, 2, 3
	leader, _ := f.em.Proposer(1)
	require.Equal(t, testutil.Key(3), leader)
	require.Equal(t, 50*time.Millisecond, f.scheduler.Last().Delay)

	// an epoch change overrides the defaults
	ec := epochChange(t, 2, set)
	ec.Config = bft.BFTConfiguration{LeaderRotation: leaderrotation.NameRoundRobin, ViewTimeout: time.Second}
	f.em.HandleEvent(ec)
	leader, _ = f.em.Proposer(1)
	require.Equal(t, testutil.Key(2), leader)
	require.Equal(t, time.Second, f.scheduler.Last().Delay)

	// an unknown algorithm leaves the active epoch running
	ec = epochChange(t, 3, set)
	ec.Config.LeaderRotation = "lottery"
	f.em.HandleEvent(ec)
	ev, _ := f.em.EpochView()
	require.Equal(t, bft.Epoch(2), ev.Epoch)
}
