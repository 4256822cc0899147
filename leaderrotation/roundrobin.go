package leaderrotation

import "github.com/relab/bft"

type roundRobin struct {
	leaders []bft.PublicKey
}

func newRoundRobin(validators *bft.ValidatorSet) *roundRobin {
	return &roundRobin{leaders: validators.Keys()}
}

// getProposer returns the key of the leader in the given view.
func (rr *roundRobin) getProposer(view bft.View) bft.PublicKey {
	return rr.leaders[view.Number()%uint64(len(rr.leaders))]
}
