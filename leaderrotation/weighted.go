package leaderrotation

import (
	"math"
	"math/big"

	"github.com/relab/bft"
	"github.com/relab/bft/logging"
)

const (
	// DefaultCacheSize is the number of recently computed leaders kept by the weighted election.
	DefaultCacheSize = 10
	// DefaultPeriodBound is the longest rotation period that is verified and used as a replay baseline.
	DefaultPeriodBound = 10_000
)

// creditOffset is added to every initial credit. Credits are charged the total power each time
// their validator leads, and the offset keeps them far from zero.
var creditOffset = new(big.Int).Lsh(big.NewInt(1), 256)

// cacheSlot holds the leader of one view. A slot is only valid for the view it records.
type cacheSlot struct {
	populated bool
	view      bft.View
	leader    int
}

// weightedRotating elects leaders proportionally to their power.
//
// Every validator holds a credit. Moving from view v to v+1 charges the total power to the leader
// of v, adds each validator's power to its own credit, and elects the validator with the highest
// credit; ties go to the greater raw key. A full replay from genesis is avoided by caching the
// last leaders and by restarting from a multiple of the rotation period.
type weightedRotating struct {
	keys   []bft.PublicKey
	powers []*big.Int
	total  *big.Int

	credits []*big.Int
	cache   []cacheSlot
	curView bft.View

	periodBound   uint64
	periodChecked bool
	period        uint64 // zero if no verified period exists

	logger logging.Logger
}

func newWeightedRotating(validators *bft.ValidatorSet, o options) *weightedRotating {
	w := &weightedRotating{
		keys:        validators.Keys(),
		powers:      make([]*big.Int, validators.Len()),
		total:       validators.TotalPower(),
		credits:     make([]*big.Int, validators.Len()),
		cache:       make([]cacheSlot, o.cacheSize),
		periodBound: o.periodBound,
		logger:      o.logger,
	}
	for i := range w.powers {
		w.powers[i] = validators.At(i).Power()
		w.credits[i] = new(big.Int)
	}
	w.resetTo(bft.GenesisView)
	return w
}

// getProposer returns the key of the leader in the given view.
func (w *weightedRotating) getProposer(view bft.View) bft.PublicKey {
	if slot := w.slot(view); slot.populated && slot.view == view {
		return w.keys[slot.leader]
	}

	base := w.baseline(view)
	if view < w.curView || base > w.curView {
		w.logger.Debugf("leader cache miss for view %d (current: %d); replaying from %d", view, w.curView, base)
		w.resetTo(base)
	}
	for w.curView < view {
		w.computeNext()
	}
	return w.keys[w.slot(view).leader]
}

// Period returns the verified rotation period used as a replay baseline, if any.
func (w *weightedRotating) Period() (uint64, bool) {
	w.checkPeriod()
	return w.period, w.period > 0
}

func (w *weightedRotating) slot(view bft.View) *cacheSlot {
	return &w.cache[view.Number()%uint64(len(w.cache))]
}

// computeNext advances the current view by one.
func (w *weightedRotating) computeNext() {
	leader := w.slot(w.curView).leader
	w.advance(w.credits, leader)
	w.curView++
	*w.slot(w.curView) = cacheSlot{populated: true, view: w.curView, leader: w.heaviest(w.credits)}
}

// resetTo restores the genesis credits at the given view and clears the cache.
// The view must be genesis or a multiple of the verified period.
func (w *weightedRotating) resetTo(view bft.View) {
	w.initCredits(w.credits)
	for i := range w.cache {
		w.cache[i] = cacheSlot{}
	}
	w.curView = view
	*w.slot(view) = cacheSlot{populated: true, view: view, leader: w.heaviest(w.credits)}
}

// baseline returns the view that a replay towards view should start from.
func (w *weightedRotating) baseline(view bft.View) bft.View {
	w.checkPeriod()
	if w.period == 0 || w.period > view.Number() {
		return bft.GenesisView
	}
	return bft.View(view.Number() / w.period * w.period)
}

// checkPeriod finds a period of the rotation the first time it is needed.
// The candidate is the LCM of the powers, extended to a multiple of total/gcd(powers) so that
// every validator can be charged a whole number of times. It is only accepted if replaying it
// from genesis restores the genesis credits; otherwise replays start at genesis.
func (w *weightedRotating) checkPeriod() {
	if w.periodChecked {
		return
	}
	w.periodChecked = true

	lcm, ok := cappedLCM(math.MaxInt64, w.powers...)
	if !ok {
		w.logger.Infof("LCM of validator powers exceeds %d; leader replays start at genesis", uint64(math.MaxInt64))
		return
	}
	rotation := new(big.Int).Quo(w.total, gcdOf(w.powers...))
	candidate, ok := cappedLCM(math.MaxInt64, new(big.Int).SetUint64(lcm), rotation)
	if !ok || candidate > w.periodBound {
		w.logger.Infof("rotation period candidate exceeds bound %d; leader replays start at genesis", w.periodBound)
		return
	}
	if !w.returnsToGenesis(candidate) {
		w.logger.Infof("rotation does not return to genesis after %d views; leader replays start at genesis", candidate)
		return
	}
	w.period = candidate
}

// returnsToGenesis replays n views from genesis on scratch credits.
func (w *weightedRotating) returnsToGenesis(n uint64) bool {
	genesis := make([]*big.Int, len(w.keys))
	scratch := make([]*big.Int, len(w.keys))
	for i := range scratch {
		genesis[i] = new(big.Int)
		scratch[i] = new(big.Int)
	}
	w.initCredits(genesis)
	w.initCredits(scratch)

	for i := uint64(0); i < n; i++ {
		w.advance(scratch, w.heaviest(scratch))
	}
	for i := range scratch {
		if scratch[i].Cmp(genesis[i]) != 0 {
			return false
		}
	}
	return true
}

func (w *weightedRotating) initCredits(credits []*big.Int) {
	for i, p := range w.powers {
		credits[i].Sub(creditOffset, p)
	}
}

// advance charges the leader and credits every validator with its power.
func (w *weightedRotating) advance(credits []*big.Int, leader int) {
	credits[leader].Sub(credits[leader], w.total)
	for i, p := range w.powers {
		credits[i].Add(credits[i], p)
	}
}

// heaviest returns the index of the validator with the highest credit.
// Ties are broken in favor of the greater raw key.
func (w *weightedRotating) heaviest(credits []*big.Int) int {
	best := 0
	for i := 1; i < len(credits); i++ {
		c := credits[i].Cmp(credits[best])
		if c > 0 || (c == 0 && w.keys[i].Compare(w.keys[best]) > 0) {
			best = i
		}
	}
	return best
}
