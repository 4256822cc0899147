// Package metrics exports the consensus counters to Prometheus.
//
// Every timeout, proposal and vote increments exactly one named counter. Counters are labelled
// with the node that produced them, so several nodes can share one registry in a simulation.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relab/bft"
	"github.com/relab/bft/logging"
)

const namespace = "bft"

var help = map[bft.Counter]string{
	bft.CounterTimeoutsSent:       "Number of local view timeouts emitted by the pacemaker.",
	bft.CounterProposalsSent:      "Number of proposals broadcast by this node.",
	bft.CounterVotesSent:          "Number of votes sent by this node.",
	bft.CounterStaleEventsDropped: "Number of events dropped because they belong to another epoch.",
	bft.CounterEpochChanges:       "Number of epoch changes applied.",
}

// Registry holds the counter vectors registered with Prometheus.
type Registry struct {
	vecs map[bft.Counter]*prometheus.CounterVec
}

// NewRegistry creates the counter vectors and registers them with reg.
func NewRegistry(reg prometheus.Registerer) (*Registry, error) {
	r := &Registry{vecs: make(map[bft.Counter]*prometheus.CounterVec, len(help))}
	for name, text := range help {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      string(name) + "_total",
			Help:      text,
		}, []string{"node"})
		if err := reg.Register(vec); err != nil {
			return nil, fmt.Errorf("failed to register counter %s: %w", name, err)
		}
		r.vecs[name] = vec
	}
	return r, nil
}

// ForNode returns the counters of the given node.
func (r *Registry) ForNode(node string) *Counters {
	c := &Counters{counters: make(map[bft.Counter]prometheus.Counter, len(r.vecs))}
	for name, vec := range r.vecs {
		c.counters[name] = vec.WithLabelValues(node)
	}
	return c
}

// Counters implements bft.Counters for a single node.
type Counters struct {
	counters map[bft.Counter]prometheus.Counter
}

// Increment increments the named counter. Unknown names are ignored.
func (c *Counters) Increment(name bft.Counter) {
	if counter, ok := c.counters[name]; ok {
		counter.Inc()
	}
}

var _ bft.Counters = (*Counters)(nil)

// Serve exposes the gathered metrics on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("metrics server shutdown: %v", err)
		}
	}()

	logger.Infof("serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
