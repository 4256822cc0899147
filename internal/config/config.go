// Package config holds the configuration of the bft command.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"

	"github.com/relab/bft"
	"github.com/relab/bft/leaderrotation"
	"github.com/relab/bft/logging"
	"github.com/relab/bft/pacemaker"
)

// Config holds the configuration for a simulation.
type Config struct {
	// LogLevel is the global log level.
	LogLevel string
	// LogPackages are per-package log levels as "package=level" pairs.
	LogPackages []string
	// LogFile is the path of a rotated JSON log file. Logs go to stderr if it is empty.
	LogFile string

	// Nodes is the number of nodes on the simulated network.
	Nodes int
	// Validators is the number of validators in each epoch.
	// Each epoch shifts the set of validators by one node, so that one node leaves and another joins.
	Validators int
	// Powers are assigned to the validators of an epoch in key order, repeating as needed.
	Powers []int64
	// Epochs is the number of epochs to run.
	Epochs int
	// ViewsPerEpoch is the view whose QC ends an epoch.
	ViewsPerEpoch uint64
	// Timeout bounds the wall-clock time of the simulation.
	Timeout time.Duration
	// Seed seeds the simulated network latencies.
	Seed int64

	LeaderRotation string
	ViewTimeout    time.Duration
	TimeoutRate    float64
	MaxExponent    int
	CacheSize      int
	PeriodBound    uint64

	// MetricsAddr is the address of the Prometheus endpoint. Disabled if empty.
	MetricsAddr string
	// FgprofPath is the output file of the fgprof profile. Disabled if empty.
	FgprofPath string
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var err error
	if _, e := logging.ParseLevel(c.LogLevel); e != nil {
		err = multierr.Append(err, e)
	}
	if c.Nodes < 1 || c.Nodes > math.MaxUint16 {
		err = multierr.Append(err, fmt.Errorf("nodes must be between 1 and %d, got %d", math.MaxUint16, c.Nodes))
	}
	if c.Validators < 1 || c.Validators > c.Nodes {
		err = multierr.Append(err, fmt.Errorf("validators must be between 1 and the number of nodes, got %d", c.Validators))
	}
	if len(c.Powers) == 0 {
		err = multierr.Append(err, errors.New("at least one power is required"))
	}
	for _, p := range c.Powers {
		if p <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: %d", bft.ErrNonPositivePower, p))
		}
	}
	if c.Epochs < 1 {
		err = multierr.Append(err, fmt.Errorf("epochs must be positive, got %d", c.Epochs))
	}
	if c.ViewsPerEpoch < 1 {
		err = multierr.Append(err, errors.New("views-per-epoch must be positive"))
	}
	if _, e := leaderrotation.ParseKind(c.LeaderRotation); e != nil {
		err = multierr.Append(err, e)
	}
	if c.ViewTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("view-timeout must be positive, got %v", c.ViewTimeout))
	}
	if c.TimeoutRate < 1 {
		err = multierr.Append(err, fmt.Errorf("timeout-rate must be at least 1, got %v", c.TimeoutRate))
	}
	if c.MaxExponent < 0 {
		err = multierr.Append(err, fmt.Errorf("max-exponent must not be negative, got %d", c.MaxExponent))
	}
	if c.ViewTimeout > 0 && c.TimeoutRate >= 1 && c.MaxExponent >= 0 {
		if e := pacemaker.CheckBackoff(c.ViewTimeout, c.TimeoutRate, c.MaxExponent); e != nil {
			err = multierr.Append(err, e)
		}
	}
	if c.CacheSize < 1 {
		err = multierr.Append(err, fmt.Errorf("cache-size must be positive, got %d", c.CacheSize))
	}
	return err
}

// NodeKey returns the public key of the i'th node, counting from 1.
func NodeKey(i int) bft.PublicKey {
	return bft.PublicKey([]byte{0x02, byte(i >> 8), byte(i)})
}

// NodeKeys returns the keys of all nodes.
func (c *Config) NodeKeys() []bft.PublicKey {
	keys := make([]bft.PublicKey, c.Nodes)
	for i := range keys {
		keys[i] = NodeKey(i + 1)
	}
	return keys
}

// ValidatorSet returns the validator set of an epoch, counting from 1.
func (c *Config) ValidatorSet(epoch bft.Epoch) (*bft.ValidatorSet, error) {
	if epoch < 1 {
		return nil, fmt.Errorf("invalid epoch %d", epoch)
	}
	shift := int((uint64(epoch) - 1) % uint64(c.Nodes))
	validators := make([]bft.Validator, c.Validators)
	for i := range validators {
		node := (shift+i)%c.Nodes + 1
		validators[i] = bft.MustNewValidator(NodeKey(node), c.Powers[i%len(c.Powers)])
	}
	return bft.NewValidatorSet(validators...)
}

// BFT returns the per-epoch consensus configuration.
func (c *Config) BFT() bft.BFTConfiguration {
	return bft.BFTConfiguration{
		LeaderRotation: c.LeaderRotation,
		ViewTimeout:    c.ViewTimeout,
	}
}
