package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relab/bft"
	"github.com/relab/bft/epochmanager"
	"github.com/relab/bft/internal/config"
	"github.com/relab/bft/internal/profiling"
	"github.com/relab/bft/internal/simnet"
	"github.com/relab/bft/leaderrotation"
	"github.com/relab/bft/metrics"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run validators on a simulated network.",
	Long: `The simulate command runs every node in this process, connected by a simulated network.
Each epoch shifts the validator set by one node, so that one validator leaves and another node joins.
An epoch ends when the QC of view 'views-per-epoch' has formed.
The simulation ends when every validator of the last epoch has entered that view.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.NewViper()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		return simulate(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().Int("epochs", 3, "number of epochs to run")
	simulateCmd.Flags().Uint64("views-per-epoch", 10, "view whose QC ends each epoch")
	simulateCmd.Flags().Duration("timeout", time.Minute, "upper limit on the duration of the simulation")
	simulateCmd.Flags().Int64("seed", 0, "seed for the simulated network latencies")
	simulateCmd.Flags().Duration("view-timeout", 500*time.Millisecond, "duration of the first local timeout of a view")
	simulateCmd.Flags().Float64("timeout-rate", epochmanager.DefaultTimeoutRate, "number to multiply the timeout by after each local timeout")
	simulateCmd.Flags().Int("max-exponent", epochmanager.DefaultMaxExponent, "upper limit on the timeout exponent")
	simulateCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (disabled by default)")
	simulateCmd.Flags().String("fgprof", "", "write an fgprof profile to this file (disabled by default)")

	cobra.CheckErr(viper.BindPFlags(simulateCmd.Flags()))
}

func simulate(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	logger := newLogger(cfg, "simnet")

	stopProfilers, err := profiling.StartProfilers("", "", cfg.FgprofPath)
	if err != nil {
		return fmt.Errorf("failed to start profilers: %w", err)
	}
	defer func() {
		if stopErr := stopProfilers(); stopErr != nil && err == nil {
			err = fmt.Errorf("failed to stop profilers: %w", stopErr)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	counters, err := metrics.NewRegistry(promRegistry)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, promRegistry, logger); err != nil {
				logger.Errorf("metrics server: %v", err)
			}
		}()
	}

	simCfg, err := simulationConfig(cfg)
	if err != nil {
		return err
	}
	simCfg.Logger = logger
	simCfg.Counters = func(node bft.PublicKey) bft.Counters {
		return counters.ForNode(node.String())
	}
	network, err := simnet.New(simCfg)
	if err != nil {
		return err
	}

	target := bft.EpochView{Epoch: network.FinalEpoch(), View: bft.View(cfg.ViewsPerEpoch)}
	start := time.Now()
	err = network.Run(ctx, target)
	printStats(out, network.Stats(), time.Since(start))
	return err
}

func simulationConfig(cfg *config.Config) (simnet.Config, error) {
	first, err := cfg.ValidatorSet(simnet.FirstEpoch)
	if err != nil {
		return simnet.Config{}, err
	}
	simCfg := simnet.Config{
		Nodes:      cfg.NodeKeys(),
		Validators: first,
		BFT:        cfg.BFT(),
		Seed:       cfg.Seed,
		Options: []epochmanager.Option{
			epochmanager.WithBackoff(cfg.TimeoutRate, cfg.MaxExponent),
			epochmanager.WithElectionOptions(
				leaderrotation.WithCacheSize(cfg.CacheSize),
				leaderrotation.WithPeriodBound(cfg.PeriodBound),
			),
		},
	}
	for epoch := simnet.FirstEpoch + 1; epoch < simnet.FirstEpoch+bft.Epoch(cfg.Epochs); epoch++ {
		set, err := cfg.ValidatorSet(epoch)
		if err != nil {
			return simnet.Config{}, err
		}
		simCfg.Changes = append(simCfg.Changes, simnet.EpochPlan{
			AfterView:  bft.View(cfg.ViewsPerEpoch),
			Validators: set,
			Config:     cfg.BFT(),
		})
	}
	return simCfg, nil
}

func printStats(out io.Writer, stats simnet.Stats, elapsed time.Duration) {
	fmt.Fprintf(out, "elapsed: %v, local timeouts: %d\n", elapsed.Round(time.Millisecond), stats.Timeouts)

	epochs := make([]bft.Epoch, 0, len(stats.QCs))
	for epoch := range stats.QCs {
		epochs = append(epochs, epoch)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	for _, epoch := range epochs {
		proposals, votes := 0, 0
		for _, n := range stats.Proposals[epoch] {
			proposals += n
		}
		for _, n := range stats.Votes[epoch] {
			votes += n
		}
		fmt.Fprintf(out, "epoch %d: %d QCs, %d proposals, %d votes\n", epoch, stats.QCs[epoch], proposals, votes)
	}

	nodes := make([]bft.PublicKey, 0, len(stats.Progress))
	for node := range stats.Progress {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Compare(nodes[j]) < 0 })
	for _, node := range nodes {
		fmt.Fprintf(out, "node %v: %v\n", node, stats.Progress[node])
	}
}
