package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relab/bft"
	"github.com/relab/bft/internal/config"
	"github.com/relab/bft/leaderrotation"
)

// leadersCmd represents the leaders command
var leadersCmd = &cobra.Command{
	Use:   "leaders",
	Short: "Print the leader schedule of a validator set.",
	Long: `The leaders command prints the proposer of each view in a range,
using the validator set of the first epoch and the configured leader rotation.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.NewViper()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		return printLeaders(cmd.OutOrStdout(), cfg, bft.View(viper.GetUint64("from")), viper.GetInt("count"))
	},
}

func init() {
	rootCmd.AddCommand(leadersCmd)

	leadersCmd.Flags().Uint64("from", 0, "first view to print")
	leadersCmd.Flags().Int("count", 20, "number of views to print")

	cobra.CheckErr(viper.BindPFlags(leadersCmd.Flags()))
}

func printLeaders(out io.Writer, cfg *config.Config, from bft.View, count int) error {
	set, err := cfg.ValidatorSet(1)
	if err != nil {
		return err
	}
	election, err := leaderrotation.NewByName(cfg.LeaderRotation, set,
		leaderrotation.WithCacheSize(cfg.CacheSize),
		leaderrotation.WithPeriodBound(cfg.PeriodBound),
		leaderrotation.WithLogger(newLogger(cfg, "leaderrotation")),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "validators: %v\n", set)
	if period, ok := election.Period(); ok {
		fmt.Fprintf(out, "period: %d views\n", period)
	} else {
		fmt.Fprintln(out, "period: unknown")
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VIEW\tLEADER\tPOWER")
	for i := 0; i < count; i++ {
		view := from + bft.View(i)
		leader := election.GetProposer(view)
		fmt.Fprintf(w, "%d\t%v\t%v\n", view, leader, set.PowerOf(leader))
	}
	return w.Flush()
}
