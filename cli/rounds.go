package cli

import (
	"time"

	"github.com/fedmesh/fedmesh/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	maxParticipants int
	minReputation   float64
	quorum          int
	roundTimeout    time.Duration
)

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [start|view]",
		Short: "Aggregation rounds",
		Long:  `Start and inspect federated learning rounds.`,
	}

	startCmd := &cobra.Command{
		Use:   "start <algorithm>",
		Short: "Start round",
		Long: `Start an aggregation round.

Examples:
  # Start a FedAvg round with default selection
  fedmesh-cli rounds start fedavg

  # Start a round that completes after 3 submissions
  fedmesh-cli rounds start fedavg --quorum=3 --timeout=2m`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := fsdk.StartRound(sdk.RoundConfig{
				Algorithm:       args[0],
				MaxParticipants: maxParticipants,
				MinReputation:   minReputation,
				Quorum:          quorum,
				Timeout:         roundTimeout,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, round)
		},
	}

	startCmd.Flags().IntVar(&maxParticipants, "max-participants", 0, "maximum participants selected for the round")
	startCmd.Flags().Float64Var(&minReputation, "min-reputation", 0, "minimum reputation for selection")
	startCmd.Flags().IntVar(&quorum, "quorum", 0, "submissions needed to complete the round")
	startCmd.Flags().DurationVar(&roundTimeout, "timeout", 0, "round deadline")

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View round",
		Long:  `View a round's status.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := fsdk.GetRound(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, round)
		},
	}

	cmd.AddCommand(startCmd)
	cmd.AddCommand(viewCmd)

	return cmd
}

func NewParticipantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants [list]",
		Short: "Learning participants",
		Long:  `Inspect registered learning participants.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List participants",
		Long:  `List registered participants with reputation and status.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := fsdk.ListParticipants(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.AddCommand(listCmd)

	return cmd
}
