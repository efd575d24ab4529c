package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/lifecycle"
)

var (
	logsNoFollow bool
	logsTail     int
)

var logsCmd = &cobra.Command{
	Use:   "logs <stack> [service]",
	Short: "Show the logs of a stack or one of its services",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, err := newController()
		if err != nil {
			return err
		}
		opts := lifecycle.LogOptions{Follow: !logsNoFollow, Tail: logsTail}
		if len(args) == 2 {
			opts.Service = args[1]
		}
		return ctl.Logs(cmd.Context(), args[0], opts)
	},
}

func init() {
	logsCmd.Flags().BoolVar(&logsNoFollow, "no-follow", false, "print the logs and exit")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "t", 100, "number of lines to show from the end of the logs")
	rootCmd.AddCommand(logsCmd)
}
