package cmd

import (
	"github.com/spf13/cobra"
)

var startPull bool

var startCmd = &cobra.Command{
	Use:   "start <stack>",
	Short: "Start an already deployed stack without re-rendering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, err := newController()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := ensureNetwork(ctx); err != nil {
			return err
		}
		out.Info("Starting containers...")
		if err := ctl.Start(ctx, args[0], startPull); err != nil {
			return err
		}
		out.Ok("Containers started")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <stack>",
	Short: "Stop a running stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, err := newController()
		if err != nil {
			return err
		}
		out.Info("Stopping containers...")
		if err := ctl.Stop(cmd.Context(), args[0], false); err != nil {
			return err
		}
		out.Ok("Containers stopped")
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVar(&startPull, "pull", false, "pull images before starting")
	rootCmd.AddCommand(startCmd, stopCmd)
}
