package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/lifecycle"
)

var deployOpts lifecycle.DeployOptions

var deployCmd = &cobra.Command{
	Use:   "deploy <stack>",
	Short: "Fetch sources, render the host manifest and start a stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := resolveStack(args[0])
		if err != nil {
			return err
		}
		ctl, err := newController()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := ensureNetwork(ctx); err != nil {
			return err
		}

		out.Info("Deploying stack %q", entry.Stack.Name)
		if err := ctl.Deploy(ctx, entry.Stack, entry.SourceDir(), deployOpts); err != nil {
			return err
		}
		out.Ok("Stack %q deployed", entry.Stack.Name)
		return nil
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployOpts.Pull, "pull", false, "re-download remote sources and pull images even when unchanged")
	deployCmd.Flags().BoolVar(&deployOpts.SkipLint, "skip-lint", false, "do not validate the rendered manifest before starting")
	rootCmd.AddCommand(deployCmd)
}
