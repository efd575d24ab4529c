package cmd

import (
	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset <stack>",
	Short: "Take a stack down and delete its project and volume data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !resetForce && !confirm("This deletes all data of stack "+name+" in "+paths.StackVolumesDir(name)+". Continue?") {
			return errNotConfirmed
		}
		ctl, err := newController()
		if err != nil {
			return err
		}
		if err := ctl.Reset(cmd.Context(), name); err != nil {
			return err
		}
		out.Ok("Stack %q reset", name)
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}
