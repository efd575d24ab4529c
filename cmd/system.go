package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/docker"
	"github.com/sarth-shah20/quay/internal/lifecycle"
	"github.com/sarth-shah20/quay/internal/stack"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Manage the quay system containers (proxy, backups, dashboards)",
}

var systemPull bool

var systemStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Create the shared network and (re)deploy the system containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := ensureNetwork(ctx); err != nil {
			return err
		}
		ctl, err := newController()
		if err != nil {
			return err
		}
		if err := ctl.Stop(ctx, stack.SystemName, true); err != nil {
			return err
		}
		out.Info("Deploying system containers")
		if err := ctl.DeploySystem(ctx, lifecycle.DeployOptions{Pull: systemPull}); err != nil {
			return err
		}
		out.Ok("System containers started")
		return nil
	},
}

var systemStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the system containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, err := newController()
		if err != nil {
			return err
		}
		if err := ctl.Stop(cmd.Context(), stack.SystemName, false); err != nil {
			return err
		}
		out.Ok("System containers stopped")
		return nil
	},
}

var (
	pruneVolumes bool
	pruneForce   bool
)

var systemPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove unused Docker resources and orphaned volume folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orphans, err := orphanVolumeDirs()
		if err != nil {
			return err
		}
		if !pruneForce {
			msg := "This will remove unused containers, networks and images"
			if pruneVolumes {
				msg += " and volumes"
			}
			fmt.Println(msg)
			if len(orphans) > 0 {
				fmt.Printf("Found %d orphan volume folder(s):\n", len(orphans))
				for _, dir := range orphans {
					fmt.Printf("  • %s\n", dir)
				}
			}
			if !confirm("Continue?") {
				return errNotConfirmed
			}
		}

		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		defer mgr.Close()
		out.Info("Pruning unused Docker resources...")
		report, err := mgr.Prune(cmd.Context(), pruneVolumes)
		if err != nil {
			return err
		}
		out.Ok("Removed %d containers, %d networks, %d images, %d volumes (%d bytes reclaimed)",
			report.Containers, report.Networks, report.Images, report.Volumes, report.SpaceReclaimed)

		for _, dir := range orphans {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("remove %s: %w", dir, err)
			}
			out.Ok("Removed orphan volume folder %s", dir)
		}
		return nil
	},
}

// orphanVolumeDirs lists volume folders that belong to no known stack.
func orphanVolumeDirs() ([]string, error) {
	dirs, err := os.ReadDir(paths.VolumesDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	known := map[string]bool{stack.SystemName: true}
	entries, err := stack.Discover(paths.Stacks)
	if err != nil {
		// Without the stacks directory every folder would look orphaned.
		return nil, err
	}
	for _, e := range entries {
		if e.Valid() {
			known[e.Stack.Name] = true
		}
	}

	var orphans []string
	for _, d := range dirs {
		if d.IsDir() && !known[d.Name()] {
			orphans = append(orphans, filepath.Join(paths.VolumesDir(), d.Name()))
		}
	}
	return orphans, nil
}

func init() {
	systemStartCmd.Flags().BoolVar(&systemPull, "pull", false, "pull system images before starting")
	systemPruneCmd.Flags().BoolVarP(&pruneVolumes, "volumes", "v", false, "also remove unused Docker volumes")
	systemPruneCmd.Flags().BoolVarP(&pruneForce, "force", "f", false, "skip the confirmation prompt")
	systemCmd.AddCommand(systemStartCmd, systemStopCmd, systemPruneCmd)
	rootCmd.AddCommand(systemCmd)
}
