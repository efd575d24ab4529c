package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/docker"
	"github.com/sarth-shah20/quay/internal/lifecycle"
	"github.com/sarth-shah20/quay/internal/variables"
)

var infoLogs bool

var infoCmd = &cobra.Command{
	Use:   "info <stack>",
	Short: "Show a stack's configuration, endpoints and container health",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := resolveStack(args[0])
		if err != nil {
			return err
		}
		s := entry.Stack
		ctx := cmd.Context()

		prober, err := newProber()
		if err != nil {
			return err
		}
		st, err := prober.Probe(ctx, s.Name)
		if err != nil {
			logger.Sugar().Debugf("status probe failed: %v", err)
		}

		fmt.Printf("Stack:     %s\n", s.Name)
		fmt.Printf("Status:    %s\n", statusColor(st.State).Sprint(st.String()))
		fmt.Printf("Source:    %s\n", s.Source)
		fmt.Printf("Path:      %s\n", entry.Path)
		fmt.Printf("Compose:   %s\n", s.ComposeFilePath)
		if len(s.Public) > 0 {
			fmt.Println("Endpoints:")
			for _, ep := range s.Public {
				auth := ""
				if ep.Auth != "" {
					auth = " (basic auth)"
				}
				fmt.Printf("  https://%s -> %s:%d%s\n", variables.Expand(ep.Domain, cfg), ep.ServiceName(), ep.Port(), auth)
			}
		}

		if st.State != lifecycle.NotDeployed {
			if err := printServices(cmd, s.Name); err != nil {
				out.Warn("could not read container state: %v", err)
			}
		}

		if infoLogs && st.State != lifecycle.NotDeployed {
			ctl, err := newController()
			if err != nil {
				return err
			}
			fmt.Println()
			return ctl.Logs(ctx, s.Name, lifecycle.LogOptions{Tail: 100})
		}
		return nil
	},
}

func printServices(cmd *cobra.Command, project string) error {
	mgr, err := docker.NewManager()
	if err != nil {
		return err
	}
	defer mgr.Close()
	services, err := mgr.ProjectServices(cmd.Context(), project)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return nil
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tIMAGE\tSTATE\tHEALTH")
	for _, svc := range services {
		health := svc.Health
		if health == "" {
			health = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", svc.Service, svc.Image, svc.State, health)
	}
	return w.Flush()
}

func init() {
	infoCmd.Flags().BoolVarP(&infoLogs, "logs", "l", false, "include the last 100 log lines")
	rootCmd.AddCommand(infoCmd)
}
