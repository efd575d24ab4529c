package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/config"
	"github.com/sarth-shah20/quay/internal/manifest"
)

var diffCmd = &cobra.Command{
	Use:   "diff <stack>",
	Short: "Show how a deploy would change the stack's persisted manifest",
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
		rendered, err := ctl.Render(cmd.Context(), entry.Stack, entry.SourceDir())
		if err != nil {
			return err
		}

		var deployed *manifest.Manifest
		current := paths.ManifestPath(entry.Stack.Name)
		deployed, err = manifest.ReadFile(ctl.Fs, current)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		text, err := manifest.Diff(deployed, rendered, current, config.ManifestFileName+" (rendered)")
		if err != nil {
			return err
		}
		if text == "" {
			out.Ok("No changes")
			return nil
		}
		printDiff(text)
		return nil
	},
}

func printDiff(text string) {
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	for _, line := range strings.SplitAfter(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Print(line)
		case strings.HasPrefix(line, "+"):
			add.Print(line)
		case strings.HasPrefix(line, "-"):
			del.Print(line)
		case strings.HasPrefix(line, "@@"):
			hunk.Print(line)
		default:
			fmt.Print(line)
		}
	}
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
