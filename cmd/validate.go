package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/stack"
)

var validateCmd = &cobra.Command{
	Use:         "validate [path]",
	Short:       "Validate a stack descriptor, or every descriptor under the stacks directory",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			path := args[0]
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, stack.FileName)
			}
			s, err := stack.Load(path)
			if err != nil {
				return err
			}
			out.Ok("Loaded stack %q from %s, config is valid", s.Name, path)
			return nil
		}

		entries, err := stack.Discover(paths.Stacks)
		if err != nil {
			return err
		}
		invalid := 0
		for _, e := range entries {
			if e.Valid() {
				out.Ok("%s (%s)", e.Stack.Name, e.Path)
				continue
			}
			invalid++
			out.Error("%s: %s", e.Path, e.Error())
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d stack descriptors are invalid", invalid, len(entries))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
