package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/lifecycle"
	"github.com/sarth-shah20/quay/internal/stack"
)

var statusJSON bool

type stackRow struct {
	lifecycle.Status
	Source string
	Error  string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of every stack",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := stack.Discover(paths.Stacks)
		if err != nil {
			return err
		}
		prober, err := newProber()
		if err != nil {
			return err
		}

		names := []string{stack.SystemName}
		sources := []string{"bundled"}
		for _, e := range entries {
			if e.Valid() {
				names = append(names, e.Stack.Name)
				sources = append(sources, e.Stack.Source.String())
			}
		}
		statuses := prober.ProbeAll(cmd.Context(), names)

		rows := make([]stackRow, 0, len(entries)+1)
		for i, st := range statuses {
			rows = append(rows, stackRow{Status: st, Source: sources[i]})
		}
		for _, e := range entries {
			if !e.Valid() {
				rows = append(rows, stackRow{Status: lifecycle.Status{Name: e.Path, State: lifecycle.Unknown}, Error: e.Error()})
			}
		}

		if statusJSON {
			return printStatusJSON(rows)
		}
		printStatusTable(rows)
		return nil
	},
}

func printStatusJSON(rows []stackRow) error {
	list := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		status, err := json.Marshal(r.Status)
		if err != nil {
			return err
		}
		var merged map[string]any
		if err := json.Unmarshal(status, &merged); err != nil {
			return err
		}
		if r.Source != "" {
			merged["source"] = r.Source
		}
		if r.Error != "" {
			merged["invalid"] = r.Error
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		list = append(list, raw)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func statusColor(st lifecycle.State) *color.Color {
	switch st {
	case lifecycle.Running:
		return color.New(color.FgGreen)
	case lifecycle.Partial:
		return color.New(color.FgYellow)
	case lifecycle.Down, lifecycle.Unknown:
		return color.New(color.FgRed)
	default:
		return color.New(color.Faint)
	}
}

func printStatusTable(rows []stackRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	// Status goes last so color codes do not skew the columns.
	fmt.Fprintln(w, "STACK\tSOURCE\tSTATUS")
	for _, r := range rows {
		text := r.Status.String()
		detail := r.Source
		if r.Error != "" {
			text = "× Invalid"
			detail = r.Error
		} else if r.Err != nil {
			detail = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, detail, statusColor(r.State).Sprint(text))
	}
	w.Flush()
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}
