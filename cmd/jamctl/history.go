package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent installs and testnet runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().String("kind", "", "Only show entries of this kind (install, start, stop)")
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries")
	historyCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	entries, err := env.history.List(types.HistoryKind(kind), limit)
	if err != nil {
		return err
	}

	if format != "text" {
		return printStructured(out, format, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tVERSION\tPID\tDETAIL")
	for _, e := range entries {
		pid := "-"
		if e.PID > 0 {
			pid = fmt.Sprint(e.PID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Version, pid, e.Detail)
	}
	return w.Flush()
}
