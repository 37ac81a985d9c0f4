package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/helixbot/helix-poller/internal/stats"
	"github.com/spf13/cobra"
)

func newTopQuestionsCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "top-questions",
		Short: "Print the most frequently asked AI questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			aiStats, err := stats.Load(cmd.Context(), store)
			if err != nil {
				return err
			}
			top := stats.TopQuestions(aiStats.History, limit)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"total": aiStats.Total, "top": top})
			}

			fmt.Fprintf(out, "Total answered: %d\n", aiStats.Total)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COUNT\tQUESTION")
			for _, q := range top {
				fmt.Fprintf(tw, "%d\t%s\n", q.Count, q.Query)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of questions to show.")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table.")
	return cmd
}

func newClearStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-stats",
		Short: "Hide all recorded AI questions from reports (the total is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := stats.NewRecorder(store, a.cfg.Stats.HistoryLimit, a.logger).Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "AI stats cleared")
			return nil
		},
	}
}
