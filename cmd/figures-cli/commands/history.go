package commands

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/figure-service/cmd/figures-cli/ui"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/history"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded extraction batches",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := root.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()
			if application.History == nil {
				return errors.New("history is disabled (history.driver is none)")
			}

			if limit <= 0 {
				limit = root.cfg.History.Limit
			}
			entries, err := application.History.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printEntries(entries)
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of batches (default from config)")

	show := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Print one batch as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := root.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()
			if application.History == nil {
				return errors.New("history is disabled (history.driver is none)")
			}

			result, err := application.History.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func printEntries(entries []history.Entry) {
	if len(entries) == 0 {
		ui.Info("No batches recorded")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.BatchID,
			e.StartedAt.Local().Format(time.DateTime),
			ui.Truncate(e.Source, 40),
			strconv.Itoa(e.Total),
			strconv.Itoa(e.Failed),
			strconv.Itoa(e.Figures),
			ui.FormatDuration(time.Duration(e.ElapsedSeconds * float64(time.Second))),
		})
	}
	ui.Table([]string{"BATCH", "STARTED", "SOURCE", "FILES", "FAILED", "FIGURES", "TIME"}, rows)
}
