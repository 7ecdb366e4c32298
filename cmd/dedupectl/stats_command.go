package main

import (
	"fmt"
	"strconv"

	"dedupe-service/internal/domain/customer"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts by merge status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats customer.Stats
			if err := ctx.client().get(cmd.Context(), "/api/v1/customers/stats", &stats); err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}

			rows := [][]string{
				{"Total", strconv.FormatInt(stats.TotalRecords, 10)},
				{"Clean", strconv.FormatInt(stats.CleanRecords, 10)},
				{"Merged (primary)", strconv.FormatInt(stats.MergedRecords, 10)},
				{"Merged into another", strconv.FormatInt(stats.MergedInto, 10)},
				{"Duplicates resolved", strconv.FormatInt(stats.DuplicatesSeen, 10)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Records", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
