package main

import (
	"fmt"
	"strconv"
	"strings"

	"dedupe-service/internal/domain/dedupe"

	"github.com/spf13/cobra"
)

func newFindCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Scan all records and list duplicate groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dedupe.FindDuplicatesResponse
			if err := ctx.client().get(cmd.Context(), "/api/v1/find-duplicates", &resp); err != nil {
				return err
			}

			if reason != "" {
				resp.DuplicateGroups = filterByReason(resp.DuplicateGroups, dedupe.MatchReason(reason))
				resp.Total = len(resp.DuplicateGroups)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if resp.Total == 0 {
				fmt.Fprintln(out, "No duplicate groups found")
				return nil
			}
			fmt.Fprintln(out, renderGroups(resp.DuplicateGroups))
			fmt.Fprintf(out, "%d groups\n", resp.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Only show groups with this match reason (phone_exact, name_exact, name_fuzzy)")
	return cmd
}

func filterByReason(groups []dedupe.DuplicateGroup, reason dedupe.MatchReason) []dedupe.DuplicateGroup {
	out := make([]dedupe.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if g.MatchReason == reason {
			out = append(out, g)
		}
	}
	return out
}

func renderGroups(groups []dedupe.DuplicateGroup) string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		ids := make([]string, 0, len(g.Records))
		for _, id := range g.RecordIDs() {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		rows = append(rows, []string{
			g.GroupID,
			g.DisplayName,
			string(g.MatchReason),
			strconv.Itoa(g.Confidence),
			strings.Join(ids, ","),
		})
	}
	return renderTable(
		[]string{"Group", "Name", "Reason", "Confidence", "Record IDs"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
