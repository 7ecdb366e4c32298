package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dedupe-service/internal/domain/dedupe"

	"github.com/spf13/cobra"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var primary int64
	var records []int64
	var groupID string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fold records into a primary record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if primary <= 0 {
				return errors.New("--primary is required")
			}
			if len(records) == 0 {
				return errors.New("--records is required")
			}

			req := dedupe.MergeRequest{GroupID: groupID, PrimaryID: primary, RecordIDs: records}
			var resp dedupe.MergeResponse
			if err := ctx.client().post(cmd.Context(), "/api/v1/merge-duplicates", req, &resp); err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}

			p := resp.PrimaryRecord
			if p == nil {
				return errors.New("server returned no primary record")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Merged into %s (id %d, %s)\n", p.CustomerID, p.ID, strings.TrimSpace(p.FullName()))
			if len(resp.AbsorbedIDs) == 0 {
				fmt.Fprintln(out, "No new records absorbed")
				return nil
			}
			fmt.Fprintf(out, "Absorbed: %s\n", strings.Join(resp.AbsorbedIDs, ", "))
			return nil
		},
	}

	cmd.Flags().Int64Var(&primary, "primary", 0, "Internal id of the record to keep")
	cmd.Flags().Int64SliceVar(&records, "records", nil, "Internal ids of the group members (comma separated)")
	cmd.Flags().StringVar(&groupID, "group", "", "Group id for bookkeeping")
	return cmd
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Apply a batch of merges from a JSON file",
		Long:  `The file holds {"groups":[{"group_id":"...","primary_id":1,"record_ids":[1,2]}]}. Use "-" to read stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}

			req, err := readBatchFile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var resp dedupe.BatchMergeResponse
			if err := ctx.client().post(cmd.Context(), "/api/v1/merge-duplicates/batch", req, &resp); err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderBatchResults(resp.Results))
			fmt.Fprintf(out, "%d processed, %d succeeded, %d failed\n", resp.TotalProcessed, resp.SuccessCount, resp.FailureCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Batch request JSON file")
	return cmd
}

func readBatchFile(path string, stdin io.Reader) (*dedupe.BatchMergeRequest, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req dedupe.BatchMergeRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(req.Groups) == 0 {
		return nil, errors.New("batch file has no groups")
	}
	return &req, nil
}

func renderBatchResults(results []dedupe.GroupResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		primary := ""
		if r.PrimaryID > 0 {
			primary = strconv.FormatInt(r.PrimaryID, 10)
		}
		rows = append(rows, []string{r.GroupID, status, primary, r.Message})
	}
	return renderTable(
		[]string{"Group", "Status", "Primary", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}
