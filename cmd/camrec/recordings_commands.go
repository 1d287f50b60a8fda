package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"camrec/internal/api"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"rec"},
		Short:   "Inspect finished recordings",
	}
	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsShowCommand(ctx))
	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var date string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings for a day (default today)",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := strings.TrimSpace(date)
			if filter == "" {
				filter = time.Now().Format("2006-01-02")
			}

			session, err := ctx.openRecordings(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			recs, err := session.Access.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list recordings: %w", err)
			}
			if jsonOutput {
				if recs == nil {
					recs = []api.Recording{}
				}
				return writeJSON(cmd, recs)
			}

			stdout := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintf(stdout, "No recordings for %s\n", filter)
				return nil
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "Start", "Duration", "Size", "File"},
				recordingRows(recs),
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
				recordingsFooter(recs),
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day (YYYY-MM-DD), month (YYYY-MM) or year (YYYY)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print recordings as JSON")
	return cmd
}

func newRecordingsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid recording id %q", args[0])
			}

			session, err := ctx.openRecordings(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			rec, err := session.Access.Describe(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("describe recording: %w", err)
			}
			if rec == nil {
				return fmt.Errorf("recording %d not found", id)
			}
			if jsonOutput {
				return writeJSON(cmd, rec)
			}

			stdout := cmd.OutOrStdout()
			for _, line := range recordingDetailLines(*rec) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the recording as JSON")
	return cmd
}

func recordingRows(recs []api.Recording) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.StartTime,
			formatSeconds(rec.Duration),
			formatBytes(rec.Filesize),
			rec.Filename,
		})
	}
	return rows
}

func recordingsFooter(recs []api.Recording) string {
	var total int64
	for _, rec := range recs {
		total += rec.Filesize
	}
	return fmt.Sprintf("%s recordings, %s", formatCount(uint64(len(recs))), formatBytes(total))
}

func recordingDetailLines(rec api.Recording) []string {
	return []string{
		fmt.Sprintf("ID:        %d", rec.ID),
		fmt.Sprintf("File:      %s", rec.Filename),
		fmt.Sprintf("URL path:  /recordings/%s", rec.Filename),
		fmt.Sprintf("Start:     %s", rec.StartTime),
		fmt.Sprintf("End:       %s", rec.EndTime),
		fmt.Sprintf("Duration:  %s", formatSeconds(rec.Duration)),
		fmt.Sprintf("Size:      %s (%s bytes)", formatBytes(rec.Filesize), formatCount(uint64(rec.Filesize))),
	}
}
