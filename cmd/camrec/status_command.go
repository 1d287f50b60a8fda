package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"camrec/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, pipeline and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.apiClient()
			resp, err := client.Health(cmd.Context())
			if jsonOutput {
				if err != nil {
					return fmt.Errorf("query daemon health: %w", err)
				}
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			if err != nil {
				printSection(stdout, "Daemon", []string{
					renderStatusLine("Daemon", statusWarn, fmt.Sprintf("not reachable at %s (%v)", client.BaseURL(), err), colorize),
				}, colorize)
				fmt.Fprintln(stdout)
				printSection(stdout, "Local Checks", preflightLines(preflight.RunAll(cmd.Context(), ctx.configValue()), colorize), colorize)
				return nil
			}

			printSection(stdout, "Daemon", daemonLines(client.BaseURL(), resp, colorize), colorize)
			fmt.Fprintln(stdout)
			printSection(stdout, "Pipeline", pipelineLines(resp.Stats, colorize), colorize)
			fmt.Fprintln(stdout)
			printSection(stdout, "Dependencies", dependencyLines(resp.Dependencies, colorize), colorize)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw health response as JSON")
	return cmd
}

func printSection(w io.Writer, title string, lines []string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(w, line)
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
