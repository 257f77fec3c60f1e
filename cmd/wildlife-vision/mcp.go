package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fpang/wildlife-vision/internal/mcpserver"
)

func newMCPCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve history and report tools to MCP clients over stdio",
		Long: `MCP starts a Model Context Protocol server on stdin/stdout with the tools
list_history, load_history, export_report and list_reports. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := o.openStores(ctx)
			if err != nil {
				return err
			}
			return mcpserver.Run(ctx, mcpserver.New(st.history, st.reports, version))
		},
	}
}
