package cmd

import (
	"context"
	"errors"

	mcpserver "browsernerd-agent/internal/mcp"
	"browsernerd-agent/internal/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand exposes the supervisor and runner as MCP tools.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over MCP (stdio or SSE)",
		Long: `Start an MCP server. Stdio is used unless an SSE port is configured
(mcp.sse_port) or passed with --sse-port. Logs go to stderr and the log file;
stdout carries only JSON-RPC.

The run-task tool needs a vision API key; the other tools work without one.`,
		Args: cobra.NoArgs,
		RunE: serveCommand,
	}
	cmd.Flags().Int("sse-port", 0, "Serve SSE on this port instead of stdio")
	return cmd
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("sse-port"); port != 0 {
		cfg.MCP.SSEPort = port
	}

	observability.InitializeStderr("browsernerd", cfg.Logging)
	defer observability.Sync()
	logger := observability.GetLogger()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := mcpserver.Deps{
		Engine:  a.engine,
		History: a.history,
		Parser:  a.parser,
		Logger:  logger,
	}
	if a.runner != nil {
		deps.Runner = a.runner
	}
	server, err := mcpserver.NewServer(cfg, deps)
	if err != nil {
		return err
	}

	if cfg.MCP.SSEPort > 0 {
		logger.Info("starting MCP SSE server", zap.Int("port", cfg.MCP.SSEPort))
		err = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		logger.Info("starting MCP stdio server")
		err = server.Start(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
