// Package cmd wires configuration, logging and the MCP server into the CLI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/cozekit/cozemcp/internal/config"
	"github.com/cozekit/cozemcp/internal/coze"
	"github.com/cozekit/cozemcp/internal/log"
	"github.com/cozekit/cozemcp/internal/mcp"
	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const serverName = "cozemcp"

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serverName,
		Short: "MCP server bridging to the Coze platform",
		Long: `cozemcp exposes the Coze conversational AI platform as MCP tools
over stdio: list bots and knowledge bases, create datasets, upload
documents, and chat with bots synchronously or via streaming.

Point an MCP client (Claude Desktop, Cursor, ...) at this binary and
provide an API token via --api-key or COZE_API_TOKEN.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	flags := cmd.Flags()
	flags.String("api-key", "", "Coze API token (overrides COZE_API_TOKEN)")
	flags.String("base-url", "", "Coze API base URL (default https://api.coze.cn)")
	flags.String("space-id", "", "default workspace id for listing tools")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	return cmd
}

// runServe loads configuration, builds the API client and blocks serving the
// MCP protocol on stdio until the context is canceled.
func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	// Flag bindings put CLI flags at the top of the precedence order.
	bindings := map[string]string{
		"api_token": "api-key",
		"base_url":  "base-url",
		"space_id":  "space-id",
		"log_level": "log-level",
	}
	for key, flag := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := coze.NewClient(coze.Config{
		BaseURL:           cfg.BaseURL,
		Token:             cfg.Token,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		PollInterval:      time.Duration(cfg.PollIntervalSeconds) * time.Second,
		PollMaxAttempts:   cfg.PollMaxAttempts,
		RequestsPerSecond: cfg.RequestsPerSecond,
		CacheTTL:          time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Logger:            logger.With("component", "coze"),
	})
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	if cfg.Token == "" {
		logger.Warn("no API token configured; tool calls will fail with authentication errors",
			"hint", "set COZE_API_TOKEN or pass --api-key")
	}

	server, err := mcp.NewServer(mcp.Config{
		Name:           serverName,
		Version:        AppVersion,
		Client:         client,
		DefaultSpaceID: cfg.SpaceID,
		Logger:         logger.With("component", "mcp"),
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready", "name", serverName, "version", AppVersion, "transport", "stdio")

	if err := server.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
