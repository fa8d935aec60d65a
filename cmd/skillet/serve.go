package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/skillet-dev/skillet/pkg/logger"
	"github.com/skillet-dev/skillet/pkg/presenter"
	"github.com/skillet-dev/skillet/pkg/tools"
	"github.com/skillet-dev/skillet/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the skill tools over MCP stdio",
	Long: `Expose the skill tools (list_skills, activate_skill, run_skill_script,
read_skill_resource, and bash when a skill grants it) as an MCP server speaking
the stdio transport. Point an MCP-capable agent at this command to give it
skills.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			presenter.Error(err, "Failed to load configuration")
			os.Exit(1)
		}

		manager, err := newManager(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to initialize skill manager")
			os.Exit(1)
		}

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			go func() {
				if err := manager.Watch(ctx); err != nil {
					logger.G(ctx).WithError(err).Error("skill directory watch failed")
				}
			}()
		}

		toolset := tools.DefaultTools(manager, newExecutor(cfg))
		srv := server.NewMCPServer("skillet", version.Get().Version,
			server.WithToolCapabilities(true))

		for _, tool := range toolset {
			schema, err := json.Marshal(tool.GenerateSchema())
			if err != nil {
				presenter.Error(err, "Failed to generate tool schema")
				os.Exit(1)
			}
			srv.AddTool(
				mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema),
				toolHandler(toolset, tool.Name()),
			)
		}

		logger.G(ctx).WithField("tools", len(toolset)).Info("starting MCP stdio server")
		if err := server.ServeStdio(srv); err != nil {
			presenter.Error(err, "MCP server exited")
			os.Exit(1)
		}
	},
}

func toolHandler(toolset []tools.Tool, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		parameters, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result := tools.RunTool(ctx, toolset, name, string(parameters))
		if result.IsError() {
			return mcp.NewToolResultError(result.Error), nil
		}
		return mcp.NewToolResultText(result.Result), nil
	}
}

func init() {
	serveCmd.Flags().Bool("watch", false, "Rediscover skills when the skill directories change")
	rootCmd.AddCommand(serveCmd)
}
