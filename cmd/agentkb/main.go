package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/agentkb/internal/cli"
	"github.com/cloo-solutions/agentkb/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentkb",
		Short: "AgentKB CLI - knowledge bases for WhatsApp AI agents",
		Long: `AgentKB CLI manages the documents, chunks and blocks your agents retrieve from.

Environment variables:
  AGENTKB_API_KEY   API key for authentication (required)
  AGENTKB_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AgentsCmd())
	rootCmd.AddCommand(client.DocsCmd())
	rootCmd.AddCommand(client.ChunkCmd())
	rootCmd.AddCommand(client.ImportCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.RegenerateCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
