package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/agentkb/internal/cli"
	"github.com/cloo-solutions/agentkb/internal/cli/admin"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "agentkbd",
		Short:   "AgentKB daemon and CLI",
		Long:    "AgentKB daemon for running the knowledge API and managing organizations, API keys and agents",
		Version: version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.OrgCmd())
	rootCmd.AddCommand(admin.APIKeyCmd())
	rootCmd.AddCommand(admin.AgentCmd())
	rootCmd.AddCommand(admin.RegenerateCmd())
	rootCmd.AddCommand(admin.UploadCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
