package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// Agent mirrors the server's agent representation.
type Agent struct {
	ID                 string `json:"id"`
	OrgID              string `json:"org_id"`
	Name               string `json:"name"`
	Model              string `json:"model"`
	HasEmbeddingAPIKey bool   `json:"has_embedding_api_key"`
	CreatedAt          string `json:"created_at"`
}

// AgentsCmd creates the agents command.
func AgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List and create agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runListAgents(cmd.Context(), api, outputJSON(cmd))
		},
	}

	cmd.AddCommand(agentsCreateCmd())
	return cmd
}

func agentsCreateCmd() *cobra.Command {
	var model, embeddingKey string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]string{"name": args[0], "model": model, "embedding_api_key": embeddingKey}
			var agent Agent
			if err := api.Decode(cmd.Context(), http.MethodPost, "/agents", body, &agent); err != nil {
				return err
			}
			if outputJSON(cmd) {
				printJSON(agent)
				return nil
			}
			fmt.Printf("Created agent %s (%s)\n", agent.Name, agent.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Generation model for smart splitting")
	cmd.Flags().StringVar(&embeddingKey, "embedding-key", "", "Embedding provider API key")

	return cmd
}

func runListAgents(ctx context.Context, api *APIClient, asJSON bool) error {
	var agents []Agent
	if err := api.Decode(ctx, http.MethodGet, "/agents", nil, &agents); err != nil {
		return err
	}

	if asJSON {
		printJSON(agents)
		return nil
	}

	if len(agents) == 0 {
		fmt.Println("No agents")
		return nil
	}
	for _, a := range agents {
		key := "no key"
		if a.HasEmbeddingAPIKey {
			key = "key set"
		}
		fmt.Printf("%s  %s  [%s]\n", a.ID, a.Name, key)
	}
	return nil
}
