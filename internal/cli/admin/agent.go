package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/repository"
	"github.com/cloo-solutions/agentkb/internal/service"
)

func AgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
		Long:  "Create, list and delete agents and set their embedding credentials",
	}

	cmd.AddCommand(AgentCreateCmd())
	cmd.AddCommand(AgentListCmd())
	cmd.AddCommand(AgentSetKeyCmd())
	cmd.AddCommand(AgentDeleteCmd())

	return cmd
}

func agentJSON(a *domain.Agent) map[string]interface{} {
	return map[string]interface{}{
		"id":                    a.ID,
		"org_id":                a.OrgID,
		"name":                  a.Name,
		"model":                 a.Model,
		"has_embedding_api_key": a.HasEmbeddingCredential(),
		"created_at":            a.CreatedAt,
	}
}

func printJSON(v interface{}) {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonBytes))
}

func AgentCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new agent",
		Long:  "Create a new agent in an organization",
		Args:  cobra.ExactArgs(1),
		RunE:  runAgentCreate,
	}

	cmd.Flags().StringP("org", "o", "", "Organization ID or name (required)")
	cmd.Flags().StringP("model", "m", "", "Generative model used for semantic splitting")
	cmd.Flags().String("embedding-key", "", "OpenAI API key used for this agent's embeddings")
	cmd.Flags().String("output", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("org")

	return cmd
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	orgRef, _ := cmd.Flags().GetString("org")
	model, _ := cmd.Flags().GetString("model")
	key, _ := cmd.Flags().GetString("embedding-key")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	org, err := newAuthService(pool).ResolveOrg(ctx, orgRef)
	if err != nil {
		return fmt.Errorf("organization %q: %w", orgRef, err)
	}
	orgID := org.ID

	agentSvc := service.NewAgentService(repository.NewAgentRepository(pool))
	agent, err := agentSvc.CreateAgent(ctx, service.CreateAgentInput{
		Caller:          service.SystemCaller(),
		OrgID:           orgID,
		Name:            args[0],
		Model:           model,
		EmbeddingAPIKey: key,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	if outputFormat == "json" {
		printJSON(agentJSON(agent))
	} else {
		fmt.Printf("Agent created: %s (%s)\n", agent.Name, agent.ID)
		if !agent.HasEmbeddingCredential() {
			fmt.Println("No embedding key set. Use 'agent set-key' before adding knowledge.")
		}
	}

	return nil
}

func AgentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents of an organization",
		RunE:  runAgentList,
	}

	cmd.Flags().StringP("org", "o", "", "Organization ID or name (required)")
	cmd.Flags().String("output", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("org")

	return cmd
}

func runAgentList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	orgRef, _ := cmd.Flags().GetString("org")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	org, err := newAuthService(pool).ResolveOrg(ctx, orgRef)
	if err != nil {
		return fmt.Errorf("organization %q: %w", orgRef, err)
	}
	orgID := org.ID

	agentSvc := service.NewAgentService(repository.NewAgentRepository(pool))
	agents, err := agentSvc.ListAgents(ctx, service.SystemCaller(), orgID)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	if outputFormat == "json" {
		items := make([]map[string]interface{}, len(agents))
		for i, a := range agents {
			items[i] = agentJSON(a)
		}
		printJSON(items)
		return nil
	}

	if len(agents) == 0 {
		fmt.Printf("No agents found for organization %s\n", orgID)
		return nil
	}
	fmt.Printf("Agents for organization %s:\n", orgID)
	for _, a := range agents {
		key := "no key"
		if a.HasEmbeddingCredential() {
			key = "key set"
		}
		fmt.Printf("  %s: %s (%s, created: %s)\n", a.ID, a.Name, key, a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func AgentSetKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-key <agent-id>",
		Short: "Set or clear an agent's embedding API key",
		Long:  "Set the OpenAI API key an agent uses for embeddings. Pass an empty --key to clear it.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAgentSetKey,
	}

	cmd.Flags().String("key", "", "OpenAI API key")
	cmd.MarkFlagRequired("key")

	return cmd
}

func runAgentSetKey(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	key, _ := cmd.Flags().GetString("key")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	agentSvc := service.NewAgentService(repository.NewAgentRepository(pool))
	agent, err := agentSvc.UpdateAgent(ctx, service.UpdateAgentInput{
		Caller:          service.SystemCaller(),
		AgentID:         args[0],
		EmbeddingAPIKey: &key,
	})
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}

	if agent.HasEmbeddingCredential() {
		fmt.Printf("Embedding key set for agent %s\n", agent.ID)
	} else {
		fmt.Printf("Embedding key cleared for agent %s\n", agent.ID)
	}
	return nil
}

func AgentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent and all of its knowledge",
		Args:  cobra.ExactArgs(1),
		RunE:  runAgentDelete,
	}

	cmd.Flags().Bool("yes", false, "Skip the confirmation check")

	return cmd
}

func runAgentDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("deleting agent %s removes all its documents and segments; rerun with --yes", args[0])
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	agentSvc := service.NewAgentService(repository.NewAgentRepository(pool))
	if err := agentSvc.DeleteAgent(ctx, service.SystemCaller(), args[0]); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	fmt.Printf("Agent deleted: %s\n", args[0])
	return nil
}
