package admin

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

func APIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Issue, list and revoke API keys",
	}

	cmd.AddCommand(apiKeyCreateCmd(), apiKeyListCmd(), apiKeyRevokeCmd())
	return cmd
}

func apiKeyJSON(key *domain.APIKey) map[string]interface{} {
	return map[string]interface{}{
		"id":         key.ID,
		"org_id":     key.OrgID,
		"name":       key.Name,
		"status":     key.Status(),
		"created_at": key.CreatedAt,
		"revoked_at": key.RevokedAt,
	}
}

func apiKeyCreateCmd() *cobra.Command {
	var orgRef, name, output string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				org, err := auth.ResolveOrg(ctx, orgRef)
				if err != nil {
					return fmt.Errorf("organization %q: %w", orgRef, err)
				}

				issued, err := auth.IssueAPIKey(ctx, org.ID, name)
				if err != nil {
					return fmt.Errorf("failed to issue API key: %w", err)
				}

				if output == "json" {
					data := apiKeyJSON(issued.Key)
					data["token"] = issued.Token
					printJSON(data)
					return nil
				}
				fmt.Printf("Issued key %s (%s) for %s\n", issued.Key.ID, issued.Key.Name, org.Name)
				fmt.Printf("Token: %s\n", issued.Token)
				fmt.Fprintln(os.Stderr, "The token is shown only once. Store it now.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&orgRef, "org", "o", "", "Organization ID or name (required)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Key name (required)")
	cmd.Flags().StringVar(&output, "output", "text", "Output format (text or json)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var (
		orgRef, output, cursor string
		limit                  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an organization's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				org, err := auth.ResolveOrg(ctx, orgRef)
				if err != nil {
					return fmt.Errorf("organization %q: %w", orgRef, err)
				}

				page, err := auth.ListAPIKeys(ctx, org.ID, cursor, limit)
				if err != nil {
					return fmt.Errorf("failed to list API keys: %w", err)
				}

				if output == "json" {
					items := make([]map[string]interface{}, 0, len(page.Items))
					for _, key := range page.Items {
						items = append(items, apiKeyJSON(key))
					}
					printJSON(map[string]interface{}{"items": items, "cursor": page.NextCursor, "has_more": page.HasMore})
					return nil
				}

				if len(page.Items) == 0 {
					fmt.Printf("No API keys for %s\n", org.Name)
					return nil
				}
				for _, key := range page.Items {
					fmt.Printf("  %s  %-20s %-8s %s %s\n", key.ID, key.Name, key.Status(),
						key.CreatedAt.Local().Format(listTimeFormat), formatRevoked(key.RevokedAt))
				}
				printMore(page.HasMore, page.NextCursor)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&orgRef, "org", "o", "", "Organization ID or name (required)")
	cmd.Flags().StringVar(&output, "output", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func apiKeyRevokeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				if err := auth.RevokeAPIKey(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to revoke API key: %w", err)
				}
				if output == "json" {
					printJSON(map[string]interface{}{"id": args[0], "status": "revoked"})
					return nil
				}
				fmt.Printf("API key %s revoked\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&output, "output", "text", "Output format (text or json)")
	return cmd
}
