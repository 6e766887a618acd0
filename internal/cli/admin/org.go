package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/repository"
	"github.com/cloo-solutions/agentkb/internal/service"
)

const listTimeFormat = "2006-01-02 15:04:05"

func newAuthService(pool *pgxpool.Pool) *service.AuthService {
	return service.NewAuthService(repository.NewOrgRepository(pool), repository.NewAPIKeyRepository(pool), nil)
}

// withAuth opens a pool for the duration of fn.
func withAuth(fn func(ctx context.Context, auth *service.AuthService) error) error {
	ctx := context.Background()
	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, newAuthService(pool))
}

func orgJSON(org *domain.Organization) map[string]interface{} {
	return map[string]interface{}{
		"id":         org.ID,
		"name":       org.Name,
		"created_at": org.CreatedAt,
	}
}

func printMore(hasMore bool, cursor string) {
	if hasMore && cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", cursor)
	}
}

func OrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	cmd.AddCommand(orgCreateCmd(), orgListCmd())
	return cmd
}

func orgCreateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				org, err := auth.CreateOrg(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to create organization: %w", err)
				}
				if output == "json" {
					printJSON(orgJSON(org))
					return nil
				}
				fmt.Printf("Organization created: %s (%s)\n", org.Name, org.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")
	return cmd
}

func orgListCmd() *cobra.Command {
	var (
		output string
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				page, err := auth.ListOrgs(ctx, cursor, limit)
				if err != nil {
					return fmt.Errorf("failed to list organizations: %w", err)
				}

				if output == "json" {
					items := make([]map[string]interface{}, 0, len(page.Items))
					for _, org := range page.Items {
						items = append(items, orgJSON(org))
					}
					printJSON(map[string]interface{}{"items": items, "cursor": page.NextCursor, "has_more": page.HasMore})
					return nil
				}

				if len(page.Items) == 0 {
					fmt.Println("No organizations found")
					return nil
				}
				for _, org := range page.Items {
					fmt.Printf("  %s  %-30s %s\n", org.ID, org.Name, org.CreatedAt.Local().Format(listTimeFormat))
				}
				printMore(page.HasMore, page.NextCursor)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	return cmd
}

func formatRevoked(at *time.Time) string {
	if at == nil {
		return ""
	}
	return at.Local().Format(listTimeFormat)
}
