package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query               string   `json:"query"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	Kind                string   `json:"kind,omitempty"`
	Limit               int      `json:"limit,omitempty"`
}

// SearchResult represents a single matched segment.
type SearchResult struct {
	SegmentID       string  `json:"segment_id"`
	DocumentID      string  `json:"document_id"`
	Kind            string  `json:"kind"`
	Index           int     `json:"index"`
	Title           string  `json:"title,omitempty"`
	TitlePath       string  `json:"title_path,omitempty"`
	Content         string  `json:"content"`
	Similarity      float64 `json:"similarity"`
	DocumentTitle   string  `json:"document_title"`
	DocumentEnabled bool    `json:"document_enabled"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results   []SearchResult `json:"results"`
	Threshold float64        `json:"threshold"`
	Count     int            `json:"count"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		threshold float64
		kind      string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search <agent-id> <query>",
		Short: "Search an agent's knowledge",
		Long:  "Embeds the query with the agent's credential and returns the most similar segments.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := SearchRequest{Query: args[1], Kind: kind, Limit: limit}
			if cmd.Flags().Changed("threshold") {
				req.SimilarityThreshold = &threshold
			}
			return runSearch(cmd.Context(), api, args[0], req, outputJSON(cmd))
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.3, "Minimum similarity (0-1)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Restrict to chunk or block segments")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")

	return cmd
}

func runSearch(ctx context.Context, api *APIClient, agentID string, req SearchRequest, asJSON bool) error {
	var resp SearchResponse
	if err := api.Decode(ctx, http.MethodPost, "/agents/"+agentID+"/search", req, &resp); err != nil {
		return err
	}

	if asJSON {
		printJSON(resp)
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Printf("No segments above similarity %.2f\n", resp.Threshold)
		return nil
	}

	for i, r := range resp.Results {
		label := r.DocumentTitle
		if r.Title != "" {
			label += " / " + r.Title
		}
		fmt.Printf("%d. [%.3f] %s (%s #%d)\n", i+1, r.Similarity, label, r.Kind, r.Index)
		fmt.Printf("   %s\n", preview(r.Content, 160))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
