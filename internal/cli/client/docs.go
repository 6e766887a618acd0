package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// Document mirrors the server's knowledge document representation.
type Document struct {
	ID          string `json:"id"`
	AgentID     string `json:"agent_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url,omitempty"`
	Enabled     bool   `json:"enabled"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// DocumentPage is one page of an agent's documents.
type DocumentPage struct {
	Items   []Document `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

// DocumentUpdate is the server's answer to a document edit.
type DocumentUpdate struct {
	Document           Document `json:"document"`
	RegenerationQueued bool     `json:"regeneration_queued"`
	RegenerationJobID  string   `json:"regeneration_job_id,omitempty"`
}

// Segment mirrors a stored chunk or block without its vector.
type Segment struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Index      int    `json:"index"`
	Title      string `json:"title,omitempty"`
	TitlePath  string `json:"title_path,omitempty"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

// DocsCmd creates the docs command.
func DocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage knowledge documents",
	}

	cmd.AddCommand(docsListCmd())
	cmd.AddCommand(docsAddCmd())
	cmd.AddCommand(docsGetCmd())
	cmd.AddCommand(docsUpdateCmd())
	cmd.AddCommand(docsDeleteCmd())
	cmd.AddCommand(docsSegmentsCmd())

	return cmd
}

func docsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runDocsList(cmd.Context(), api, args[0], limit, cursor, outputJSON(cmd))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runDocsList(ctx context.Context, api *APIClient, agentID string, limit int, cursor string, asJSON bool) error {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/agents/" + agentID + "/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page DocumentPage
	if err := api.Decode(ctx, http.MethodGet, path, nil, &page); err != nil {
		return err
	}

	if asJSON {
		printJSON(page)
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Println("No documents")
		return nil
	}
	for _, d := range page.Items {
		state := "enabled"
		if !d.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-40s  %s  %s\n", d.ID, d.Title, d.SourceType, state)
	}
	if page.HasMore {
		fmt.Printf("\nMore results: --cursor %s\n", page.Cursor)
	}
	return nil
}

func docsAddCmd() *cobra.Command {
	var description, sourceType, sourceURL string

	cmd := &cobra.Command{
		Use:   "add <agent-id> <title>",
		Short: "Create a knowledge document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]string{
				"title":       args[1],
				"description": description,
				"source_type": sourceType,
				"source_url":  sourceURL,
			}
			var doc Document
			if err := api.Decode(cmd.Context(), http.MethodPost, "/agents/"+args[0]+"/documents", body, &doc); err != nil {
				return err
			}
			if outputJSON(cmd) {
				printJSON(doc)
				return nil
			}
			fmt.Printf("Created document %s (%s)\n", doc.Title, doc.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Document description")
	cmd.Flags().StringVar(&sourceType, "source-type", "text", "Source type (text, object, url)")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "Source URL or object key")

	return cmd
}

func docsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show a knowledge document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var doc Document
			if err := api.Decode(cmd.Context(), http.MethodGet, "/documents/"+args[0], nil, &doc); err != nil {
				return err
			}
			if outputJSON(cmd) {
				printJSON(doc)
				return nil
			}
			fmt.Printf("ID:          %s\n", doc.ID)
			fmt.Printf("Title:       %s\n", doc.Title)
			if doc.Description != "" {
				fmt.Printf("Description: %s\n", doc.Description)
			}
			fmt.Printf("Source:      %s %s\n", doc.SourceType, doc.SourceURL)
			fmt.Printf("Enabled:     %t\n", doc.Enabled)
			fmt.Printf("Updated:     %s\n", doc.UpdatedAt)
			return nil
		},
	}
}

func docsUpdateCmd() *cobra.Command {
	var (
		title, description string
		enable, disable    bool
	)

	cmd := &cobra.Command{
		Use:   "update <document-id>",
		Short: "Edit a knowledge document",
		Long:  "Edits document metadata. Changing the title queues regeneration of its embeddings.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return fmt.Errorf("use either --enable or --disable, not both")
			}

			body := map[string]interface{}{}
			if cmd.Flags().Changed("title") {
				body["title"] = title
			}
			if cmd.Flags().Changed("description") {
				body["description"] = description
			}
			if enable {
				body["enabled"] = true
			}
			if disable {
				body["enabled"] = false
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to update")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var result DocumentUpdate
			if err := api.Decode(cmd.Context(), http.MethodPut, "/documents/"+args[0], body, &result); err != nil {
				return err
			}
			if outputJSON(cmd) {
				printJSON(result)
				return nil
			}
			fmt.Printf("Updated document %s\n", result.Document.ID)
			if result.RegenerationQueued {
				fmt.Printf("Regeneration queued (job %s)\n", result.RegenerationJobID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the document")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the document")

	return cmd
}

func docsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete(cmd.Context(), "/documents/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted document %s\n", args[0])
			return nil
		},
	}
}

func docsSegmentsCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "segments <document-id>",
		Short: "List a document's chunks and blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := "/documents/" + args[0] + "/segments"
			if kind != "" {
				path += "?kind=" + url.QueryEscape(kind)
			}

			var segments []Segment
			if err := api.Decode(cmd.Context(), http.MethodGet, path, nil, &segments); err != nil {
				return err
			}
			if outputJSON(cmd) {
				printJSON(segments)
				return nil
			}
			for _, s := range segments {
				head := s.Title
				if head == "" {
					head = preview(s.Content, 60)
				}
				fmt.Printf("%s  %-5s #%-3d  %s\n", s.ID, s.Kind, s.Index, head)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Restrict to chunk or block")

	return cmd
}
