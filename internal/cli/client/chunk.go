package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// AppendResult mirrors the server's report of appended segments.
type AppendResult struct {
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Policy     string `json:"policy"`
	Created    int    `json:"created"`
	Segments   []struct {
		ID    string `json:"id"`
		Index int    `json:"index"`
	} `json:"segments"`
}

// SplitOptions mirrors the server's rule-based split parameters.
type SplitOptions struct {
	MinLength int    `json:"min_length"`
	MaxLength int    `json:"max_length"`
	Splitter  string `json:"splitter"`
	Overlap   int    `json:"overlap"`
}

// ChunkCmd creates the chunk command.
func ChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Append chunks to a document",
	}

	cmd.AddCommand(chunkAddCmd())
	cmd.AddCommand(chunkBulkCmd())
	cmd.AddCommand(chunkSmartCmd())

	return cmd
}

func chunkAddCmd() *cobra.Command {
	var title, titlePath, text, file string

	cmd := &cobra.Command{
		Use:   "add <document-id>",
		Short: "Append a single chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readText(text, file)
			if err != nil {
				return err
			}
			if content == "" {
				return fmt.Errorf("chunk content is required (--text or --file)")
			}

			body := map[string]string{"title": title, "title_path": titlePath, "content": content}
			return postAppend(cmd, args[0], "/chunks", body)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Chunk title")
	cmd.Flags().StringVar(&titlePath, "title-path", "", "Heading path, e.g. \"Guide > Setup\"")
	cmd.Flags().StringVar(&text, "text", "", "Chunk content")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read content from file (- for stdin)")

	return cmd
}

func chunkBulkCmd() *cobra.Command {
	var (
		text, file string
		split      SplitOptions
	)

	cmd := &cobra.Command{
		Use:   "bulk <document-id>",
		Short: "Split text by rules and append the chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readText(text, file)
			if err != nil {
				return err
			}
			if content == "" {
				return fmt.Errorf("text is required (--text or --file)")
			}

			body := map[string]interface{}{"text": content, "split": split}
			return postAppend(cmd, args[0], "/chunks/bulk", body)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to split")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from file (- for stdin)")
	cmd.Flags().IntVar(&split.MinLength, "min", 100, "Minimum chunk length")
	cmd.Flags().IntVar(&split.MaxLength, "max", 1500, "Maximum chunk length")
	cmd.Flags().StringVar(&split.Splitter, "splitter", "paragraph", "Splitter (paragraph or sentence)")
	cmd.Flags().IntVar(&split.Overlap, "overlap", 50, "Characters carried between chunks")

	return cmd
}

func chunkSmartCmd() *cobra.Command {
	var text, file string

	cmd := &cobra.Command{
		Use:   "smart <document-id>",
		Short: "Split text with the generation model and append the chunks",
		Long:  "Splits the given text, or the document's own source when no text is given, into semantic chunks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readText(text, file)
			if err != nil {
				return err
			}

			var body interface{}
			if content != "" {
				body = map[string]string{"text": content}
			}
			return postAppend(cmd, args[0], "/chunks/smart", body)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to split")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from file (- for stdin)")

	return cmd
}

// ImportCmd creates the import command for knowledge blocks.
func ImportCmd() *cobra.Command {
	var text, file string

	cmd := &cobra.Command{
		Use:   "import <document-id>",
		Short: "Import titled knowledge blocks",
		Long:  "Splits the given text, or the document's own source, into titled blocks and appends them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readText(text, file)
			if err != nil {
				return err
			}

			var body interface{}
			if content != "" {
				body = map[string]string{"text": content}
			}
			return postAppend(cmd, args[0], "/blocks/import", body)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to import")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from file (- for stdin)")

	return cmd
}

func postAppend(cmd *cobra.Command, documentID, suffix string, body interface{}) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}
	return runAppend(cmd.Context(), api, documentID, suffix, body, outputJSON(cmd))
}

func runAppend(ctx context.Context, api *APIClient, documentID, suffix string, body interface{}, asJSON bool) error {
	var result AppendResult
	if err := api.Decode(ctx, http.MethodPost, "/documents/"+documentID+suffix, body, &result); err != nil {
		return err
	}

	if asJSON {
		printJSON(result)
		return nil
	}

	fmt.Printf("Appended %d %s segment(s) to %s (%s)\n", result.Created, result.Kind, result.DocumentID, result.Policy)
	return nil
}

// RegenerateCmd creates the regenerate command.
func RegenerateCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "regenerate <document-id>",
		Short: "Recompute a document's embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runRegenerate(cmd.Context(), api, args[0], kind, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Restrict to chunk or block segments")

	return cmd
}

// RegenerationReport mirrors the server's regeneration outcome.
type RegenerationReport struct {
	DocumentID    string `json:"document_id"`
	TotalSegments int    `json:"total_segments"`
	SuccessCount  int    `json:"success_count"`
	ErrorCount    int    `json:"error_count"`
	Partial       bool   `json:"partial"`
	Failures      []struct {
		SegmentID string `json:"segment_id"`
		Error     string `json:"error"`
	} `json:"failures,omitempty"`
}

func runRegenerate(ctx context.Context, api *APIClient, documentID, kind string, asJSON bool) error {
	var body interface{}
	if kind != "" {
		body = map[string]string{"kind": kind}
	}

	var report RegenerationReport
	if err := api.Decode(ctx, http.MethodPost, "/documents/"+documentID+"/embeddings/regenerate", body, &report); err != nil {
		return err
	}

	if asJSON {
		printJSON(report)
		return nil
	}

	fmt.Printf("Regenerated %d/%d segment(s)\n", report.SuccessCount, report.TotalSegments)
	for _, f := range report.Failures {
		fmt.Printf("  failed %s: %s\n", f.SegmentID, f.Error)
	}
	return nil
}
