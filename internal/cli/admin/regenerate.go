package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/agentkb/internal/config"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/openai"
	"github.com/cloo-solutions/agentkb/internal/repository"
	"github.com/cloo-solutions/agentkb/internal/service"
)

func RegenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate <document-id>",
		Short: "Regenerate a document's segment embeddings",
		Long: `Re-embed every segment of a document with the current embedding text.

By default the run is synchronous and prints a summary. With --queue a
regeneration job is enqueued for the server's worker instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runRegenerate,
	}

	cmd.Flags().String("kind", "", "Only regenerate segments of this kind (chunk or block)")
	cmd.Flags().Bool("queue", false, "Enqueue a job instead of running now")
	cmd.Flags().String("output", "text", "Output format (text or json)")

	return cmd
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	documentID := args[0]
	kindFlag, _ := cmd.Flags().GetString("kind")
	queue, _ := cmd.Flags().GetBool("queue")
	outputFormat, _ := cmd.Flags().GetString("output")

	kind := domain.SegmentKind(kindFlag)
	if kind != "" && !domain.IsValidSegmentKind(kind) {
		return fmt.Errorf("invalid kind %q (expected chunk or block)", kindFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	documentRepo := repository.NewDocumentRepository(pool)

	if queue {
		if _, err := documentRepo.GetByID(ctx, documentID); err != nil {
			return fmt.Errorf("failed to load document: %w", err)
		}
		job := domain.NewRegenerationJob(uuid.NewString(), documentID, kind, time.Now().UTC())
		if err := repository.NewRegenerationJobRepository(pool).Create(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue regeneration job: %w", err)
		}
		if outputFormat == "json" {
			printJSON(map[string]interface{}{"job_id": job.ID, "document_id": documentID, "status": job.Status})
		} else {
			fmt.Printf("Regeneration job %s queued for document %s\n", job.ID, documentID)
		}
		return nil
	}

	providers := openai.NewFactory(openai.Config{
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Timeout:             cfg.ProviderTimeout,
		MaxAttempts:         cfg.ProviderMaxAttempts,
		Logger:              logger.Named("openai"),
	}, cfg.DefaultGenerationModel)

	segmentRepo := repository.NewSegmentRepository(pool)
	regenSvc := service.NewRegenerationService(
		repository.NewAgentRepository(pool),
		documentRepo,
		providers,
		segmentRepo,
	)

	result, err := regenSvc.RegenerateDocumentEmbeddings(ctx, service.RegenerateInput{
		Caller:     service.SystemCaller(),
		DocumentID: documentID,
		Kind:       kind,
	})
	if result != nil {
		highest, idxErr := highestIndices(ctx, segmentRepo, documentID, kind)
		if idxErr != nil {
			cmd.PrintErrf("warning: could not read segment indices: %v\n", idxErr)
		}
		if outputFormat == "json" {
			printJSON(map[string]interface{}{"result": result, "highest_index": highest})
		} else {
			fmt.Printf("Document %s: %d segments, %d regenerated, %d failed\n",
				result.DocumentID, result.TotalSegments, result.SuccessCount, result.ErrorCount)
			if highest != nil {
				fmt.Printf("  highest index: %s\n", formatHighest(highest))
			}
			for _, f := range result.Failures {
				fmt.Printf("  %s #%d (%s): %s\n", f.Kind, f.Index, f.SegmentID, f.Error)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("regeneration failed: %w", err)
	}
	return nil
}

type indexReader interface {
	MaxIndex(ctx context.Context, documentID string, kind domain.SegmentKind) (int, error)
}

// highestIndices returns the highest index in use per kind, -1 for none.
// Deleted segments leave gaps, so it can exceed the segment count.
func highestIndices(ctx context.Context, segments indexReader, documentID string, only domain.SegmentKind) (map[domain.SegmentKind]int, error) {
	kinds := []domain.SegmentKind{domain.SegmentKindChunk, domain.SegmentKindBlock}
	if only != "" {
		kinds = []domain.SegmentKind{only}
	}

	highest := make(map[domain.SegmentKind]int, len(kinds))
	for _, k := range kinds {
		idx, err := segments.MaxIndex(ctx, documentID, k)
		if err != nil {
			return nil, fmt.Errorf("max %s index: %w", k, err)
		}
		highest[k] = idx
	}
	return highest, nil
}

func formatHighest(highest map[domain.SegmentKind]int) string {
	parts := make([]string, 0, len(highest))
	for _, k := range []domain.SegmentKind{domain.SegmentKindChunk, domain.SegmentKindBlock} {
		idx, ok := highest[k]
		if !ok {
			continue
		}
		if idx < 0 {
			parts = append(parts, fmt.Sprintf("%s none", k))
		} else {
			parts = append(parts, fmt.Sprintf("%s %d", k, idx))
		}
	}
	return strings.Join(parts, ", ")
}
