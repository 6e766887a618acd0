package repository

import (
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// embeddingParam returns the query parameter for an embedding column. An
// empty slice is stored as NULL.
func embeddingParam(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// parseEmbedding decodes the text form of a vector column, as selected with
// embedding::text.
func parseEmbedding(literal *string) ([]float32, error) {
	if literal == nil {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Parse(*literal); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return v.Slice(), nil
}
