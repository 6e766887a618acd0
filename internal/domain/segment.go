package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SegmentKind tags a segment with the pipeline that produced it.
type SegmentKind string

const (
	SegmentKindChunk SegmentKind = "chunk"
	SegmentKindBlock SegmentKind = "block"
)

// KnowledgeSegment is one retrievable piece of a document together with
// its embedding. Indices are unique per (document, kind), assigned in
// ascending order and never reused.
type KnowledgeSegment struct {
	ID         string
	DocumentID string
	Kind       SegmentKind
	Title      string
	TitlePath  string
	Content    string
	Index      int
	TokenCount int
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SegmentDraft is a segment before an index and embedding are assigned.
type SegmentDraft struct {
	Title     string `json:"title"`
	TitlePath string `json:"title_path,omitempty"`
	Content   string `json:"content"`
}

// EmbeddingText is the text embedded when a segment is created or edited.
func (d SegmentDraft) EmbeddingText() string {
	return ComposeEmbeddingText(d.Title, d.Content)
}

// EmbeddingText is the text embedded when the segment is created or edited.
func (s *KnowledgeSegment) EmbeddingText() string {
	return ComposeEmbeddingText(s.Title, s.Content)
}

// RegenerationText is the text embedded during bulk regeneration, which
// also folds in the owning document's title.
func (s *KnowledgeSegment) RegenerationText(documentTitle string) string {
	docTitle := strings.TrimSpace(documentTitle)
	segTitle := strings.TrimSpace(s.Title)

	switch {
	case docTitle != "" && segTitle != "":
		return docTitle + ": " + segTitle + "\n\n" + s.Content
	case docTitle != "":
		return docTitle + "\n\n" + s.Content
	case segTitle != "":
		return segTitle + "\n\n" + s.Content
	default:
		return s.Content
	}
}

// ComposeEmbeddingText joins a title and content the way segments are embedded.
func ComposeEmbeddingText(title, content string) string {
	if strings.TrimSpace(title) == "" {
		return content
	}
	return title + "\n\n" + content
}

// EstimateTokens approximates a token count when the provider reports none.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// IsValidSegmentKind checks if a SegmentKind is valid
func IsValidSegmentKind(k SegmentKind) bool {
	switch k {
	case SegmentKindChunk, SegmentKindBlock:
		return true
	}
	return false
}

// ValidateKnowledgeSegment validates a KnowledgeSegment instance
func ValidateKnowledgeSegment(s *KnowledgeSegment) error {
	if s == nil {
		return fmt.Errorf("knowledge segment cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("knowledge segment ID is required")
	}

	if s.DocumentID == "" {
		return fmt.Errorf("knowledge segment DocumentID is required")
	}

	if !IsValidSegmentKind(s.Kind) {
		return fmt.Errorf("knowledge segment Kind is invalid: %s", s.Kind)
	}

	if strings.TrimSpace(s.Content) == "" {
		return fmt.Errorf("knowledge segment Content is required")
	}

	if s.Index < 0 {
		return fmt.Errorf("knowledge segment Index cannot be negative")
	}

	if len(s.Embedding) == 0 {
		return fmt.Errorf("knowledge segment Embedding is required")
	}

	return nil
}
