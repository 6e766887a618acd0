package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// SourceType describes where a document's raw text comes from.
type SourceType string

const (
	SourceTypeText   SourceType = "text"   // supplied inline by the caller
	SourceTypeObject SourceType = "object" // object key in S3-compatible storage
	SourceTypeURL    SourceType = "url"    // fetched over HTTP
)

// KnowledgeDocument is a titled unit of knowledge owned by one agent.
// Deleting it removes every segment it owns.
type KnowledgeDocument struct {
	ID          string
	AgentID     string
	Title       string
	Description string
	SourceURL   string
	SourceType  SourceType
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewKnowledgeDocument creates a new KnowledgeDocument instance
func NewKnowledgeDocument(id, agentID, title, description string, createdAt time.Time) *KnowledgeDocument {
	return &KnowledgeDocument{
		ID:          id,
		AgentID:     agentID,
		Title:       title,
		Description: description,
		SourceType:  SourceTypeText,
		Enabled:     true,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateKnowledgeDocument validates a KnowledgeDocument instance
func ValidateKnowledgeDocument(d *KnowledgeDocument) error {
	if d == nil {
		return fmt.Errorf("knowledge document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("knowledge document ID is required")
	}

	if d.AgentID == "" {
		return fmt.Errorf("knowledge document AgentID is required")
	}

	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("knowledge document Title is required")
	}

	if !IsValidSourceType(d.SourceType) {
		return fmt.Errorf("knowledge document SourceType is invalid: %s", d.SourceType)
	}

	if d.SourceType != SourceTypeText && strings.TrimSpace(d.SourceURL) == "" {
		return fmt.Errorf("knowledge document SourceURL is required for %s sources", d.SourceType)
	}

	switch d.SourceType {
	case SourceTypeURL:
		if err := ValidateSourceURL(d.SourceURL); err != nil {
			return fmt.Errorf("knowledge document SourceURL is invalid: %w", err)
		}
	case SourceTypeObject:
		if !isCleanObjectKey(d.SourceURL) {
			return fmt.Errorf("knowledge document SourceURL is not a valid object key: %s", d.SourceURL)
		}
	}

	return nil
}

// IsValidSourceType checks if a SourceType is valid
func IsValidSourceType(s SourceType) bool {
	switch s {
	case SourceTypeText, SourceTypeObject, SourceTypeURL:
		return true
	}
	return false
}

// ValidateSourceURL accepts absolute http and https URLs with a host.
func ValidateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("host is required")
	}
	if u.User != nil {
		return fmt.Errorf("credentials are not allowed in the URL")
	}
	return nil
}

// ObjectKeyPrefix is the key namespace of an organization's source objects.
func ObjectKeyPrefix(orgID string) string {
	return orgID + "/"
}

// ObjectKeyOwnedBy reports whether key lies inside the organization's
// namespace.
func ObjectKeyOwnedBy(key, orgID string) bool {
	return orgID != "" && isCleanObjectKey(key) && strings.HasPrefix(key, ObjectKeyPrefix(orgID))
}

func isCleanObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return false
		}
	}
	return true
}
