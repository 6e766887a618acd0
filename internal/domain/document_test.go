package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKnowledgeDocument(t *testing.T) {
	now := time.Now()
	doc := NewKnowledgeDocument("doc1", "agent1", "Pricing", "Plans and prices", now)

	assert.Equal(t, "doc1", doc.ID)
	assert.Equal(t, "agent1", doc.AgentID)
	assert.Equal(t, SourceTypeText, doc.SourceType)
	assert.True(t, doc.Enabled)
	require.NoError(t, ValidateKnowledgeDocument(doc))
}

func TestValidateKnowledgeDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *KnowledgeDocument
		wantErr bool
		errMsg  string
	}{
		{
			name:    "object source needs url",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", Title: "T", SourceType: SourceTypeObject},
			wantErr: true,
			errMsg:  "SourceURL",
		},
		{
			name:    "object source with key",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", Title: "T", SourceType: SourceTypeObject, SourceURL: "org-1/docs/a.html"},
			wantErr: false,
		},
		{
			name:    "object key escaping its prefix",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", Title: "T", SourceType: SourceTypeObject, SourceURL: "org-1/../org-2/a.html"},
			wantErr: true,
			errMsg:  "object key",
		},
		{
			name:    "url source over https",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", Title: "T", SourceType: SourceTypeURL, SourceURL: "https://example.com/faq"},
			wantErr: false,
		},
		{
			name:    "url source with file scheme",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", Title: "T", SourceType: SourceTypeURL, SourceURL: "file:///etc/passwd"},
			wantErr: true,
			errMsg:  "scheme",
		},
		{
			name:    "url source without host",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", Title: "T", SourceType: SourceTypeURL, SourceURL: "http:///latest"},
			wantErr: true,
			errMsg:  "host",
		},
		{
			name:    "unknown source type",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", Title: "T", SourceType: "ftp"},
			wantErr: true,
			errMsg:  "SourceType",
		},
		{
			name:    "missing title",
			doc:     &KnowledgeDocument{ID: "d", AgentID: "a", SourceType: SourceTypeText},
			wantErr: true,
			errMsg:  "Title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKnowledgeDocument(tt.doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestObjectKeyOwnedBy(t *testing.T) {
	assert.Equal(t, "org-1/", ObjectKeyPrefix("org-1"))

	assert.True(t, ObjectKeyOwnedBy("org-1/faq.html", "org-1"))
	assert.True(t, ObjectKeyOwnedBy("org-1/docs/faq.html", "org-1"))
	assert.False(t, ObjectKeyOwnedBy("org-2/faq.html", "org-1"))
	assert.False(t, ObjectKeyOwnedBy("org-10/faq.html", "org-1"))
	assert.False(t, ObjectKeyOwnedBy("org-1/../org-2/faq.html", "org-1"))
	assert.False(t, ObjectKeyOwnedBy("org-1//faq.html", "org-1"))
	assert.False(t, ObjectKeyOwnedBy("faq.html", ""))
}

func TestDomainError_IsMatchesWrappedSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrProviderFailure.WithCause(cause)

	assert.True(t, errors.Is(err, ErrProviderFailure))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrProviderTimeout))
	assert.Equal(t, ErrCodeProviderFailure, CodeOf(err))
	assert.Equal(t, "", CodeOf(cause))
}
