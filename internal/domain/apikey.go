package domain

import (
	"errors"
	"strings"
	"time"
)

// APIKey is an operator credential scoped to one organization. Only the
// SHA-256 hash of the issued token is kept.
type APIKey struct {
	ID        string
	OrgID     string
	Name      string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

func NewAPIKey(id, orgID, name, keyHash string, createdAt time.Time) *APIKey {
	return &APIKey{
		ID:        id,
		OrgID:     orgID,
		Name:      strings.TrimSpace(name),
		KeyHash:   keyHash,
		CreatedAt: createdAt,
	}
}

func (a *APIKey) IsRevoked() bool {
	return a.RevokedAt != nil
}

// Status is "revoked" or "active".
func (a *APIKey) Status() string {
	if a.IsRevoked() {
		return "revoked"
	}
	return "active"
}

// Authorize returns the organization the key acts for.
func (a *APIKey) Authorize() (string, error) {
	if a.IsRevoked() {
		return "", ErrAPIKeyRevoked
	}
	return a.OrgID, nil
}

func (a *APIKey) Validate() error {
	var missing string
	switch {
	case a.ID == "":
		missing = "api key id"
	case a.OrgID == "":
		missing = "api key organization"
	case a.Name == "":
		missing = "api key name"
	case a.KeyHash == "":
		missing = "api key hash"
	default:
		return nil
	}
	return ErrMissingRequiredField.WithCause(errors.New(missing))
}
