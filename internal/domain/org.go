package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxOrganizationNameLength = 100

// Organization is a tenant. Agents and API keys belong to exactly one, and
// every caller except the system acts on behalf of one.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func NewOrganization(id, name string, createdAt time.Time) *Organization {
	return &Organization{
		ID:        id,
		Name:      strings.TrimSpace(name),
		CreatedAt: createdAt,
	}
}

func (o *Organization) Validate() error {
	switch {
	case o.ID == "":
		return ErrMissingRequiredField.WithCause(errors.New("organization id"))
	case o.Name == "":
		return ErrInvalidOrganizationName.WithCause(errors.New("name is empty"))
	case utf8.RuneCountInString(o.Name) > maxOrganizationNameLength:
		return ErrInvalidOrganizationName.WithCause(fmt.Errorf("name exceeds %d characters", maxOrganizationNameLength))
	case strings.ContainsAny(o.Name, "\r\n\t"):
		return ErrInvalidOrganizationName.WithCause(errors.New("name contains control whitespace"))
	}
	return nil
}
