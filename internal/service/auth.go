package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/pagination"
)

const (
	apiKeyPrefix    = "akb_"
	apiTokenBytes   = 32
	importedKeyName = "bootstrap"
)

type OrgPage = pagination.Page[*domain.Organization]

type APIKeyPage = pagination.Page[*domain.APIKey]

type OrgRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	GetByName(ctx context.Context, name string) (*domain.Organization, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*OrgPage, error)
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	ListByOrgWithCursor(ctx context.Context, orgID string, cursor *pagination.Cursor, limit int) (*APIKeyPage, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

// IssuedAPIKey is a freshly created key together with its plaintext token.
// The token is never retrievable again.
type IssuedAPIKey struct {
	Key   *domain.APIKey
	Token string
}

// AuthService owns organizations and the API keys that act for them.
type AuthService struct {
	orgRepo OrgRepository
	keyRepo APIKeyRepository
	uuidGen UUIDGenerator
	now     func() time.Time
}

func NewAuthService(orgRepo OrgRepository, keyRepo APIKeyRepository, uuidGen UUIDGenerator) *AuthService {
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}
	return &AuthService{
		orgRepo: orgRepo,
		keyRepo: keyRepo,
		uuidGen: uuidGen,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) CreateOrg(ctx context.Context, name string) (*domain.Organization, error) {
	org := domain.NewOrganization(s.uuidGen.NewString(), name, s.now())
	if err := org.Validate(); err != nil {
		return nil, err
	}

	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// EnsureOrg returns the organization with the given name, creating it when
// absent. created reports which happened.
func (s *AuthService) EnsureOrg(ctx context.Context, name string) (org *domain.Organization, created bool, err error) {
	org, err = s.orgRepo.GetByName(ctx, strings.TrimSpace(name))
	switch {
	case err == nil:
		return org, false, nil
	case !errors.Is(err, domain.ErrOrganizationNotFound):
		return nil, false, err
	}

	org, err = s.CreateOrg(ctx, name)
	if errors.Is(err, domain.ErrOrganizationAlreadyExists) {
		// Created concurrently by another process.
		org, err = s.orgRepo.GetByName(ctx, strings.TrimSpace(name))
		return org, false, err
	}
	return org, err == nil, err
}

// ResolveOrg accepts either an organization ID or its name.
func (s *AuthService) ResolveOrg(ctx context.Context, ref string) (*domain.Organization, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("organization"))
	}
	if _, err := uuid.Parse(ref); err == nil {
		return s.orgRepo.GetByID(ctx, ref)
	}
	return s.orgRepo.GetByName(ctx, ref)
}

// ListOrgs pages through organizations, newest first.
func (s *AuthService) ListOrgs(ctx context.Context, cursor string, limit int) (*OrgPage, error) {
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	return s.orgRepo.ListWithCursor(ctx, c, pagination.NormalizeLimit(limit))
}

// IssueAPIKey creates a key with a random token for orgID.
func (s *AuthService) IssueAPIKey(ctx context.Context, orgID, name string) (*IssuedAPIKey, error) {
	token, err := generateAPIToken()
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	key, err := s.storeKey(ctx, orgID, name, token)
	if err != nil {
		return nil, err
	}
	return &IssuedAPIKey{Key: key, Token: token}, nil
}

// ImportAPIKey registers an operator-supplied token. Importing a token that
// is already registered returns the existing key.
func (s *AuthService) ImportAPIKey(ctx context.Context, orgID, name, token string) (*domain.APIKey, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.ErrInvalidAPIKeyFormat
	}

	existing, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	switch {
	case err == nil:
		if existing.OrgID != orgID {
			return nil, domain.ErrAPIKeyAlreadyExists
		}
		return existing, nil
	case !errors.Is(err, domain.ErrAPIKeyNotFound):
		return nil, err
	}

	if name == "" {
		name = importedKeyName
	}
	return s.storeKey(ctx, orgID, name, token)
}

func (s *AuthService) storeKey(ctx context.Context, orgID, name, token string) (*domain.APIKey, error) {
	if _, err := s.orgRepo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}

	key := domain.NewAPIKey(s.uuidGen.NewString(), orgID, name, hashToken(token), s.now())
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ValidateAPIKey resolves a bearer token to the organization it acts for.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if !IsValidAPIToken(token) {
		return "", domain.ErrInvalidAPIKey
	}

	key, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return "", domain.ErrInvalidAPIKey
		}
		return "", err
	}

	return key.Authorize()
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.ErrMissingRequiredField.WithCause(errors.New("api key id"))
	}
	return s.keyRepo.Revoke(ctx, keyID, s.now())
}

// ListAPIKeys pages through an organization's keys, newest first.
func (s *AuthService) ListAPIKeys(ctx context.Context, orgID, cursor string, limit int) (*APIKeyPage, error) {
	if orgID == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("organization"))
	}
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	return s.keyRepo.ListByOrgWithCursor(ctx, orgID, c, pagination.NormalizeLimit(limit))
}

func generateAPIToken() (string, error) {
	buf := make([]byte, apiTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// IsValidAPIToken reports whether token is akb_ followed by 64 hex digits.
func IsValidAPIToken(token string) bool {
	body, ok := strings.CutPrefix(token, apiKeyPrefix)
	if !ok || len(body) != 2*apiTokenBytes {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}
