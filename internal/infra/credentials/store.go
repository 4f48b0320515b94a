package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nexlook/internal/domain"
	"nexlook/internal/infra"
	"nexlook/internal/sqlinline"
)

const (
	ProviderOpenAI = "openai"
)

// Store reads and writes provider secrets kept in integration_tokens.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// OpenAIAPIKey returns the stored completion API key. It wraps
// domain.ErrNotFound when no key is stored.
func (s *Store) OpenAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderOpenAI)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", fmt.Errorf("%w: %s token", domain.ErrNotFound, provider)
		}
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: %s token is blank", domain.ErrNotFound, provider)
	}
	return token, nil
}

func (s *Store) SetOpenAIAPIKey(ctx context.Context, key string, model string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("openai api key is required")
	}
	var props map[string]any
	if model = strings.TrimSpace(model); model != "" {
		props = map[string]any{"model": model}
	}
	return s.upsert(ctx, ProviderOpenAI, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

var _ domain.CredentialStore = (*Store)(nil)
