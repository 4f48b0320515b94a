package domain

import "context"

// WardrobeStore reads the looks a user has stored.
type WardrobeStore interface {
	GetLooksForUser(ctx context.Context, userID string) ([]Look, error)
}

// CredentialStore resolves provider API keys persisted outside the environment.
// A missing key is reported as ErrNotFound.
type CredentialStore interface {
	OpenAIAPIKey(ctx context.Context) (string, error)
}
