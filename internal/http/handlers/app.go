package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"nexlook/internal/domain"
	"nexlook/internal/infra"
	"nexlook/internal/middleware"
	"nexlook/internal/recommend"
)

// Recommender is the recommendation pipeline the handlers expose.
type Recommender interface {
	FreeText(ctx context.Context, userID, prompt string) (recommend.TextResult, error)
	Structured(ctx context.Context, userID, prompt string) (recommend.LookResult, error)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type App struct {
	Recommender Recommender
	Checks      map[string]HealthCheck
	Logger      *infra.Logger
}

func NewApp(rec Recommender, checks map[string]HealthCheck, logger *infra.Logger) *App {
	return &App{Recommender: rec, Checks: checks, Logger: infra.Component(logger, "http")}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// currentUserID returns the authenticated user, or domain.ErrUnauthorized
// when the request carries none.
func (a *App) currentUserID(r *http.Request) (string, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	if _, err := uuid.Parse(userID); err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidUserID, userID)
	}
	return userID, nil
}
