package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nexlook/internal/domain"
	"nexlook/internal/middleware"
	"nexlook/internal/recommend"
)

const maxRecommendationBody = 16 << 10

var errPromptRequired = fmt.Errorf("%w: prompt required", domain.ErrInvalidPrompt)

type recommendationRequest struct {
	Prompt string `json:"prompt"`
}

type rejectedImage struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	Reason   string `json:"reason"`
}

type outcomeBody struct {
	Outcome        string                        `json:"outcome"`
	Reason         string                        `json:"reason,omitempty"`
	UpstreamStatus int                           `json:"upstream_status,omitempty"`
	Cause          string                        `json:"cause,omitempty"`
	Rejected       []rejectedImage               `json:"rejected,omitempty"`
	Text           string                        `json:"recommendation,omitempty"`
	Look           *recommend.LookRecommendation `json:"look,omitempty"`
}

// FreeTextRecommendation handles POST /v1/recommendations/text.
func (a *App) FreeTextRecommendation(w http.ResponseWriter, r *http.Request) {
	userID, prompt, ok := a.readRecommendationRequest(w, r)
	if !ok {
		return
	}
	ctx := recommend.WithLocale(r.Context(), middleware.LocaleFromContext(r.Context()))
	res, err := a.Recommender.FreeText(ctx, userID, prompt)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("free text recommendation failed")
		a.error(w, http.StatusInternalServerError, "internal_error", "recommendation unavailable")
		return
	}
	body := outcomeFor(res.Outcome)
	body.Text = res.Text
	a.json(w, StatusForOutcome(res.Kind), body)
}

// LookRecommendation handles POST /v1/recommendations/look.
func (a *App) LookRecommendation(w http.ResponseWriter, r *http.Request) {
	userID, prompt, ok := a.readRecommendationRequest(w, r)
	if !ok {
		return
	}
	ctx := recommend.WithLocale(r.Context(), middleware.LocaleFromContext(r.Context()))
	res, err := a.Recommender.Structured(ctx, userID, prompt)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("look recommendation failed")
		a.error(w, http.StatusInternalServerError, "internal_error", "recommendation unavailable")
		return
	}
	body := outcomeFor(res.Outcome)
	body.Look = res.Look
	a.json(w, StatusForOutcome(res.Kind), body)
}

func (a *App) readRecommendationRequest(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, err := a.currentUserID(r)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidUserID) {
			a.Logger.Warn().Err(err).Msg("rejected user id")
		}
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return "", "", false
	}
	prompt, err := decodePrompt(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
		case errors.Is(err, errPromptRequired):
			a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		default:
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		}
		return "", "", false
	}
	return userID, prompt, true
}

// decodePrompt reads the request body. Missing or blank prompts wrap
// domain.ErrInvalidPrompt.
func decodePrompt(w http.ResponseWriter, r *http.Request) (string, error) {
	var req recommendationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecommendationBody))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", err
		}
		if errors.Is(err, io.EOF) {
			return "", errPromptRequired
		}
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPrompt, err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errPromptRequired
	}
	return req.Prompt, nil
}

func outcomeFor(o recommend.Outcome) outcomeBody {
	body := outcomeBody{
		Outcome:        string(o.Kind),
		Reason:         o.Reason,
		UpstreamStatus: o.StatusCode,
		Cause:          o.Cause,
	}
	for _, v := range o.Rejected {
		body.Rejected = append(body.Rejected, rejectedImage{ID: v.Item.ID, ImageURL: v.Item.ImageRef, Reason: string(v.Reason)})
	}
	return body
}

// StatusForOutcome maps a pipeline outcome to the HTTP status returned to clients.
func StatusForOutcome(kind recommend.OutcomeKind) int {
	switch kind {
	case recommend.OutcomeSucceeded, recommend.OutcomeEmptyInput:
		return http.StatusOK
	case recommend.OutcomeUntrustedImage:
		return http.StatusUnprocessableEntity
	case recommend.OutcomeUpstreamRejected, recommend.OutcomeExtractionFailed:
		return http.StatusBadGateway
	case recommend.OutcomeUpstreamUnreachable:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
