package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexlook/internal/domain"
	"nexlook/internal/infra"
	"nexlook/internal/providers/llm"
)

// Completer is the completion API the service calls.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) ([]byte, error)
}

type ServiceConfig struct {
	MaxItems            int
	Model               string
	MaxTokens           int
	FreeTextTemperature float64
	LookTemperature     float64
	LookPenalty         float64
}

// DefaultServiceConfig returns the sampling parameters both contracts use by default.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxItems:            DefaultMaxItems,
		Model:               "gpt-4o-mini",
		MaxTokens:           500,
		FreeTextTemperature: 0.7,
		LookTemperature:     0.9,
		LookPenalty:         0.6,
	}
}

type ServiceDeps struct {
	Store     domain.WardrobeStore
	Trust     *TrustFilter
	Sanitizer *Sanitizer
	Builder   *Builder
	Completer Completer
	Metrics   *Metrics
	Logger    *infra.Logger
}

// Service runs the recommendation pipeline: aggregate, validate, sanitize,
// prompt, call and extract.
type Service struct {
	store     domain.WardrobeStore
	trust     *TrustFilter
	sanitizer *Sanitizer
	builder   *Builder
	completer Completer
	metrics   *Metrics
	cfg       ServiceConfig
	logger    *infra.Logger
}

func NewService(deps ServiceDeps, cfg ServiceConfig) *Service {
	logger := infra.Component(deps.Logger, "recommend")
	trust := deps.Trust
	if trust == nil {
		trust = NewTrustFilter(TrustOptions{Logger: deps.Logger})
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = NewSanitizer(nil, 0)
	}
	builder := deps.Builder
	if builder == nil {
		builder = NewBuilder(LocaleEnglish)
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	return &Service{
		store:     deps.Store,
		trust:     trust,
		sanitizer: sanitizer,
		builder:   builder,
		completer: deps.Completer,
		metrics:   deps.Metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// FreeText returns short outfit advice for the user's wardrobe. The error is
// reserved for infrastructure failures; every pipeline result is an Outcome.
func (s *Service) FreeText(ctx context.Context, userID, prompt string) (TextResult, error) {
	var result TextResult
	items, outcome, err := s.prepare(ctx, userID)
	if err != nil {
		return result, err
	}
	if outcome != nil {
		result.Outcome = *outcome
		s.finish(ContractFreeText, userID, result.Outcome)
		return result, nil
	}

	messages := s.buildMessages(ctx, prompt, items, s.builder.FreeText)
	raw, outcome, err := s.call(ctx, messages, llm.CompletionOptions{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.FreeTextTemperature,
	})
	if err != nil {
		return result, err
	}
	if outcome != nil {
		result.Outcome = *outcome
		s.finish(ContractFreeText, userID, result.Outcome)
		return result, nil
	}

	start := time.Now()
	text, err := UnwrapEnvelope(raw, s.logger)
	s.metrics.observeStage(StageExtracting, start)
	switch {
	case err != nil:
		result.Outcome = Outcome{Kind: OutcomeExtractionFailed, Reason: ReasonEnvelope}
	case strings.TrimSpace(text) == "":
		result.Outcome = Outcome{Kind: OutcomeExtractionFailed, Reason: ReasonEmptyContent}
	default:
		result.Outcome = Outcome{Kind: OutcomeSucceeded}
		result.Text = strings.TrimSpace(text)
	}
	s.finish(ContractFreeText, userID, result.Outcome)
	return result, nil
}

// Structured returns a look built only from the user's own items.
func (s *Service) Structured(ctx context.Context, userID, prompt string) (LookResult, error) {
	var result LookResult
	items, outcome, err := s.prepare(ctx, userID)
	if err != nil {
		return result, err
	}
	if outcome != nil {
		result.Outcome = *outcome
		s.finish(ContractStructured, userID, result.Outcome)
		return result, nil
	}

	messages := s.buildMessages(ctx, prompt, items, s.builder.Structured)
	raw, outcome, err := s.call(ctx, messages, llm.CompletionOptions{
		Model:            s.cfg.Model,
		MaxTokens:        s.cfg.MaxTokens,
		Temperature:      s.cfg.LookTemperature,
		PresencePenalty:  llm.Penalty(s.cfg.LookPenalty),
		FrequencyPenalty: llm.Penalty(s.cfg.LookPenalty),
	})
	if err != nil {
		return result, err
	}
	if outcome != nil {
		result.Outcome = *outcome
		s.finish(ContractStructured, userID, result.Outcome)
		return result, nil
	}

	start := time.Now()
	result.Outcome, result.Look = s.extractLook(raw, items)
	s.metrics.observeStage(StageExtracting, start)
	s.finish(ContractStructured, userID, result.Outcome)
	return result, nil
}

// prepare aggregates and validates the wardrobe. A non-nil outcome ends the
// request before any completion call.
func (s *Service) prepare(ctx context.Context, userID string) ([]ClothingItem, *Outcome, error) {
	start := time.Now()
	looks, err := s.store.GetLooksForUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("load wardrobe failed")
		return nil, nil, fmt.Errorf("load wardrobe: %w", err)
	}
	items, dropped := capItems(Aggregate(looks), s.cfg.MaxItems)
	s.metrics.observeStage(StageAggregating, start)
	if dropped > 0 {
		s.logger.Warn().Str("user_id", userID).Int("dropped", dropped).Int("max_items", s.cfg.MaxItems).Msg("wardrobe exceeds item limit")
	}
	if len(items) == 0 {
		return nil, &Outcome{Kind: OutcomeEmptyInput}, nil
	}

	start = time.Now()
	verdicts := s.trust.Check(ctx, items)
	s.metrics.observeStage(StageValidating, start)
	if err := ctx.Err(); err != nil {
		// Image checks fail once the caller is gone; that says nothing about the images.
		return nil, &Outcome{Kind: OutcomeUpstreamUnreachable, Cause: causeOf(err)}, nil
	}
	rejected := Rejected(verdicts)
	if len(rejected) > 0 {
		return nil, &Outcome{
			Kind:     OutcomeUntrustedImage,
			Reason:   string(rejected[0].Reason),
			Rejected: rejected,
		}, nil
	}
	return items, nil, nil
}

func causeOf(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.CauseTimeout
	}
	return llm.CauseCancelled
}

func (s *Service) buildMessages(ctx context.Context, prompt string, items []ClothingItem, build func(string, []ClothingItem, string) []llm.Message) []llm.Message {
	start := time.Now()
	clean := s.sanitizer.Sanitize(prompt)
	s.metrics.observeStage(StageSanitizing, start)

	start = time.Now()
	messages := build(clean, items, localeFromContext(ctx))
	s.metrics.observeStage(StagePrompting, start)
	return messages
}

// call maps gateway failures onto outcomes. Errors that are not gateway
// errors, such as a missing API key, are returned as errors.
func (s *Service) call(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) ([]byte, *Outcome, error) {
	start := time.Now()
	raw, err := s.completer.Complete(ctx, messages, opts)
	s.metrics.observeStage(StageCalling, start)
	if err == nil {
		return raw, nil, nil
	}
	gwErr, ok := llm.AsGatewayError(err)
	if !ok {
		s.logger.Error().Err(err).Msg("completion call failed")
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
		}
		return nil, nil, err
	}
	switch gwErr.Kind {
	case llm.KindUpstreamRejected:
		s.logger.Warn().Int("status", gwErr.StatusCode).Str("body", gwErr.Body).Msg("completion rejected")
		return nil, &Outcome{Kind: OutcomeUpstreamRejected, StatusCode: gwErr.StatusCode, Reason: fmt.Sprintf("http_%d", gwErr.StatusCode)}, nil
	default:
		return nil, &Outcome{Kind: OutcomeUpstreamUnreachable, Cause: gwErr.Cause}, nil
	}
}

func (s *Service) extractLook(raw []byte, items []ClothingItem) (Outcome, *LookRecommendation) {
	text, err := UnwrapEnvelope(raw, s.logger)
	if err != nil {
		return Outcome{Kind: OutcomeExtractionFailed, Reason: ReasonEnvelope}, nil
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{Kind: OutcomeExtractionFailed, Reason: ReasonEmptyContent}, nil
	}
	fragment, ok := NarrowJSON(text)
	if !ok {
		s.logger.Warn().Str("content", truncateRunes(text, 200)).Msg("no json object in completion")
		return Outcome{Kind: OutcomeExtractionFailed, Reason: ReasonNoJSON}, nil
	}
	look, err := ParseLook(fragment, itemIDs(items))
	if err != nil {
		s.logger.Warn().Err(err).Msg("look rejected")
		return Outcome{Kind: OutcomeExtractionFailed, Reason: ReasonInvalidLook}, nil
	}
	return Outcome{Kind: OutcomeSucceeded}, look
}

func (s *Service) finish(contract, userID string, outcome Outcome) {
	s.metrics.observeOutcome(contract, outcome.Kind)
	event := s.logger.Info()
	if !outcome.Succeeded() && outcome.Kind != OutcomeEmptyInput {
		event = s.logger.Warn()
	}
	event.Str("contract", contract).
		Str("user_id", userID).
		Str("outcome", string(outcome.Kind)).
		Str("reason", outcome.Reason).
		Int("status", outcome.StatusCode).
		Str("cause", outcome.Cause).
		Msg("recommendation finished")
}
