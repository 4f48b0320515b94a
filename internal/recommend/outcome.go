package recommend

import "context"

type OutcomeKind string

const (
	OutcomeSucceeded           OutcomeKind = "succeeded"
	OutcomeEmptyInput          OutcomeKind = "empty_input"
	OutcomeUntrustedImage      OutcomeKind = "untrusted_image"
	OutcomeUpstreamRejected    OutcomeKind = "upstream_rejected"
	OutcomeUpstreamUnreachable OutcomeKind = "upstream_unreachable"
	OutcomeExtractionFailed    OutcomeKind = "extraction_failed"
)

const (
	ReasonEmptyContent = "empty_content"
	ReasonNoJSON       = "no_json_object"
	ReasonInvalidLook  = "invalid_look"
	ReasonEnvelope     = "undecodable_envelope"
)

// Outcome is the single terminal state of one recommendation request.
type Outcome struct {
	Kind       OutcomeKind
	Reason     string
	StatusCode int
	Cause      string
	Rejected   []Verdict
}

func (o Outcome) Succeeded() bool { return o.Kind == OutcomeSucceeded }

type TextResult struct {
	Outcome
	Text string
}

type LookResult struct {
	Outcome
	Look *LookRecommendation
}

type localeKey struct{}

// WithLocale attaches the caller's preferred prompt language to ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

func localeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeKey{}).(string); ok {
		return v
	}
	return ""
}
