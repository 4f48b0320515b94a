package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexlook/internal/domain"
	"nexlook/internal/infra"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultModel        = "gpt-4o-mini"
	defaultTimeout      = 30 * time.Second
	defaultRetryBackoff = 250 * time.Millisecond
	maxResponseBytes    = 4 << 20
	maxErrorBodyBytes   = 2048
)

var modelAliases = map[string]string{
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt4o":                  "gpt-4o",
}

type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	Timeout      time.Duration
	RetryBackoff time.Duration
	// MaxRetries bounds extra attempts on transient failures. Negative disables retries.
	MaxRetries  int
	HTTPClient  *http.Client
	Credentials domain.CredentialStore
	Logger      *infra.Logger
}

// Client performs chat-completion calls and returns the raw response body.
type Client struct {
	apiKey       string
	baseURL      string
	organization string
	timeout      time.Duration
	backoff      time.Duration
	maxRetries   int
	client       *http.Client
	credentials  domain.CredentialStore
	logger       *infra.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		timeout:      timeout,
		backoff:      backoff,
		maxRetries:   maxRetries,
		client:       client,
		credentials:  opts.Credentials,
		logger:       infra.Component(opts.Logger, "llm"),
	}
}

// NormalizeModel maps known aliases to canonical model ids and falls back to
// the default model when blank.
func NormalizeModel(model string) string {
	key := strings.ToLower(strings.TrimSpace(model))
	if key == "" {
		return defaultModel
	}
	if canonical, ok := modelAliases[key]; ok {
		return canonical
	}
	return key
}

// Complete sends messages to the chat-completions endpoint. The whole call,
// retries included, runs under the client's own timeout derived from ctx.
// Failures of the exchange are returned as *GatewayError.
func (c *Client) Complete(ctx context.Context, messages []Message, opts CompletionOptions) ([]byte, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}
	opts.Model = NormalizeModel(opts.Model)
	payload, err := encodeRequest(messages, opts)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	for attempt := 0; ; attempt++ {
		body, err := c.post(callCtx, apiKey, payload)
		if err == nil {
			c.logger.Debug().Str("model", opts.Model).Int("attempt", attempt+1).Dur("took", time.Since(start)).Msg("completion ok")
			return body, nil
		}
		gwErr := c.classify(ctx, callCtx, err)
		if !gwErr.retryable() || attempt >= c.maxRetries {
			c.logger.Warn().Err(gwErr).Str("kind", string(gwErr.Kind)).Int("status", gwErr.StatusCode).Int("attempt", attempt+1).Msg("completion failed")
			return nil, gwErr
		}
		wait := c.backoff << attempt
		c.logger.Warn().Err(gwErr).Int("attempt", attempt+1).Dur("backoff", wait).Msg("retrying completion")
		select {
		case <-time.After(wait):
		case <-callCtx.Done():
			return nil, c.classify(ctx, callCtx, callCtx.Err())
		}
	}
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	if c.credentials == nil {
		return "", ErrMissingAPIKey
	}
	key, err := c.credentials.OpenAIAPIKey(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return "", ErrMissingAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: load api key: %v", domain.ErrProviderFailure, err)
	}
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

func (c *Client) post(ctx context.Context, apiKey string, payload []byte) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &GatewayError{
			Kind:       KindUpstreamRejected,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// classify turns a transport error into a GatewayError. The caller's context
// ending wins over the client's own deadline.
func (c *Client) classify(parent, call context.Context, err error) *GatewayError {
	if gwErr, ok := AsGatewayError(err); ok {
		return gwErr
	}
	cause := CauseNetwork
	switch {
	case parent.Err() != nil:
		cause = CauseCancelled
	case errors.Is(call.Err(), context.DeadlineExceeded):
		cause = CauseTimeout
	}
	return &GatewayError{Kind: KindUnreachable, Cause: cause, Err: err}
}
