package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nexlook/internal/infra"
)

type RejectReason string

const (
	ReasonMalformedURL          RejectReason = "malformed_url"
	ReasonUntrustedSource       RejectReason = "untrusted_source"
	ReasonUnreachableOrNonImage RejectReason = "unreachable_or_non_image"
)

// Verdict is the trust decision for one item. Reason is empty when OK.
type Verdict struct {
	Item   ClothingItem
	OK     bool
	Reason RejectReason
}

// ProbeCache remembers image URLs that already passed the HEAD probe.
type ProbeCache interface {
	Seen(ctx context.Context, imageURL string) (bool, error)
	Remember(ctx context.Context, imageURL string) error
}

type TrustOptions struct {
	Allowlist    []string
	Probe        bool
	Concurrency  int
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
	Cache        ProbeCache
	Logger       *infra.Logger
}

// TrustFilter decides whether image references may be forwarded to the model.
type TrustFilter struct {
	allowlist    []string
	probe        bool
	concurrency  int
	probeTimeout time.Duration
	client       *http.Client
	cache        ProbeCache
	logger       *infra.Logger
}

func NewTrustFilter(opts TrustOptions) *TrustFilter {
	var allow []string
	for _, entry := range opts.Allowlist {
		entry = strings.Trim(strings.ToLower(strings.TrimSpace(entry)), ".")
		if entry != "" {
			allow = append(allow, entry)
		}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	f := &TrustFilter{
		allowlist:    allow,
		probe:        opts.Probe,
		concurrency:  concurrency,
		probeTimeout: timeout,
		cache:        opts.Cache,
		logger:       infra.Component(opts.Logger, "trust"),
	}
	client := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		client = &copied
	}
	client.CheckRedirect = f.checkRedirect
	f.client = client
	return f
}

const maxProbeRedirects = 3

var errUntrustedRedirect = errors.New("redirect leaves trusted storage")

// checkRedirect holds every redirect hop to the same rules as the original URL.
func (f *TrustFilter) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > maxProbeRedirects {
		return fmt.Errorf("stopped after %d redirects", maxProbeRedirects)
	}
	if _, reason := f.staticCheck(req.URL.String()); reason != "" {
		return fmt.Errorf("%w: %s (%s)", errUntrustedRedirect, req.URL.Host, reason)
	}
	return nil
}

// Check returns one verdict per item, in input order. Static checks run
// first; items that pass them are probed concurrently when probing is on.
func (f *TrustFilter) Check(ctx context.Context, items []ClothingItem) []Verdict {
	verdicts := make([]Verdict, len(items))
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, item := range items {
		verdicts[i] = Verdict{Item: item}
		u, reason := f.staticCheck(item.ImageRef)
		if reason != "" {
			verdicts[i].Reason = reason
			f.logger.Warn().Str("image_url", item.ImageRef).Str("reason", string(reason)).Msg("image rejected")
			continue
		}
		if !f.probe {
			verdicts[i].OK = true
			continue
		}
		g.Go(func() error {
			if f.probeImage(ctx, u) {
				verdicts[i].OK = true
			} else {
				verdicts[i].Reason = ReasonUnreachableOrNonImage
			}
			return nil
		})
	}
	_ = g.Wait()
	return verdicts
}

// Rejected returns the verdicts that did not pass.
func Rejected(verdicts []Verdict) []Verdict {
	var out []Verdict
	for _, v := range verdicts {
		if !v.OK {
			out = append(out, v)
		}
	}
	return out
}

func (f *TrustFilter) staticCheck(raw string) (*url.URL, RejectReason) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return nil, ReasonMalformedURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ReasonMalformedURL
	}
	if !f.trustedHost(u.Hostname()) {
		return nil, ReasonUntrustedSource
	}
	return u, ""
}

// trustedHost accepts an allow-listed host or any subdomain of one.
func (f *TrustFilter) trustedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, entry := range f.allowlist {
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func (f *TrustFilter) probeImage(ctx context.Context, u *url.URL) bool {
	ref := u.String()
	if f.cache != nil {
		seen, err := f.cache.Seen(ctx, ref)
		if err != nil {
			f.logger.Debug().Err(err).Msg("probe cache lookup failed")
		} else if seen {
			return true
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, ref, nil)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn().Err(err).Str("image_url", ref).Msg("image probe failed")
		return false
	}
	_ = resp.Body.Close()
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !strings.HasPrefix(contentType, "image/") {
		f.logger.Warn().Str("image_url", ref).Int("status", resp.StatusCode).Str("content_type", contentType).Msg("image probe rejected")
		return false
	}
	if f.cache != nil {
		if err := f.cache.Remember(ctx, ref); err != nil {
			f.logger.Debug().Err(err).Msg("probe cache store failed")
		}
	}
	return true
}
