package recommend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryProbeCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryProbeCache() *memoryProbeCache {
	return &memoryProbeCache{seen: make(map[string]bool)}
}

func (c *memoryProbeCache) Seen(ctx context.Context, imageURL string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[imageURL], nil
}

func (c *memoryProbeCache) Remember(ctx context.Context, imageURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[imageURL] = true
	return nil
}

func itemsFor(refs ...string) []ClothingItem {
	items := make([]ClothingItem, len(refs))
	for i, ref := range refs {
		items[i] = ClothingItem{ID: ref, ImageRef: ref}
	}
	return items
}

func TestTrustFilterStaticChecks(t *testing.T) {
	f := NewTrustFilter(TrustOptions{Allowlist: []string{"cloudinary.com", " Media.Example.com "}})
	verdicts := f.Check(context.Background(), itemsFor(
		"https://res.cloudinary.com/demo/a.jpg",
		"https://MEDIA.example.com/b.png",
		"https://evil.example.org/c.jpg",
		"not a url",
		"/relative/path.jpg",
		"ftp://res.cloudinary.com/d.jpg",
		"https://cdn.example.net/cloudinary.com/e.jpg",
		"",
	))
	require.Len(t, verdicts, 8)

	want := []struct {
		ok     bool
		reason RejectReason
	}{
		{ok: true},
		{ok: true},
		{reason: ReasonUntrustedSource},
		{reason: ReasonMalformedURL},
		{reason: ReasonMalformedURL},
		{reason: ReasonMalformedURL},
		{reason: ReasonUntrustedSource},
		{reason: ReasonMalformedURL},
	}
	for i, w := range want {
		assert.Equal(t, w.ok, verdicts[i].OK, "item %d", i)
		assert.Equal(t, w.reason, verdicts[i].Reason, "item %d", i)
	}
	assert.Len(t, Rejected(verdicts), 6)
}

func TestTrustFilterMatchesHostOnly(t *testing.T) {
	f := NewTrustFilter(TrustOptions{Allowlist: []string{"res.cloudinary.com", "localhost"}})
	cases := []struct {
		ref string
		ok  bool
	}{
		{ref: "https://res.cloudinary.com/demo/a.jpg", ok: true},
		{ref: "https://eu.res.cloudinary.com/demo/a.jpg", ok: true},
		{ref: "http://localhost:8080/static/a.jpg", ok: true},
		{ref: "http://169.254.169.254/latest/res.cloudinary.com/x.jpg"},
		{ref: "https://localhost.evil.net/a.jpg"},
		{ref: "https://evilres.cloudinary.com/a.jpg"},
		{ref: "https://res.cloudinary.com.evil.net/a.jpg"},
		{ref: "https://evil.net/?u=res.cloudinary.com"},
	}
	for _, tc := range cases {
		verdict := f.Check(context.Background(), itemsFor(tc.ref))[0]
		assert.Equal(t, tc.ok, verdict.OK, tc.ref)
		if !tc.ok {
			assert.Equal(t, ReasonUntrustedSource, verdict.Reason, tc.ref)
		}
	}
}

func TestTrustFilterRefusesUntrustedRedirect(t *testing.T) {
	var outsideHits int32
	outside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&outsideHits, 1)
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	defer outside.Close()

	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/away.jpg":
			http.Redirect(w, r, outside.URL+"/x.jpg", http.StatusFound)
		case "/moved.jpg":
			http.Redirect(w, r, "/final.jpg", http.StatusMovedPermanently)
		default:
			w.Header().Set("Content-Type", "image/jpeg")
		}
	}))
	defer storage.Close()

	// Both servers listen on 127.0.0.1, so trust the storage server by its
	// "localhost" name and let the outside server keep the bare IP.
	storageURL := strings.Replace(storage.URL, "127.0.0.1", "localhost", 1)
	f := NewTrustFilter(TrustOptions{Allowlist: []string{"localhost"}, Probe: true})
	verdicts := f.Check(context.Background(), itemsFor(
		storageURL+"/away.jpg",
		storageURL+"/moved.jpg",
	))
	require.Len(t, verdicts, 2)
	assert.Equal(t, ReasonUnreachableOrNonImage, verdicts[0].Reason)
	assert.True(t, verdicts[1].OK, "redirects within trusted storage are followed")
	assert.Zero(t, atomic.LoadInt32(&outsideHits))
}

func TestTrustFilterKeepsCallerClient(t *testing.T) {
	own := &http.Client{Timeout: time.Second}
	NewTrustFilter(TrustOptions{HTTPClient: own})
	assert.Nil(t, own.CheckRedirect)
}

func TestTrustFilterEmptyAllowlistTrustsNothing(t *testing.T) {
	f := NewTrustFilter(TrustOptions{})
	verdicts := f.Check(context.Background(), itemsFor("https://res.cloudinary.com/a.jpg"))
	assert.False(t, verdicts[0].OK)
	assert.Equal(t, ReasonUntrustedSource, verdicts[0].Reason)
}

func TestTrustFilterProbe(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/image.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
		case "/slow.jpg":
			time.Sleep(200 * time.Millisecond)
			w.Header().Set("Content-Type", "image/jpeg")
		default:
			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	host := mustHost(t, srv.URL)

	f := NewTrustFilter(TrustOptions{
		Allowlist:    []string{host},
		Probe:        true,
		Concurrency:  2,
		ProbeTimeout: 50 * time.Millisecond,
	})
	verdicts := f.Check(context.Background(), itemsFor(
		srv.URL+"/image.jpg",
		srv.URL+"/page.html",
		srv.URL+"/missing.png",
		srv.URL+"/slow.jpg",
		"https://elsewhere.example.com/x.jpg",
	))
	require.Len(t, verdicts, 5)
	assert.True(t, verdicts[0].OK)
	assert.Equal(t, ReasonUnreachableOrNonImage, verdicts[1].Reason)
	assert.Equal(t, ReasonUnreachableOrNonImage, verdicts[2].Reason)
	assert.Equal(t, ReasonUnreachableOrNonImage, verdicts[3].Reason)
	assert.Equal(t, ReasonUntrustedSource, verdicts[4].Reason)
	assert.Equal(t, srv.URL+"/page.html", verdicts[1].Item.ImageRef, "verdicts keep input order")
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits), "untrusted hosts are never probed")
}

func TestTrustFilterProbeUsesCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/webp")
	}))
	defer srv.Close()

	cache := newMemoryProbeCache()
	f := NewTrustFilter(TrustOptions{Allowlist: []string{mustHost(t, srv.URL)}, Probe: true, Cache: cache})
	items := itemsFor(srv.URL + "/a.webp")

	require.True(t, f.Check(context.Background(), items)[0].OK)
	require.True(t, f.Check(context.Background(), items)[0].OK)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Hostname()
}
