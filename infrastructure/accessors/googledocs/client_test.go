package googledocs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

// fakeGoogle serves a token exchange endpoint and a minimal Docs API,
// counting exchanges and recording the bearer tokens it sees.
type fakeGoogle struct {
	mu             sync.Mutex
	exchangeCalls  int32
	exchangeDelay  time.Duration
	grantType      string
	refreshToken   string
	newAccessToken string
	rejectTokens   map[string]bool
	seenBearers    []string
}

func (f *fakeGoogle) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.exchangeCalls, 1)
		if f.exchangeDelay > 0 {
			time.Sleep(f.exchangeDelay)
		}
		r.ParseForm()
		f.mu.Lock()
		f.grantType = r.PostForm.Get("grant_type")
		f.refreshToken = r.PostForm.Get("refresh_token")
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": f.newAccessToken,
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("GET /docs/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		bearer := r.Header.Get("Authorization")
		f.mu.Lock()
		f.seenBearers = append(f.seenBearers, bearer)
		rejected := f.rejectTokens[bearer]
		f.mu.Unlock()
		if rejected {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"documentId": r.PathValue("id"),
			"title":      "Doc",
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeGoogle, tokens valueobjects.OAuth2Tokens, onRefresh func(context.Context, valueobjects.OAuth2Tokens) error) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		DocsBaseURL:    srv.URL + "/docs",
		DriveBaseURL:   srv.URL + "/drive",
		ExchangeURL:    srv.URL + "/token",
		Tokens:         tokens,
		OnTokenRefresh: onRefresh,
	}, zap.NewNop())
}

func TestProactiveRefreshInsideStaleWindow(t *testing.T) {
	f := &fakeGoogle{newAccessToken: "fresh"}
	soon := time.Now().Add(time.Minute)
	var persisted valueobjects.OAuth2Tokens
	c := newTestClient(t, f,
		valueobjects.OAuth2Tokens{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: &soon},
		func(_ context.Context, tk valueobjects.OAuth2Tokens) error {
			persisted = tk
			return nil
		})

	_, err := c.GetDocument(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.exchangeCalls))
	assert.Equal(t, "refresh_token", f.grantType)
	assert.Equal(t, "r1", f.refreshToken)
	require.Len(t, f.seenBearers, 1, "the stale token is never sent")
	assert.Equal(t, "Bearer fresh", f.seenBearers[0])

	assert.Equal(t, "fresh", persisted.AccessToken)
	require.NotNil(t, persisted.ExpiresAt)
	assert.True(t, persisted.ExpiresAt.After(time.Now().Add(30*time.Minute)))
}

func TestNoRefreshWhenTokenFresh(t *testing.T) {
	f := &fakeGoogle{}
	later := time.Now().Add(time.Hour)
	c := newTestClient(t, f,
		valueobjects.OAuth2Tokens{AccessToken: "good", RefreshToken: "r1", ExpiresAt: &later}, nil)

	_, err := c.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&f.exchangeCalls))
	assert.Equal(t, []string{"Bearer good"}, f.seenBearers)
}

func TestReactiveRefreshOnUnauthorized(t *testing.T) {
	f := &fakeGoogle{
		newAccessToken: "fresh",
		rejectTokens:   map[string]bool{"Bearer revoked": true},
	}
	// No expiry recorded, so the revocation only surfaces as a 401.
	c := newTestClient(t, f,
		valueobjects.OAuth2Tokens{AccessToken: "revoked", RefreshToken: "r1"}, nil)

	doc, err := c.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", doc["documentId"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.exchangeCalls))
	assert.Equal(t, []string{"Bearer revoked", "Bearer fresh"}, f.seenBearers)
}

func TestSecondUnauthorizedSurfacesAuthExpired(t *testing.T) {
	f := &fakeGoogle{
		newAccessToken: "also-bad",
		rejectTokens:   map[string]bool{"Bearer bad": true, "Bearer also-bad": true},
	}
	c := newTestClient(t, f,
		valueobjects.OAuth2Tokens{AccessToken: "bad", RefreshToken: "r1"}, nil)

	_, err := c.GetDocument(context.Background(), "d1")
	assert.True(t, errors.IsKind(err, errors.KindAuthExpired), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.exchangeCalls), "exactly one retry cycle")
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	f := &fakeGoogle{}
	soon := time.Now().Add(time.Minute)
	c := newTestClient(t, f, valueobjects.OAuth2Tokens{AccessToken: "stale", ExpiresAt: &soon}, nil)

	_, err := c.GetDocument(context.Background(), "d1")
	assert.True(t, errors.IsKind(err, errors.KindAuthExpired))
	assert.Zero(t, atomic.LoadInt32(&f.exchangeCalls))
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	f := &fakeGoogle{newAccessToken: "fresh", exchangeDelay: 100 * time.Millisecond}
	soon := time.Now().Add(time.Minute)
	c := newTestClient(t, f,
		valueobjects.OAuth2Tokens{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: &soon}, nil)

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = c.GetDocument(context.Background(), "d1")
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.exchangeCalls),
		"concurrent callers share one token exchange")
}

func TestPersistenceFailureDoesNotFailRequest(t *testing.T) {
	f := &fakeGoogle{newAccessToken: "fresh"}
	soon := time.Now().Add(time.Minute)
	c := newTestClient(t, f,
		valueobjects.OAuth2Tokens{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: &soon},
		func(context.Context, valueobjects.OAuth2Tokens) error {
			return assert.AnError
		})

	_, err := c.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", c.currentTokens().AccessToken)
}
