package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/worker"
)

func TestSerperBackend_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("Expected X-API-KEY header, got %q", r.Header.Get("X-API-KEY"))
		}
		var req serperRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Q != "Where is the Eiffel Tower?" {
			t.Errorf("Unexpected query %q", req.Q)
		}

		_, _ = w.Write([]byte(`{"organic": [
			{"title": "Eiffel Tower", "link": "https://en.wikipedia.org/wiki/Eiffel_Tower", "snippet": "The Eiffel Tower is in Paris."},
			{"title": "Adult site", "link": "https://xxx.example.com", "snippet": "Tower pics"},
			{"title": "Only a title", "link": "https://example.org/tower"},
			{"title": "No link", "snippet": "orphan"},
			{"title": "Third", "link": "https://example.net/3", "snippet": "Third result."},
			{"title": "Fourth", "link": "https://example.net/4", "snippet": "Fourth result."}
		]}`))
	}))
	defer server.Close()

	backend, err := NewSerperBackend(SerperConfig{APIKey: "serper-key", Endpoint: server.URL, Timeout: 5}, nil)
	require.NoError(t, err)

	results, err := backend.Search(context.Background(), "Where is the Eiffel Tower?", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "The Eiffel Tower is in Paris.", results[0].Snippet)
	assert.Equal(t, "web", results[0].Source)
	assert.Equal(t, "Only a title", results[1].Snippet, "title stands in for a missing snippet")
	assert.Equal(t, "https://example.net/3", results[2].URL)
}

func TestSerperBackend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "Unauthorized"}`))
	}))
	defer server.Close()

	backend, err := NewSerperBackend(SerperConfig{APIKey: "bad", Endpoint: server.URL}, worker.NewHostLimiter(100, 10))
	require.NoError(t, err)

	_, err = backend.Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "403")
}

func TestIsSafe(t *testing.T) {
	assert.True(t, IsSafe("The Eiffel Tower is in Paris."))
	assert.False(t, IsSafe("https://NUDE.example.com"))
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(model.SearchConfig{Provider: "serper"}, nil, model.HTTPConfig{})
	require.NoError(t, err)
	assert.Equal(t, "none", b.Name(), "missing key degrades to none")

	b, err = NewBackend(model.SearchConfig{Provider: "serper", APIKey: "k"}, nil, model.HTTPConfig{})
	require.NoError(t, err)
	assert.Equal(t, "serper", b.Name())

	_, err = NewBackend(model.SearchConfig{Provider: "bing"}, nil, model.HTTPConfig{})
	assert.Error(t, err)
}

type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	results  map[string][]SearchResult
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[query]++
	if f.fail[query] {
		return nil, errors.New("search down")
	}
	return f.results[query], nil
}

func TestCachedBackend(t *testing.T) {
	fake := &fakeBackend{results: map[string][]SearchResult{
		"q": {{Snippet: "s", URL: "https://example.com"}},
	}, fail: map[string]bool{"broken": true}}
	b := NewCachedBackend(fake, cache.NewMemoryCache(time.Hour, time.Minute), time.Hour)

	for i := 0; i < 3; i++ {
		res, err := b.Search(context.Background(), "q", 3)
		require.NoError(t, err)
		assert.Len(t, res, 1)
	}
	assert.Equal(t, 1, fake.calls["q"])

	_, err := b.Search(context.Background(), "broken", 3)
	assert.Error(t, err)
	_, _ = b.Search(context.Background(), "broken", 3)
	assert.Equal(t, 2, fake.calls["broken"], "failures are not cached")
}

func TestRetriever_Retrieve(t *testing.T) {
	fake := &fakeBackend{
		results: map[string][]SearchResult{
			"claim A":   {{Snippet: "a1", URL: "https://a.example/1"}, {Snippet: "a2", URL: "https://a.example/2"}},
			"query A2":  {{Snippet: "a1 again", URL: "https://a.example/1/"}, {Snippet: "a3", URL: "https://a.example/3"}},
			"claim B":   {},
			"query C-2": {{Snippet: "c", URL: "https://c.example"}},
		},
		fail: map[string]bool{"claim C": true},
	}
	r := NewRetriever(fake, 3, 2)

	claims := []string{"claim A", "claim B", "claim C"}
	queries := [][]string{{"claim A", "query A2"}, {"claim B"}, {"claim C", "query C-2"}}

	evidence := r.Retrieve(context.Background(), claims, queries)

	require.Len(t, evidence, 3)
	require.Len(t, evidence[0], 3)
	assert.Equal(t, "a1", evidence[0][0].Text)
	assert.Equal(t, "a2", evidence[0][1].Text)
	assert.Equal(t, "a3", evidence[0][2].Text)
	assert.Equal(t, "query A2", evidence[0][2].Query)
	assert.Equal(t, "claim A", evidence[0][2].Claim)
	assert.Empty(t, evidence[1])
	require.Len(t, evidence[2], 1, "a failed query still leaves the others")
	assert.Equal(t, "c", evidence[2][0].Text)
	assert.LessOrEqual(t, fake.peak.Load(), int32(2))
}

func TestRetriever_ManyQueries(t *testing.T) {
	fake := &fakeBackend{results: map[string][]SearchResult{}}
	claims := make([]string, 20)
	queries := make([][]string, 20)
	for i := range claims {
		claims[i] = fmt.Sprintf("claim %d", i)
		queries[i] = []string{claims[i]}
		fake.results[claims[i]] = []SearchResult{{Snippet: claims[i], URL: fmt.Sprintf("https://example.com/%d", i)}}
	}

	evidence := NewRetriever(fake, 1, 4).Retrieve(context.Background(), claims, queries)
	for i := range claims {
		require.Len(t, evidence[i], 1)
		assert.Equal(t, claims[i], evidence[i][0].Text)
	}
}

func TestNoneBackend(t *testing.T) {
	res, err := NoneBackend{}.Search(context.Background(), "anything", 3)
	assert.NoError(t, err)
	assert.Empty(t, res)
}
