package cricbuzz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
	"github.com/riskibarqy/cricket-match-service/internal/platform/resilience"
	"github.com/riskibarqy/cricket-match-service/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	endpoint string
	result   string
}

type recordingObserver struct {
	mu    sync.Mutex
	items []observation
}

func (o *recordingObserver) ObserveUpstreamRequest(endpoint, result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, observation{endpoint: endpoint, result: result})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*ClientConfig)) (*Client, *recordingObserver) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	observer := &recordingObserver{}
	cfg := ClientConfig{
		BaseURL:      server.URL,
		APIKey:       "secret-key",
		APIHost:      "cricbuzz-cricket.p.rapidapi.com",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		Logger:       logging.NewNop(),
		Observer:     observer,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg), observer
}

func TestClient_FetchMatchInfo(t *testing.T) {
	t.Parallel()

	client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcenter/v1/87654", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-RapidAPI-Key"))
		assert.Equal(t, "cricbuzz-cricket.p.rapidapi.com", r.Header.Get("X-RapidAPI-Host"))
		_, _ = w.Write([]byte(`{"matchInfo":{"matchId":87654,"status":"Innings Break"}}`))
	}, nil)

	raw, err := client.FetchMatchInfo(context.Background(), "87654")
	require.NoError(t, err)
	assert.JSONEq(t, `{"matchInfo":{"matchId":87654,"status":"Innings Break"}}`, string(raw))
	assert.Equal(t, []observation{{endpoint: EndpointMatchInfo, result: ResultOK}}, observer.items)
}

func TestClient_EndpointPaths(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var paths []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}, nil)

	ctx := context.Background()
	_, err := client.FetchScorecard(ctx, "1")
	require.NoError(t, err)
	_, err = client.FetchCommentary(ctx, "1")
	require.NoError(t, err)

	assert.Equal(t, []string{"/mcenter/v1/1/hscard", "/mcenter/v1/1/comm"}, paths)

	_, err = client.FetchMatchInfo(ctx, " ")
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
}

func TestClient_RateLimitIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, observer := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "30")
		w.Header().Set("X-RateLimit-Requests-Remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"You have exceeded the rate limit per second for your plan"}`))
	}, nil)

	_, err := client.FetchMatchInfo(context.Background(), "1")
	require.ErrorIs(t, err, usecase.ErrRateLimited)

	rateErr, ok := usecase.AsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, rateErr.RetryAfter)
	assert.Equal(t, 0, rateErr.Remaining)
	assert.Equal(t, "cricbuzz", rateErr.Provider)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, ResultRateLimited, observer.items[0].result)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, nil)

	raw, err := client.FetchMatchInfo(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(raw))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_NotFound(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mcenter/v1/2" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	}, nil)

	_, err := client.FetchMatchInfo(context.Background(), "1")
	require.ErrorIs(t, err, usecase.ErrNotFound)

	_, err = client.FetchMatchInfo(context.Background(), "2")
	require.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestClient_ExhaustedRetriesAreUpstreamUnavailable(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`upstream maintenance`))
	}, nil)

	_, err := client.FetchMatchInfo(context.Background(), "1")
	require.ErrorIs(t, err, usecase.ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, observer := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *ClientConfig) {
		cfg.MaxRetries = 0
		cfg.CircuitBreaker = resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		}
	})

	_, err := client.FetchMatchInfo(context.Background(), "1")
	require.ErrorIs(t, err, usecase.ErrUpstreamUnavailable)

	_, err = client.FetchMatchInfo(context.Background(), "1")
	require.ErrorIs(t, err, usecase.ErrUpstreamUnavailable)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, ResultCircuitOpen, observer.items[1].result)
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}, func(cfg *ClientConfig) {
		cfg.CircuitBreaker = resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1}
	})

	for i := 0; i < 3; i++ {
		_, err := client.FetchMatchInfo(context.Background(), "1")
		require.ErrorIs(t, err, usecase.ErrNotFound)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_CallerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	}, nil)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.FetchMatchInfo(ctx, "1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ListMatches(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/matches/v1/recent", r.URL.Path)
		_, _ = w.Write([]byte(`{
		  "typeMatches": [
		    {"matchType": "International", "seriesMatches": [
		      {"seriesAdWrapper": {"seriesId": 1, "seriesName": "Border-Gavaskar Trophy", "matches": [
		        {"matchInfo": {"matchId": 101, "status": "India won by 6 wickets"}, "matchScore": {"team1Score": {"inngs1": {"runs": 171}}}},
		        {"matchInfo": {"status": "missing id"}}
		      ]}},
		      {"adDetail": {"name": "ad"}}
		    ]},
		    {"matchType": "League", "seriesMatches": [
		      {"seriesAdWrapper": {"seriesId": 2, "matches": [{"matchInfo": {"matchId": "202"}}]}}
		    ]}
		  ]
		}`))
	}, nil)

	listed, err := client.ListMatches(context.Background(), usecase.MatchListRecent)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "101", listed[0].MatchID)
	assert.Contains(t, string(listed[0].Payload), "India won by 6 wickets")
	assert.Equal(t, "202", listed[1].MatchID)

	_, err = client.ListMatches(context.Background(), "weekly")
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 12*time.Second, parseRetryAfter("12", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
}

func TestSanitizeSensitiveText(t *testing.T) {
	t.Parallel()

	got := sanitizeSensitiveText(`Get "https://x/?key=secret-key": dial tcp`, "secret-key")
	assert.NotContains(t, got, "secret-key")
	assert.Contains(t, got, "REDACTED")
}

func TestAbbreviateBody(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", abbreviateBody([]byte("  short \n")))

	// 239 ASCII bytes put the two-byte rune across the cut.
	body := strings.Repeat("a", 239) + "é" + strings.Repeat("b", 20)
	got := abbreviateBody([]byte(body))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 239)+"...", got)

	exact := strings.Repeat("x", 238) + "é" + "tail"
	assert.Equal(t, strings.Repeat("x", 238)+"é...", abbreviateBody([]byte(exact)))
}

func TestClient_ListMatchesCachedPerKind(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"typeMatches":[{"seriesMatches":[{"seriesAdWrapper":{"matches":[{"matchInfo":{"matchId":7}}]}}]}]}`))
	}, func(cfg *ClientConfig) {
		cfg.ListCacheTTL = time.Minute
	})

	for i := 0; i < 3; i++ {
		listed, err := client.ListMatches(context.Background(), usecase.MatchListLive)
		require.NoError(t, err)
		require.Len(t, listed, 1)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err := client.ListMatches(context.Background(), usecase.MatchListUpcoming)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}
