package cricbuzz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/cricket-match-service/internal/domain/scorecard"
	"github.com/riskibarqy/cricket-match-service/internal/platform/cache"
	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
	"github.com/riskibarqy/cricket-match-service/internal/platform/resilience"
	"github.com/riskibarqy/cricket-match-service/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	providerName   = "cricbuzz"
	defaultBaseURL = "https://cricbuzz-cricket.p.rapidapi.com"
	defaultAPIHost = "cricbuzz-cricket.p.rapidapi.com"
	maxBodyBytes   = 6 << 20

	EndpointMatchInfo  = "match_info"
	EndpointScorecard  = "scorecard"
	EndpointCommentary = "commentary"
	EndpointMatchList  = "match_list"

	ResultOK          = "ok"
	ResultNotFound    = "not_found"
	ResultRateLimited = "rate_limited"
	ResultCircuitOpen = "circuit_open"
	ResultError       = "error"
)

var errCricbuzzTransient = crerr.New("cricbuzz transient failure")

// RequestObserver receives one observation per logical request, after retries.
type RequestObserver interface {
	ObserveUpstreamRequest(endpoint, result string, duration time.Duration)
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	APIHost        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
	Observer       RequestObserver
	// ListCacheTTL keeps parsed match listings per kind. Zero disables the cache.
	ListCacheTTL time.Duration
}

type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	apiHost      string
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	breaker      *resilience.CircuitBreaker
	flight       singleflight.Group
	lists        *cache.Store[[]usecase.ListedMatch]
	observer     RequestObserver
	logger       *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiHost := strings.TrimSpace(cfg.APIHost)
	if apiHost == "" {
		apiHost = defaultAPIHost
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	client := &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiHost:      apiHost,
		maxRetries:   maxInt(cfg.MaxRetries, 0),
		retryBackoff: retryBackoff,
		limiter:      limiter,
		observer:     cfg.Observer,
		logger:       logger,
	}
	if cfg.ListCacheTTL > 0 {
		client.lists = cache.NewStore[[]usecase.ListedMatch](cfg.ListCacheTTL)
	}
	client.breaker = resilience.NewCircuitBreaker(providerName, cfg.CircuitBreaker, isCricbuzzCircuitFailure,
		func(name string, from, to resilience.CircuitState) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		})
	return client
}

func (c *Client) FetchMatchInfo(ctx context.Context, matchID string) ([]byte, error) {
	path, err := matchPath(matchID, "")
	if err != nil {
		return nil, err
	}
	return c.get(ctx, EndpointMatchInfo, path)
}

func (c *Client) FetchScorecard(ctx context.Context, matchID string) ([]byte, error) {
	path, err := matchPath(matchID, "/hscard")
	if err != nil {
		return nil, err
	}
	return c.get(ctx, EndpointScorecard, path)
}

func (c *Client) FetchCommentary(ctx context.Context, matchID string) ([]byte, error) {
	path, err := matchPath(matchID, "/comm")
	if err != nil {
		return nil, err
	}
	return c.get(ctx, EndpointCommentary, path)
}

// ListMatches flattens typeMatches -> seriesMatches -> seriesAdWrapper.matches into raw entries.
func (c *Client) ListMatches(ctx context.Context, kind usecase.MatchListKind) ([]usecase.ListedMatch, error) {
	kind, err := usecase.ParseMatchListKind(string(kind))
	if err != nil {
		return nil, err
	}
	if c.lists == nil {
		return c.listMatches(ctx, kind)
	}
	return c.lists.GetOrLoad(ctx, string(kind), func(ctx context.Context) ([]usecase.ListedMatch, error) {
		return c.listMatches(ctx, kind)
	})
}

func (c *Client) listMatches(ctx context.Context, kind usecase.MatchListKind) ([]usecase.ListedMatch, error) {
	raw, err := c.get(ctx, EndpointMatchList, "/matches/v1/"+string(kind))
	if err != nil {
		return nil, err
	}

	var payload matchListResponse
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode match list: %v", usecase.ErrUpstreamUnavailable, err)
	}

	out := make([]usecase.ListedMatch, 0, 32)
	for _, group := range payload.TypeMatches {
		for _, series := range group.SeriesMatches {
			if series.SeriesAdWrapper == nil {
				continue
			}
			for _, entry := range series.SeriesAdWrapper.Matches {
				id := scorecard.StringValue(scorecard.Lookup(scorecard.Decode(entry), "matchInfo.matchId"))
				if id == "" {
					continue
				}
				out = append(out, usecase.ListedMatch{MatchID: id, Payload: []byte(entry)})
			}
		}
	}
	return out, nil
}

func matchPath(matchID, suffix string) (string, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return "", fmt.Errorf("%w: match id is required", usecase.ErrInvalidInput)
	}
	return "/mcenter/v1/" + url.PathEscape(matchID) + suffix, nil
}

// get collapses identical in-flight requests. The shared request is detached from any single
// caller's cancellation; each caller still stops waiting when its own ctx ends.
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	started := time.Now()
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(path, func() (any, error) {
		return c.guarded(shared, endpoint, path)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		c.observe(endpoint, res.Err, time.Since(started))
		if res.Err != nil {
			return nil, res.Err
		}
		raw, ok := res.Val.([]byte)
		if !ok {
			return nil, fmt.Errorf("unexpected response payload type %T", res.Val)
		}
		return raw, nil
	}
}

func (c *Client) guarded(ctx context.Context, endpoint, path string) ([]byte, error) {
	var raw []byte
	err := c.breaker.Execute(func() error {
		var reqErr error
		raw, reqErr = c.executeRequest(ctx, endpoint, path)
		return reqErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "cricbuzz circuit breaker rejected request", "endpoint", endpoint, "state", c.breaker.State())
		return nil, fmt.Errorf("%w: %w", usecase.ErrUpstreamUnavailable, err)
	}
	return raw, err
}

func (c *Client) executeRequest(ctx context.Context, endpoint, path string) ([]byte, error) {
	fullURL := c.baseURL + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for provider rate limit: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", c.apiHost)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = markTransient(fmt.Errorf("send request: %s", sanitizeSensitiveText(err.Error(), c.apiKey)))
		} else {
			raw, readErr := readBody(resp.Body)
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = markTransient(fmt.Errorf("read response body: %v", readErr))
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
					return nil, fmt.Errorf("%w: %s returned no content", usecase.ErrNotFound, endpoint)
				}
				return raw, nil
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, rateLimitError(resp, raw)
			case resp.StatusCode == http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s path=%s", usecase.ErrNotFound, endpoint, path)
			case isRetryableStatus(resp.StatusCode):
				lastErr = markTransient(fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw)))
			default:
				return nil, fmt.Errorf("%w: provider status=%d body=%s", usecase.ErrUpstreamUnavailable, resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * c.retryBackoff
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = markTransient(errors.New("provider request failed"))
	}
	c.logger.WarnContext(ctx, "cricbuzz request failed", "endpoint", endpoint, "path", path, "error", lastErr)
	return nil, lastErr
}

func (c *Client) observe(endpoint string, err error, duration time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstreamRequest(endpoint, requestResult(err), duration)
}

func requestResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, usecase.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, usecase.ErrRateLimited):
		return ResultRateLimited
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ResultCircuitOpen
	default:
		return ResultError
	}
}

func readBody(body io.Reader) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(io.LimitReader(body, maxBodyBytes)); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

func rateLimitError(resp *http.Response, body []byte) error {
	out := &usecase.RateLimitError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		Remaining:  -1,
		Message:    abbreviateBody(body),
	}
	if remaining, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("X-RateLimit-Requests-Remaining"))); err == nil {
		out.Remaining = remaining
	}
	return out
}

// parseRetryAfter accepts delta seconds or an HTTP date.
func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil && at.After(now) {
		return at.Sub(now).Round(time.Second)
	}
	return 0
}

func markTransient(err error) error {
	return crerr.Mark(fmt.Errorf("%w: %v", usecase.ErrUpstreamUnavailable, err), errCricbuzzTransient)
}

func isCricbuzzCircuitFailure(err error) bool {
	return err != nil && crerr.Is(err, errCricbuzzTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" || apiKey == "" {
		return value
	}
	return strings.ReplaceAll(value, apiKey, "REDACTED")
}

const maxLoggedBodyBytes = 240

// abbreviateBody cuts at a rune boundary so log lines stay valid UTF-8.
func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= maxLoggedBodyBytes {
		return text
	}
	cut := maxLoggedBodyBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
