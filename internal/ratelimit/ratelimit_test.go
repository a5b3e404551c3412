package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"sixd/pkg/platform/middleware/metadata"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	clock time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.clock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore()
	s.store.now = func() time.Time { return s.clock }
}

func (s *InMemoryStoreSuite) TestAllowsUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		res, err := s.store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(60, res.RetryAfter)
}

func (s *InMemoryStoreSuite) TestKeysAreIndependent() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "ip:a", 1, time.Minute)
	s.Require().NoError(err)

	res, err := s.store.Allow(ctx, "ip:b", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *InMemoryStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	_, _ = s.store.Allow(ctx, "ip:a", 2, time.Minute)
	s.clock = s.clock.Add(30 * time.Second)
	_, _ = s.store.Allow(ctx, "ip:a", 2, time.Minute)

	res, _ := s.store.Allow(ctx, "ip:a", 2, time.Minute)
	s.False(res.Allowed)
	s.Equal(30, res.RetryAfter)

	s.clock = s.clock.Add(30 * time.Second)
	res, _ = s.store.Allow(ctx, "ip:a", 2, time.Minute)
	s.True(res.Allowed, "first hit left the window")
}

func (s *InMemoryStoreSuite) TestSweepDropsExpiredKeys() {
	_, _ = s.store.Allow(context.Background(), "ip:a", 5, time.Minute)
	s.clock = s.clock.Add(2 * time.Minute)
	s.store.Sweep(time.Minute)
	s.Empty(s.store.windows)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	call := func(h http.Handler, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		metadata.ClientMetadata(h).ServeHTTP(rr, req)
		return rr
	}

	t.Run("rejects past the limit with retry hint", func(t *testing.T) {
		h := NewMiddleware(NewInMemoryStore(), 2, time.Minute, logger).Handler(ok)
		assert.Equal(t, http.StatusNoContent, call(h, "198.51.100.1:4000").Code)
		assert.Equal(t, http.StatusNoContent, call(h, "198.51.100.1:4001").Code)

		rr := call(h, "198.51.100.1:4002")
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
		assert.Contains(t, rr.Body.String(), `"error":"rate_limit_exceeded"`)

		assert.Equal(t, http.StatusNoContent, call(h, "198.51.100.2:4000").Code, "other clients unaffected")
	})

	t.Run("zero limit disables", func(t *testing.T) {
		h := NewMiddleware(failingStore{}, 0, time.Minute, logger).Handler(ok)
		for range 5 {
			assert.Equal(t, http.StatusNoContent, call(h, "198.51.100.1:4000").Code)
		}
	})

	t.Run("store failure fails open", func(t *testing.T) {
		h := NewMiddleware(failingStore{}, 1, time.Minute, logger).Handler(ok)
		assert.Equal(t, http.StatusNoContent, call(h, "198.51.100.1:4000").Code)
	})
}

func TestMiddlewareKeysOnPeerNotForwardedHeaders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	proxies, err := metadata.NewResolver([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	send := func(h http.Handler, remote, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rr := httptest.NewRecorder()
		proxies.ClientMetadata(h).ServeHTTP(rr, req)
		return rr.Code
	}

	t.Run("rotating forwarded-for from one direct client is throttled", func(t *testing.T) {
		h := NewMiddleware(NewInMemoryStore(), 3, time.Minute, logger).Handler(ok)
		allowed := 0
		for i := range 50 {
			if send(h, "198.51.100.7:5000", fmt.Sprintf("203.0.113.%d", i)) == http.StatusNoContent {
				allowed++
			}
		}
		assert.Equal(t, 3, allowed)
	})

	t.Run("clients behind a trusted proxy are told apart", func(t *testing.T) {
		h := NewMiddleware(NewInMemoryStore(), 1, time.Minute, logger).Handler(ok)
		assert.Equal(t, http.StatusNoContent, send(h, "10.0.0.2:5000", "203.0.113.1"))
		assert.Equal(t, http.StatusNoContent, send(h, "10.0.0.2:5000", "203.0.113.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.2:5000", "203.0.113.1"))
	})

	t.Run("spoofed hop left of a trusted proxy does not help", func(t *testing.T) {
		h := NewMiddleware(NewInMemoryStore(), 1, time.Minute, logger).Handler(ok)
		assert.Equal(t, http.StatusNoContent, send(h, "10.0.0.2:5000", "1.1.1.1, 203.0.113.1"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.2:5000", "2.2.2.2, 203.0.113.1"))
	})
}
