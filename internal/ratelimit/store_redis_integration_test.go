//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sixd/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	clock time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.clock = time.Now()
	s.store = NewRedisStore(s.redis.Client)
	s.store.now = func() time.Time { return s.clock }
}

func (s *RedisStoreSuite) TestAllowsUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		res, err := s.store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
		s.clock = s.clock.Add(time.Millisecond)
	}

	res, err := s.store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Positive(res.RetryAfter)

	keys, err := s.redis.Keys(ctx, redisKeyPrefix+"*")
	s.Require().NoError(err)
	s.Equal([]string{redisKeyPrefix + "ip:10.0.0.1"}, keys)
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "ip:a", 1, time.Minute)
	s.Require().NoError(err)

	res, err := s.store.Allow(ctx, "ip:a", 1, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)

	s.clock = s.clock.Add(time.Minute + time.Second)
	res, err = s.store.Allow(ctx, "ip:a", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
