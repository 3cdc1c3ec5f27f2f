package news

import (
	"context"
	"errors"
	"time"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/domain/service"
	"WhyAgent/pkg/cache"
	"WhyAgent/pkg/logger"
)

// CachedSearcher memoizes successful searches.
type CachedSearcher struct {
	next   service.NewsSearcher
	cache  cache.Service
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedSearcher wraps next with a cache. A zero ttl disables caching.
func NewCachedSearcher(next service.NewsSearcher, c cache.Service, ttl time.Duration, l *logger.Logger) *CachedSearcher {
	return &CachedSearcher{next: next, cache: c, ttl: ttl, logger: l}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, max int) ([]models.NewsItem, error) {
	if s.ttl <= 0 || s.cache == nil {
		return s.next.Search(ctx, query, max)
	}

	key := cache.GenerateKeyWithParams("news", query, max)
	var items []models.NewsItem
	err := s.cache.Get(ctx, key, &items)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("news cache read failed", logger.Error(err))
	}

	items, err = s.next.Search(ctx, query, max)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := s.cache.Set(ctx, key, items, s.ttl); err != nil {
			s.logger.Warn("news cache write failed", logger.Error(err))
		}
	}
	return items, nil
}
