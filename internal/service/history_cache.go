package service

import (
	"context"
	"credahead_backend/pkg/logger"
	"credahead_backend/pkg/monitoring"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HistoryStore is the canonical user_question_history source.
type HistoryStore interface {
	ListQuestionIDs(ctx context.Context, userID uint, contextKey string) ([]string, error)
}

// HistoryMirror is the durable copy of cache entries. Implemented over Redis.
type HistoryMirror interface {
	Save(ctx context.Context, userID uint, contextKey string, questionIDs []string) error
	Add(ctx context.Context, userID uint, contextKey, questionID string) error
	Remove(ctx context.Context, userID uint, contextKey string) error
	LoadUser(ctx context.Context, userID uint) (map[string][]string, error)
	RemoveAll(ctx context.Context) error
}

type historyEntry struct {
	questionIDs map[string]struct{}
	lastFetched time.Time
	context     string
}

// HistoryCache keeps, per (user, context), the question ids a user has
// already answered. Entries are served for ttl after a canonical read;
// AddToHistory only touches entries that already exist.
type HistoryCache struct {
	mu      sync.Mutex
	entries map[string]*historyEntry
	ttl     time.Duration

	store  HistoryStore
	mirror HistoryMirror
	now    func() time.Time
}

// warmValidity is how long an entry restored from the mirror stays usable.
const warmValidity = time.Minute

// NewHistoryCache mirror may be nil.
func NewHistoryCache(store HistoryStore, mirror HistoryMirror, ttl time.Duration) *HistoryCache {
	return &HistoryCache{
		entries: make(map[string]*historyEntry),
		ttl:     ttl,
		store:   store,
		mirror:  mirror,
		now:     time.Now,
	}
}

func cacheKey(userID uint, contextKey string) string {
	return fmt.Sprintf("%d_%s", userID, contextKey)
}

func (c *HistoryCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

func (c *HistoryCache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

func copySet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src))
	for id := range src {
		dst[id] = struct{}{}
	}
	return dst
}

// QuestionHistory returns a copy of the ids answered by userID in contextKey.
// A failed canonical read is returned as an error and nothing is cached.
func (c *HistoryCache) QuestionHistory(ctx context.Context, userID uint, contextKey string) (map[string]struct{}, error) {
	key := cacheKey(userID, contextKey)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.lastFetched) < c.ttl {
			ids := copySet(e.questionIDs)
			c.mu.Unlock()
			monitoring.HistoryCacheLookups.WithLabelValues("hit").Inc()
			return ids, nil
		}
		// 过期即删除，读取失败时也不保留旧条目
		delete(c.entries, key)
	}
	c.mu.Unlock()
	monitoring.HistoryCacheLookups.WithLabelValues("miss").Inc()

	rows, err := c.store.ListQuestionIDs(ctx, userID, contextKey)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(rows))
	for _, id := range rows {
		ids[id] = struct{}{}
	}

	c.mu.Lock()
	c.entries[key] = &historyEntry{
		questionIDs: ids,
		lastFetched: c.now(),
		context:     contextKey,
	}
	c.mu.Unlock()

	if c.mirror != nil {
		if err := c.mirror.Save(ctx, userID, contextKey, rows); err != nil {
			logger.Log.Warn("history mirror save failed",
				zap.Uint("userId", userID),
				zap.String("context", contextKey),
				zap.Error(err))
		}
	}
	return copySet(ids), nil
}

// AddToHistory optimistically records questionID in an existing entry. It does
// not write user_question_history; callers persist the canonical row.
func (c *HistoryCache) AddToHistory(ctx context.Context, userID uint, contextKey, questionID string) {
	key := cacheKey(userID, contextKey)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.questionIDs[questionID] = struct{}{}
	}
	c.mu.Unlock()

	if ok && c.mirror != nil {
		if err := c.mirror.Add(ctx, userID, contextKey, questionID); err != nil {
			logger.Log.Warn("history mirror add failed", zap.Uint("userId", userID), zap.Error(err))
		}
	}
}

// InvalidateContext forces the next lookup for (userID, contextKey) to read
// canonical history.
func (c *HistoryCache) InvalidateContext(ctx context.Context, userID uint, contextKey string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(userID, contextKey))
	c.mu.Unlock()

	if c.mirror != nil {
		if err := c.mirror.Remove(ctx, userID, contextKey); err != nil {
			logger.Log.Warn("history mirror remove failed", zap.Uint("userId", userID), zap.Error(err))
		}
	}
}

// Warm restores a user's mirrored entries into memory. Restored entries
// expire warmValidity from now unless refreshed from the canonical store.
func (c *HistoryCache) Warm(ctx context.Context, userID uint) (int, error) {
	if c.mirror == nil {
		return 0, nil
	}
	mirrored, err := c.mirror.LoadUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fetched := c.now().Add(-c.ttl + warmValidity)
	restored := 0
	for contextKey, ids := range mirrored {
		key := cacheKey(userID, contextKey)
		if e, ok := c.entries[key]; ok && c.now().Sub(e.lastFetched) < c.ttl {
			continue
		}
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		c.entries[key] = &historyEntry{questionIDs: set, lastFetched: fetched, context: contextKey}
		restored++
	}
	return restored, nil
}

// Prune drops every expired entry and returns how many were removed. Mirror
// keys expire on their own Redis TTL.
func (c *HistoryCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.lastFetched) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len 当前内存中的条目数
func (c *HistoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *HistoryCache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*historyEntry)
	c.mu.Unlock()

	if c.mirror != nil {
		return c.mirror.RemoveAll(ctx)
	}
	return nil
}
