package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"credahead_backend/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistoryStore struct {
	mu    sync.Mutex
	rows  map[string][]string
	err   error
	calls int
}

func (f *fakeHistoryStore) ListQuestionIDs(_ context.Context, _ uint, contextKey string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.rows[contextKey]...), nil
}

func (f *fakeHistoryStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type manualClock struct {
	t time.Time
}

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(store HistoryStore, mirror HistoryMirror) (*HistoryCache, *manualClock) {
	clock := &manualClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := NewHistoryCache(store, mirror, 5*time.Minute)
	c.now = clock.now
	return c, clock
}

func newTestMirror(t *testing.T) (*repository.RedisHistoryMirror, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return repository.NewRedisHistoryMirror(rdb, 5*time.Minute), mr
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestHistoryCache_ServesWithinTTL(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1", "Q2"}}}
	cache, clock := newTestCache(store, nil)

	ids, err := cache.QuestionHistory(ctx, 7, "assessment")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2"}, keys(ids))

	clock.advance(4 * time.Minute)
	_, err = cache.QuestionHistory(ctx, 7, "assessment")
	require.NoError(t, err)
	assert.Equal(t, 1, store.callCount())

	clock.advance(time.Minute)
	_, err = cache.QuestionHistory(ctx, 7, "assessment")
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount(), "entry older than ttl must be refreshed")
}

func TestHistoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"L1": {"Q1"}}}
	cache, _ := newTestCache(store, nil)

	ids, err := cache.QuestionHistory(ctx, 1, "L1")
	require.NoError(t, err)
	ids["injected"] = struct{}{}

	again, err := cache.QuestionHistory(ctx, 1, "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, keys(again))
}

func TestHistoryCache_ContextsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}, "L2": {"Q9"}}}
	cache, _ := newTestCache(store, nil)

	a, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	l, err := cache.QuestionHistory(ctx, 1, "L2")
	require.NoError(t, err)

	assert.Equal(t, []string{"Q1"}, keys(a))
	assert.Equal(t, []string{"Q9"}, keys(l))
}

func TestHistoryCache_AddToHistory(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}}}
	cache, _ := newTestCache(store, nil)

	// 没有条目时不创建
	cache.AddToHistory(ctx, 1, "assessment", "Q5")
	ids, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, keys(ids))

	cache.AddToHistory(ctx, 1, "assessment", "Q5")
	ids, err = cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q5"}, keys(ids))
	assert.Equal(t, 1, store.callCount())
}

func TestHistoryCache_InvalidateContext(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}}}
	cache, _ := newTestCache(store, nil)

	_, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	cache.InvalidateContext(ctx, 1, "assessment")
	_, err = cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount())
}

func TestHistoryCache_StoreErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{err: errors.New("connection reset")}
	cache, _ := newTestCache(store, nil)

	_, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.Error(t, err)

	store.mu.Lock()
	store.err = nil
	store.rows = map[string][]string{"assessment": {"Q3"}}
	store.mu.Unlock()

	ids, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q3"}, keys(ids))
}

func TestHistoryCache_SetTTL(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}}}
	cache, clock := newTestCache(store, nil)

	_, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)

	cache.SetTTL(30 * time.Second)
	assert.Equal(t, 30*time.Second, cache.TTL())
	clock.advance(31 * time.Second)
	_, err = cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount())
}

func TestHistoryCache_MirrorsToRedis(t *testing.T) {
	ctx := context.Background()
	mirror, mr := newTestMirror(t)
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1", "Q2"}}}
	cache, _ := newTestCache(store, mirror)

	_, err := cache.QuestionHistory(ctx, 7, "assessment")
	require.NoError(t, err)

	members, err := mr.Members("history:7:assessment")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Q1", "Q2"}, members)
	assert.Equal(t, 5*time.Minute, mr.TTL("history:7:assessment"))

	cache.AddToHistory(ctx, 7, "assessment", "Q3")
	members, err = mr.Members("history:7:assessment")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Q1", "Q2", "Q3"}, members)

	cache.InvalidateContext(ctx, 7, "assessment")
	assert.False(t, mr.Exists("history:7:assessment"))
}

func TestHistoryCache_WarmFromMirror(t *testing.T) {
	ctx := context.Background()
	mirror, _ := newTestMirror(t)

	first, _ := newTestCache(&fakeHistoryStore{rows: map[string][]string{"L3": {"Q7"}}}, mirror)
	_, err := first.QuestionHistory(ctx, 9, "L3")
	require.NoError(t, err)

	// 新实例（如重启后）从镜像恢复
	store := &fakeHistoryStore{rows: map[string][]string{"L3": {"Q7", "Q8"}}}
	second, clock := newTestCache(store, mirror)
	n, err := second.Warm(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := second.QuestionHistory(ctx, 9, "L3")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q7"}, keys(ids))
	assert.Equal(t, 0, store.callCount())

	clock.advance(warmValidity)
	ids, err = second.QuestionHistory(ctx, 9, "L3")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q7", "Q8"}, keys(ids))
	assert.Equal(t, 1, store.callCount())
}

func TestHistoryCache_WarmWithoutMirror(t *testing.T) {
	cache, _ := newTestCache(&fakeHistoryStore{}, nil)
	n, err := cache.Warm(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistoryCache_ClearAll(t *testing.T) {
	ctx := context.Background()
	mirror, mr := newTestMirror(t)
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}, "L1": {"Q2"}}}
	cache, _ := newTestCache(store, mirror)

	_, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	_, err = cache.QuestionHistory(ctx, 2, "L1")
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 2)

	require.NoError(t, cache.ClearAll(ctx))
	assert.Empty(t, mr.Keys())

	_, err = cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	assert.Equal(t, 3, store.callCount())
}

func TestHistoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}}}
	cache, _ := newTestCache(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = cache.QuestionHistory(ctx, 1, "assessment")
			cache.AddToHistory(ctx, 1, "assessment", "Q"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	ids, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	assert.Contains(t, ids, "Q1")
}

func TestHistoryCache_ExpiredEntriesAreReleased(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}}}
	cache, clock := newTestCache(store, nil)

	for user := uint(1); user <= 500; user++ {
		_, err := cache.QuestionHistory(ctx, user, "assessment")
		require.NoError(t, err)
	}
	require.Equal(t, 500, cache.Len())

	clock.advance(time.Hour)
	assert.Equal(t, 500, cache.Prune())
	assert.Zero(t, cache.Len())
	assert.Zero(t, cache.Prune())
}

func TestHistoryCache_PruneKeepsFreshEntries(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}, "L01": {"L01-Q01"}}}
	cache, clock := newTestCache(store, nil)

	_, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)
	clock.advance(3 * time.Minute)
	_, err = cache.QuestionHistory(ctx, 1, "L01")
	require.NoError(t, err)

	clock.advance(3 * time.Minute)
	assert.Equal(t, 1, cache.Prune())
	assert.Equal(t, 1, cache.Len())

	ids, err := cache.QuestionHistory(ctx, 1, "L01")
	require.NoError(t, err)
	assert.Equal(t, []string{"L01-Q01"}, keys(ids))
	assert.Equal(t, 2, store.callCount(), "fresh entry served from memory")
}

func TestHistoryCache_ExpiredEntryDroppedOnFailedRefresh(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistoryStore{rows: map[string][]string{"assessment": {"Q1"}}}
	cache, clock := newTestCache(store, nil)

	_, err := cache.QuestionHistory(ctx, 1, "assessment")
	require.NoError(t, err)

	store.mu.Lock()
	store.err = errors.New("db down")
	store.mu.Unlock()
	clock.advance(10 * time.Minute)

	_, err = cache.QuestionHistory(ctx, 1, "assessment")
	require.Error(t, err)
	assert.Zero(t, cache.Len())
}
