package repository

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

const historyKeyPrefix = "history:"

// RedisHistoryMirror 题目历史缓存的持久镜像，每个 (user, context) 一个 Set
type RedisHistoryMirror struct {
	Redis *redis.Client
	ttl   atomic.Int64
}

func NewRedisHistoryMirror(rdb *redis.Client, ttl time.Duration) *RedisHistoryMirror {
	m := &RedisHistoryMirror{Redis: rdb}
	m.SetTTL(ttl)
	return m
}

// SetTTL 配置热更新时调整 key 过期时间
func (m *RedisHistoryMirror) SetTTL(ttl time.Duration) {
	m.ttl.Store(int64(ttl))
}

func (m *RedisHistoryMirror) TTL() time.Duration {
	return time.Duration(m.ttl.Load())
}

func historyKey(userID uint, contextKey string) string {
	return fmt.Sprintf("%s%d:%s", historyKeyPrefix, userID, contextKey)
}

// Save 覆盖写入整个集合；空集合只删除 key
func (m *RedisHistoryMirror) Save(ctx context.Context, userID uint, contextKey string, questionIDs []string) error {
	key := historyKey(userID, contextKey)
	pipe := m.Redis.TxPipeline()
	pipe.Del(ctx, key)
	if len(questionIDs) > 0 {
		members := make([]interface{}, len(questionIDs))
		for i, id := range questionIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
		if ttl := m.TTL(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisHistoryMirror) Add(ctx context.Context, userID uint, contextKey, questionID string) error {
	key := historyKey(userID, contextKey)
	pipe := m.Redis.TxPipeline()
	pipe.SAdd(ctx, key, questionID)
	if ttl := m.TTL(); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisHistoryMirror) Remove(ctx context.Context, userID uint, contextKey string) error {
	return m.Redis.Del(ctx, historyKey(userID, contextKey)).Err()
}

// LoadUser 读取某用户全部 context 的镜像，返回 context -> question ids
func (m *RedisHistoryMirror) LoadUser(ctx context.Context, userID uint) (map[string][]string, error) {
	prefix := fmt.Sprintf("%s%d:", historyKeyPrefix, userID)
	result := make(map[string][]string)

	iter := m.Redis.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids, err := m.Redis.SMembers(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		result[strings.TrimPrefix(key, prefix)] = ids
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveAll 清空所有历史镜像
func (m *RedisHistoryMirror) RemoveAll(ctx context.Context) error {
	iter := m.Redis.Scan(ctx, 0, historyKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return m.Redis.Del(ctx, keys...).Err()
}
