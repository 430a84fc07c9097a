package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecentQuestionLog stores recently generated question texts in a sorted set
// per language+difficulty, scored by unix timestamp:
// ZADD questions:recent:{language}:{difficulty} {unix} {text}.
// Reads prune entries older than the window; keys expire with jitter so a
// burst of games does not expire them all at once.
type RecentQuestionLog struct {
	client *redis.Client
	window time.Duration
	rnd    *rand.Rand
}

func NewRecentQuestionLog(client *redis.Client, window time.Duration) *RecentQuestionLog {
	return &RecentQuestionLog{
		client: client,
		window: window,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *RecentQuestionLog) Add(ctx context.Context, language, difficulty, text string, at time.Time) error {
	key := l.key(language, difficulty)
	pipe := l.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.Unix()), Member: text})
	pipe.Expire(ctx, key, l.windowWithJitter())
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RecentQuestionLog) Recent(ctx context.Context, language, difficulty string, since time.Time) ([]string, error) {
	key := l.key(language, difficulty)
	cutoff := strconv.FormatInt(since.Unix(), 10)
	if err := l.client.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff).Err(); err != nil {
		return nil, err
	}
	return l.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
}

func (l *RecentQuestionLog) key(language, difficulty string) string {
	return "questions:recent:" + language + ":" + difficulty
}

func (l *RecentQuestionLog) windowWithJitter() time.Duration {
	jitterMax := int64(l.window) / 10
	if jitterMax <= 0 {
		return l.window
	}
	return l.window + time.Duration(l.rnd.Int63n(jitterMax+1))
}
