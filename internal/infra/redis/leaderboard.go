package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// LanguageLeaderboard keeps per-language cumulative scores in Redis sorted
// sets: ZINCRBY leaderboard:lang:{language} {delta} {playerID}.
type LanguageLeaderboard struct {
	client *redis.Client
}

func NewLanguageLeaderboard(client *redis.Client) *LanguageLeaderboard {
	return &LanguageLeaderboard{client: client}
}

func (l *LanguageLeaderboard) IncrScore(ctx context.Context, playerID, language string, delta float64) error {
	return l.client.ZIncrBy(ctx, l.key(language), delta, playerID).Err()
}

func (l *LanguageLeaderboard) Top(ctx context.Context, language string, n int) ([]domain.LanguageScore, error) {
	if n <= 0 {
		n = 10
	}
	members, err := l.client.ZRevRangeWithScores(ctx, l.key(language), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LanguageScore, 0, len(members))
	for _, m := range members {
		playerID, _ := m.Member.(string)
		entries = append(entries, domain.LanguageScore{
			PlayerID: playerID,
			Language: language,
			Score:    m.Score,
		})
	}
	return entries, nil
}

func (l *LanguageLeaderboard) key(language string) string {
	return "leaderboard:lang:" + language
}
