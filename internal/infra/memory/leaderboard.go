package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// LanguageLeaderboard is the in-memory per-language score rollup.
type LanguageLeaderboard struct {
	mu     sync.RWMutex
	scores map[string]map[string]float64 // language -> player ID -> score
}

func NewLanguageLeaderboard() *LanguageLeaderboard {
	return &LanguageLeaderboard{scores: make(map[string]map[string]float64)}
}

func (l *LanguageLeaderboard) IncrScore(_ context.Context, playerID, language string, delta float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scores[language] == nil {
		l.scores[language] = make(map[string]float64)
	}
	l.scores[language][playerID] += delta
	return nil
}

func (l *LanguageLeaderboard) Top(_ context.Context, language string, n int) ([]domain.LanguageScore, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := make([]domain.LanguageScore, 0, len(l.scores[language]))
	for playerID, score := range l.scores[language] {
		entries = append(entries, domain.LanguageScore{PlayerID: playerID, Language: language, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
