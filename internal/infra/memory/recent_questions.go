package memory

import (
	"context"
	"sync"
	"time"
)

type recentEntry struct {
	text string
	at   time.Time
}

// RecentQuestionLog keeps recently generated question texts per
// language+difficulty so generation can avoid repeats.
type RecentQuestionLog struct {
	mu      sync.Mutex
	entries map[string][]recentEntry
}

func NewRecentQuestionLog() *RecentQuestionLog {
	return &RecentQuestionLog{entries: make(map[string][]recentEntry)}
}

func (l *RecentQuestionLog) Add(_ context.Context, language, difficulty, text string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := language + ":" + difficulty
	l.entries[key] = append(l.entries[key], recentEntry{text: text, at: at})
	return nil
}

func (l *RecentQuestionLog) Recent(_ context.Context, language, difficulty string, since time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := language + ":" + difficulty
	kept := l.entries[key][:0]
	var texts []string
	for _, e := range l.entries[key] {
		if e.at.Before(since) {
			continue
		}
		kept = append(kept, e)
		texts = append(texts, e.text)
	}
	l.entries[key] = kept
	return texts, nil
}
