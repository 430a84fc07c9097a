package redis

import (
	"context"
	"testing"
	"time"
)

func TestRecentQuestionLogWindow(t *testing.T) {
	ctx := context.Background()
	log := NewRecentQuestionLog(newTestClient(t), 5*time.Hour)

	now := time.Now()
	stale := now.Add(-6 * time.Hour)
	if err := log.Add(ctx, "go", "easy", "old question", stale); err != nil {
		t.Fatalf("add stale: %v", err)
	}
	if err := log.Add(ctx, "go", "easy", "fresh question", now.Add(-time.Hour)); err != nil {
		t.Fatalf("add fresh: %v", err)
	}
	if err := log.Add(ctx, "go", "hard", "other bucket", now); err != nil {
		t.Fatalf("add other bucket: %v", err)
	}

	recent, err := log.Recent(ctx, "go", "easy", now.Add(-5*time.Hour))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0] != "fresh question" {
		t.Fatalf("expected only the fresh question, got %+v", recent)
	}

	// The stale entry was pruned from the set, not just filtered.
	all, err := log.Recent(ctx, "go", "easy", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("recent since epoch: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected pruned set to hold one entry, got %+v", all)
	}
}

func TestRecentQuestionLogIsolatesBuckets(t *testing.T) {
	ctx := context.Background()
	log := NewRecentQuestionLog(newTestClient(t), 5*time.Hour)

	now := time.Now()
	if err := log.Add(ctx, "go", "easy", "go easy", now); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := log.Add(ctx, "javascript", "easy", "js easy", now); err != nil {
		t.Fatalf("add: %v", err)
	}

	recent, err := log.Recent(ctx, "javascript", "easy", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0] != "js easy" {
		t.Fatalf("expected only the javascript entry, got %+v", recent)
	}
}
