package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/generate"
	"github.com/violabg/dev-quiz-battle-sub000/internal/infra/memory"
	"github.com/violabg/dev-quiz-battle-sub000/internal/session"
)

func newRunnerFixture(t *testing.T) (*app.GameService, string) {
	t.Helper()
	ctx := context.Background()
	svc := app.NewGameService(
		memory.NewGameStore(),
		memory.NewLanguageLeaderboard(),
		memory.NewRecentQuestionLog(),
		generate.NewStaticGenerator(map[string]generate.Payload{
			"go:easy": {
				QuestionText:       "What is the zero value of a slice?",
				Options:            []string{"empty", "nil"},
				CorrectAnswerIndex: 1,
			},
		}),
	)
	game, err := svc.CreateGame(ctx, "alice", 2, 1)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if _, err := svc.JoinGame(ctx, game.Code, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := svc.StartGame(ctx, game.ID, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	return svc, game.ID
}

// collector gathers views pushed by a runner.
type collector struct {
	mu    sync.Mutex
	views []session.View
}

func (c *collector) push(v session.View) {
	c.mu.Lock()
	c.views = append(c.views, v)
	c.mu.Unlock()
}

func (c *collector) wait(t *testing.T, timeout time.Duration, pred func(session.View) bool) session.View {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, v := range c.views {
			if pred(v) {
				c.mu.Unlock()
				return v
			}
		}
		c.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no view matched within %v", timeout)
	return session.View{}
}

func TestRunnerCountdownEndsQuestion(t *testing.T) {
	svc, gameID := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &collector{}
	runner := session.NewRunner(svc, session.NewMachine("bob"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runner.Run(ctx, gameID, c.push)
	}()

	// The game has a one-second limit; the runner's local countdown must
	// close the question without any answer arriving.
	if _, err := svc.CreateQuestion(ctx, gameID, "alice", "go", "easy"); err != nil {
		t.Fatalf("create question: %v", err)
	}

	c.wait(t, 5*time.Second, func(v session.View) bool {
		return v.Stage == session.StageShowingResults && v.Question != nil && v.Question.EndedAt != nil
	})

	cancel()
	<-done
}

func TestRunnerObservesGameDeletion(t *testing.T) {
	svc, gameID := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &collector{}
	runner := session.NewRunner(svc, session.NewMachine("bob"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runner.Run(ctx, gameID, c.push)
	}()

	c.wait(t, 2*time.Second, func(v session.View) bool { return v.Phase == session.PhaseActive })

	// The host abandons the game; deletion is the terminal signal.
	if err := svc.LeaveGame(ctx, gameID, "alice"); err != nil {
		t.Fatalf("host leave: %v", err)
	}

	c.wait(t, 2*time.Second, func(v session.View) bool { return v.Phase == session.PhaseClosed })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner must stop after the game is deleted")
	}
}
