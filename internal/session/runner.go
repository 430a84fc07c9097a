package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/violabg/dev-quiz-battle-sub000/internal/app"
	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// Engine is the slice of the game service a session runner needs.
type Engine interface {
	Snapshot(ctx context.Context, gameID string) (app.Snapshot, error)
	Subscribe(ctx context.Context, gameID string) (<-chan domain.Event, func(), error)
	EndQuestion(ctx context.Context, questionID string) error
}

// Runner drives one client's machine: it subscribes to the game's change
// feed, re-snapshots on every event, and runs the local countdown for the
// open question. The countdown and the remote "question ended" event are two
// independent triggers into the same idempotent EndQuestion path; whichever
// fires first wins and the other converges.
type Runner struct {
	engine  Engine
	machine *Machine
}

func NewRunner(engine Engine, machine *Machine) *Runner {
	return &Runner{engine: engine, machine: machine}
}

// Machine exposes the runner's state machine for guard checks.
func (r *Runner) Machine() *Machine {
	return r.machine
}

// Run blocks until the context is canceled or the session reaches a terminal
// phase. Every computed view is handed to out.
func (r *Runner) Run(ctx context.Context, gameID string, out func(View)) error {
	events, cancel, err := r.engine.Subscribe(ctx, gameID)
	if err != nil {
		return err
	}
	defer cancel()

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	refresh := func() (View, bool) {
		snap, err := r.engine.Snapshot(ctx, gameID)
		if err != nil {
			if errors.Is(err, domain.ErrGameNotFound) {
				out(r.machine.Close())
				return r.machine.View(), false
			}
			// Transient; the next notification re-derives from scratch.
			log.Printf("session snapshot failed: %v", err)
			return r.machine.View(), true
		}
		view := r.machine.Apply(snap)
		out(view)
		return view, true
	}

	arm := func(view View) {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if view.Phase == PhaseActive && view.Stage == StageQuestionActive {
			wait := time.Until(view.Deadline)
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
		}
	}

	view, ok := refresh()
	if !ok {
		return nil
	}
	arm(view)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-events:
			if !open {
				return nil
			}
			if ev.Type == domain.EventDelete && ev.Entity == domain.EntityGame {
				out(r.machine.Close())
				return nil
			}
			view, ok := refresh()
			if !ok {
				return nil
			}
			arm(view)
		case <-timer.C:
			if q := r.machine.View().Question; q != nil {
				if err := r.engine.EndQuestion(ctx, q.ID); err != nil && !errors.Is(err, domain.ErrQuestionNotFound) {
					log.Printf("countdown end question failed: %v", err)
				}
			}
			view, ok := refresh()
			if !ok {
				return nil
			}
			arm(view)
		}
	}
}
