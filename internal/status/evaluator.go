package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/repository"
	"golang.org/x/sync/singleflight"
)

// Runner is satisfied by *Evaluator; the scheduler and listing services depend on it.
type Runner interface {
	EvaluateAndPersist(ctx context.Context, now time.Time) (*Report, error)
}

// Transition is one persisted status change.
type Transition struct {
	TournamentID string        `json:"tournamentId"`
	From         domain.Status `json:"from"`
	To           domain.Status `json:"to"`
}

// Failure is a tournament the run could not evaluate or write.
type Failure struct {
	TournamentID string `json:"tournamentId"`
	Reason       string `json:"reason"`
	Err          error  `json:"-"`
}

// Report summarizes one evaluation pass.
type Report struct {
	EvaluatedAt time.Time    `json:"evaluatedAt"`
	Scanned     int          `json:"scanned"`
	Updated     int          `json:"updated"`
	Transitions []Transition `json:"transitions"`
	Failures    []Failure    `json:"failures"`
}

func (r *Report) fail(id string, err error) {
	r.Failures = append(r.Failures, Failure{TournamentID: id, Reason: err.Error(), Err: err})
}

// Evaluator moves stored statuses forward to match the clock.
type Evaluator struct {
	tournaments repository.TournamentRepository
	outbox      repository.OutboxRepository
	schedule    Schedule
	logger      *slog.Logger

	group singleflight.Group
}

// NewEvaluator creates an Evaluator. outbox may be nil.
func NewEvaluator(
	tournaments repository.TournamentRepository,
	outbox repository.OutboxRepository,
	schedule Schedule,
	logger *slog.Logger,
) *Evaluator {
	return &Evaluator{
		tournaments: tournaments,
		outbox:      outbox,
		schedule:    schedule,
		logger:      logger,
	}
}

// Schedule returns the schedule the evaluator applies.
func (e *Evaluator) Schedule() Schedule { return e.schedule }

// EvaluateAndPersist scans every tournament and writes the status of those
// behind their target. Per-record failures land in the report; only a failed
// collection read returns an error. Concurrent calls share one pass, which
// runs detached from any single caller's cancellation; a caller whose ctx ends
// stops waiting without cutting the pass short for the others.
func (e *Evaluator) EvaluateAndPersist(ctx context.Context, now time.Time) (*Report, error) {
	ch := e.group.DoChan("evaluate", func() (interface{}, error) {
		return e.run(context.WithoutCancel(ctx), now)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Report), nil
	}
}

func (e *Evaluator) run(ctx context.Context, now time.Time) (*Report, error) {
	list, decodeFailures, err := e.tournaments.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("list tournaments", err)
	}

	report := &Report{
		EvaluatedAt: now,
		Scanned:     len(list) + len(decodeFailures),
		Transitions: []Transition{},
		Failures:    []Failure{},
	}
	for _, f := range decodeFailures {
		report.fail(f.ID, f.Err)
		e.logger.Warn("skipping undecodable tournament", "tournament_id", f.ID, "error", f.Err)
	}

	for i := range list {
		t := &list[i]
		from := t.Status
		to, changed, err := e.advance(ctx, t, now)
		if err != nil {
			report.fail(t.ID, err)
			e.logger.Error("status write failed", "tournament_id", t.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}
		report.Updated++
		report.Transitions = append(report.Transitions, Transition{TournamentID: t.ID, From: from, To: to})
		e.recordTransition(ctx, t.ID, from, to, now)
	}

	if report.Updated > 0 || len(report.Failures) > 0 {
		e.logger.Info("tournament statuses evaluated",
			"scanned", report.Scanned,
			"updated", report.Updated,
			"failed", len(report.Failures),
		)
	}
	return report, nil
}

// advance writes the target status if it ranks above the stored one. A
// version conflict (a join or admin edit landed in between) is retried once
// against a fresh read.
func (e *Evaluator) advance(ctx context.Context, t *domain.Tournament, now time.Time) (domain.Status, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		target := e.schedule.Target(t, now)
		if t.Status.Rank() >= target.Rank() {
			return t.Status, false, nil
		}

		err := e.tournaments.UpdateStatus(ctx, t, target)
		if err == nil {
			return target, true, nil
		}
		if !errors.Is(err, docstore.ErrVersionConflict) {
			return "", false, err
		}

		fresh, err := e.tournaments.FindByID(ctx, t.ID)
		if err != nil {
			return "", false, err
		}
		*t = *fresh
	}
	return "", false, fmt.Errorf("tournament %s: %w", t.ID, docstore.ErrVersionConflict)
}

func (e *Evaluator) recordTransition(ctx context.Context, id string, from, to domain.Status, now time.Time) {
	if e.outbox == nil {
		return
	}
	if err := e.outbox.Insert(ctx, domain.NewStatusChangedEvent(id, from, to, now)); err != nil {
		e.logger.Warn("failed to record status change event", "tournament_id", id, "error", err)
	}
}
