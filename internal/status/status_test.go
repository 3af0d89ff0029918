package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var matchDay = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo repository.TournamentRepository, id, tod string, status domain.Status) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Tournament{
		ID:              id,
		GameName:        "Miramar " + id,
		TournamentDate:  matchDay,
		TournamentTime:  tod,
		MaxParticipants: 10,
		Status:          status,
	}))
}

func statusOf(t *testing.T, repo repository.TournamentRepository, id string) domain.Status {
	t.Helper()
	tr, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return tr.Status
}

// --- Schedule Tests ---

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want TimeOfDay
		ok   bool
	}{
		{"18:00", TimeOfDay{18, 0, 0}, true},
		{"9:30", TimeOfDay{9, 30, 0}, true},
		{"18:00:30", TimeOfDay{18, 0, 30}, true},
		{"6:30 PM", TimeOfDay{18, 30, 0}, true},
		{"6:30pm", TimeOfDay{18, 30, 0}, true},
		{"  6:30   pm ", TimeOfDay{18, 30, 0}, true},
		{"6PM", TimeOfDay{18, 0, 0}, true},
		{"12 am", TimeOfDay{0, 0, 0}, true},
		{"18.45", TimeOfDay{18, 45, 0}, true},
		{"", TimeOfDay{}, false},
		{"evening", TimeOfDay{}, false},
		{"25:00", TimeOfDay{}, false},
		{"18:00 IST", TimeOfDay{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimeOfDay(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleTarget(t *testing.T) {
	s := NewSchedule(time.UTC, 2*time.Hour)
	tr := &domain.Tournament{TournamentDate: matchDay, TournamentTime: "18:00"}
	start := matchDay.Add(18 * time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want domain.Status
	}{
		{"a minute before", start.Add(-time.Minute), domain.StatusUpcoming},
		{"at start", start, domain.StatusLive},
		{"one hour in", start.Add(time.Hour), domain.StatusLive},
		{"window end", start.Add(2 * time.Hour), domain.StatusCompleted},
		{"three hours in", start.Add(3 * time.Hour), domain.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Target(tr, tt.now))
		})
	}
}

func TestScheduleTarget_UnparseableTimeFallback(t *testing.T) {
	s := NewSchedule(time.UTC, 2*time.Hour)
	tr := &domain.Tournament{TournamentDate: matchDay, TournamentTime: "after lunch"}

	assert.Equal(t, domain.StatusUpcoming, s.Target(tr, matchDay.Add(18*time.Hour)), "never goes live")
	assert.Equal(t, domain.StatusUpcoming, s.Target(tr, matchDay.Add(25*time.Hour)))
	assert.Equal(t, domain.StatusCompleted, s.Target(tr, matchDay.Add(26*time.Hour)))
}

func TestScheduleStart_UsesLocationCalendarDate(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	s := NewSchedule(kolkata, 0)
	assert.Equal(t, DefaultMatchWindow, s.Window)

	// 20:00 UTC on Apr 30 is already May 1 in IST.
	tr := &domain.Tournament{
		TournamentDate: time.Date(2026, 4, 30, 20, 0, 0, 0, time.UTC),
		TournamentTime: "9:00 PM",
	}
	start, ok := s.Start(tr)
	require.True(t, ok)
	assert.True(t, time.Date(2026, 5, 1, 21, 0, 0, 0, kolkata).Equal(start), "got %s", start)
}

// --- Evaluator Tests ---

func TestEvaluateAndPersist_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := repository.NewTournamentRepository(store)
	outbox := repository.NewOutboxRepository(store)
	seed(t, repo, "t1", "18:00", domain.StatusUpcoming)

	ev := NewEvaluator(repo, outbox, NewSchedule(time.UTC, 2*time.Hour), testLogger())
	start := matchDay.Add(18 * time.Hour)

	r, err := ev.EvaluateAndPersist(ctx, start.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Updated)
	assert.Equal(t, domain.StatusUpcoming, statusOf(t, repo, "t1"))

	r, err = ev.EvaluateAndPersist(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, domain.StatusLive, statusOf(t, repo, "t1"))

	r, err = ev.EvaluateAndPersist(ctx, start.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, []Transition{{TournamentID: "t1", From: domain.StatusLive, To: domain.StatusCompleted}}, r.Transitions)
	assert.Equal(t, domain.StatusCompleted, statusOf(t, repo, "t1"))

	events, err := outbox.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStatusChanged, events[0].EventType)
}

func TestEvaluateAndPersist_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := repository.NewTournamentRepository(store)
	seed(t, repo, "t1", "18:00", domain.StatusUpcoming)
	ev := NewEvaluator(repo, nil, NewSchedule(time.UTC, 0), testLogger())
	now := matchDay.Add(19 * time.Hour)

	first, err := ev.EvaluateAndPersist(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)
	doc, err := store.GetOne(ctx, docstore.CollectionTournaments, "t1")
	require.NoError(t, err)

	second, err := ev.EvaluateAndPersist(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated)
	again, err := store.GetOne(ctx, docstore.CollectionTournaments, "t1")
	require.NoError(t, err)
	assert.Equal(t, doc.Version, again.Version, "second pass performs no writes")
}

func TestEvaluateAndPersist_NeverRegresses(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTournamentRepository(docstore.NewMemoryStore())
	seed(t, repo, "done", "18:00", domain.StatusCompleted)
	seed(t, repo, "live", "18:00", domain.StatusLive)
	ev := NewEvaluator(repo, nil, NewSchedule(time.UTC, 0), testLogger())

	// Clock moved backwards to well before the start.
	r, err := ev.EvaluateAndPersist(ctx, matchDay)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Updated)
	assert.Equal(t, domain.StatusCompleted, statusOf(t, repo, "done"))
	assert.Equal(t, domain.StatusLive, statusOf(t, repo, "live"))
}

func TestEvaluateAndPersist_UpcomingToCompletedDirectly(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTournamentRepository(docstore.NewMemoryStore())
	seed(t, repo, "t1", "18:00", domain.StatusUpcoming)
	ev := NewEvaluator(repo, nil, NewSchedule(time.UTC, 0), testLogger())

	_, err := ev.EvaluateAndPersist(ctx, matchDay.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, statusOf(t, repo, "t1"))
}

// flakyRepo fails status writes for selected ids.
type flakyRepo struct {
	repository.TournamentRepository
	failIDs map[string]bool
	listErr error
}

func (r *flakyRepo) ListAll(ctx context.Context) ([]domain.Tournament, []repository.DecodeFailure, error) {
	if r.listErr != nil {
		return nil, nil, r.listErr
	}
	return r.TournamentRepository.ListAll(ctx)
}

func (r *flakyRepo) UpdateStatus(ctx context.Context, t *domain.Tournament, s domain.Status) error {
	if r.failIDs[t.ID] {
		return errors.New("write timeout")
	}
	return r.TournamentRepository.UpdateStatus(ctx, t, s)
}

func TestEvaluateAndPersist_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	base := repository.NewTournamentRepository(store)
	seed(t, base, "a", "18:00", domain.StatusUpcoming)
	seed(t, base, "b", "18:00", domain.StatusUpcoming)
	seed(t, base, "c", "18:00", domain.StatusUpcoming)
	require.NoError(t, store.Create(ctx, docstore.CollectionTournaments, "corrupt",
		map[string]interface{}{"tournamentDate": 42}))

	repo := &flakyRepo{TournamentRepository: base, failIDs: map[string]bool{"b": true}}
	ev := NewEvaluator(repo, nil, NewSchedule(time.UTC, 0), testLogger())

	r, err := ev.EvaluateAndPersist(ctx, matchDay.Add(19*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, r.Scanned)
	assert.Equal(t, 2, r.Updated)
	require.Len(t, r.Failures, 2)

	failed := map[string]bool{}
	for _, f := range r.Failures {
		failed[f.TournamentID] = true
	}
	assert.True(t, failed["b"])
	assert.True(t, failed["corrupt"])

	assert.Equal(t, domain.StatusLive, statusOf(t, base, "a"))
	assert.Equal(t, domain.StatusUpcoming, statusOf(t, base, "b"))
	assert.Equal(t, domain.StatusLive, statusOf(t, base, "c"))
}

func TestEvaluateAndPersist_ListFailureAborts(t *testing.T) {
	repo := &flakyRepo{
		TournamentRepository: repository.NewTournamentRepository(docstore.NewMemoryStore()),
		listErr:              errors.New("connection refused"),
	}
	ev := NewEvaluator(repo, nil, NewSchedule(time.UTC, 0), testLogger())

	_, err := ev.EvaluateAndPersist(context.Background(), matchDay)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeStoreUnavailable))
}

// gatedRepo holds ListAll until released and fails it if the caller's
// context ended meanwhile.
type gatedRepo struct {
	repository.TournamentRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedRepo) ListAll(ctx context.Context) ([]domain.Tournament, []repository.DecodeFailure, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return r.TournamentRepository.ListAll(ctx)
}

func TestEvaluateAndPersist_CancelledCallerDoesNotAbortSharedPass(t *testing.T) {
	base := repository.NewTournamentRepository(docstore.NewMemoryStore())
	seed(t, base, "t1", "18:00", domain.StatusUpcoming)
	repo := &gatedRepo{TournamentRepository: base, entered: make(chan struct{}), release: make(chan struct{})}
	ev := NewEvaluator(repo, nil, NewSchedule(time.UTC, 0), testLogger())
	now := matchDay.Add(19 * time.Hour)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := ev.EvaluateAndPersist(ctxA, now)
		errA <- err
	}()
	<-repo.entered

	type result struct {
		report *Report
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		r, err := ev.EvaluateAndPersist(context.Background(), now)
		resB <- result{r, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(repo.release)
	b := <-resB
	require.NoError(t, b.err)
	require.NotNil(t, b.report)
	assert.Equal(t, domain.StatusLive, statusOf(t, base, "t1"))
}

// --- Scheduler Tests ---

type countingRunner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingRunner) EvaluateAndPersist(_ context.Context, now time.Time) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &Report{EvaluatedAt: now}, nil
}

func (c *countingRunner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, clockwork.NewRealClock(), testLogger())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start is rejected")

	assert.Eventually(t, func() bool { return runner.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stop is idempotent")

	n := runner.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, runner.count())
}

func TestScheduler_CancelledContextSkipsRuns(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Equal(t, 0, runner.count())
}
