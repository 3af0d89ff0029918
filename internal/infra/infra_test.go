package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/battlegrounds/tournaments/internal/docstore"
	"github.com/battlegrounds/tournaments/internal/domain"
	"github.com/battlegrounds/tournaments/internal/guard"
	"github.com/battlegrounds/tournaments/internal/repository"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, time.Minute, cfg.StatusEvalInterval)
	assert.Equal(t, 2*time.Hour, cfg.MatchDuration)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 5, cfg.JoinRateLimit)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "dynamodb")
	t.Setenv("MATCH_DURATION", "90m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SCHEDULE_TIMEZONE", "Asia/Kolkata")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverDynamo, cfg.StoreDriver)
	assert.Equal(t, 90*time.Minute, cfg.MatchDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:        DriverMemory,
			JWTSecret:          "0123456789abcdef0123456789abcdef",
			StatusEvalInterval: time.Minute,
			MatchDuration:      2 * time.Hour,
			OutboxPollInterval: time.Second,
			OutboxBatchSize:    10,
			ScheduleTimezone:   "UTC",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"default secret", func(c *Config) { c.JWTSecret = insecureJWTSecret }, "insecure default"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "too short"},
		{"insecure allowed", func(c *Config) { c.JWTSecret = "short"; c.AllowInsecureDefaults = true }, ""},
		{"bad driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"zero interval", func(c *Config) { c.StatusEvalInterval = 0 }, "STATUS_EVAL_INTERVAL"},
		{"bad timezone", func(c *Config) { c.ScheduleTimezone = "Mars/Olympus" }, "SCHEDULE_TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	c := &Config{PGUser: "u", PGPassword: "p", PGHost: "db", PGPort: 5432, PGDatabase: "tournaments"}
	assert.Equal(t, "postgres://u:p@db:5432/tournaments?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}

func TestOpenStore_Memory(t *testing.T) {
	opened, err := OpenStore(context.Background(), &Config{StoreDriver: DriverMemory}, noopLogger())
	require.NoError(t, err)
	defer opened.Close()
	assert.IsType(t, &docstore.MemoryStore{}, opened.Store)
	assert.Nil(t, opened.Health)
}

type published struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	sent   []published
	failAt int
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	if f.failAt > 0 && len(f.sent)+1 == f.failAt {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, published{topic: topic, key: string(key), value: value})
	return nil
}

func seedOutbox(t *testing.T, repo repository.OutboxRepository, base time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e := domain.NewStatusChangedEvent("t1", domain.StatusUpcoming, domain.StatusLive, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Insert(context.Background(), e))
	}
}

func TestOutboxRelay_PublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := repository.NewOutboxRepository(docstore.NewMemoryStore())
	seedOutbox(t, repo, base, 3)

	pub := &fakePublisher{}
	relay := NewOutboxRelay(repo, pub, nil, clockwork.NewFakeClockAt(base.Add(time.Hour)), noopLogger(), time.Second, 2)

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "tournaments.tournament.status.changed", pub.sent[0].topic)
	assert.Equal(t, "t1", pub.sent[0].key)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.sent[0].value, &msg))
	assert.Equal(t, "tournament", msg["aggregateType"])

	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxRelay_FailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := repository.NewOutboxRepository(docstore.NewMemoryStore())
	seedOutbox(t, repo, base, 3)

	pub := &fakePublisher{failAt: 2}
	relay := NewOutboxRelay(repo, pub, nil, clockwork.NewFakeClockAt(base), noopLogger(), time.Second, 10)

	n, err := relay.RelayOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	left, err := repo.FetchUnpublished(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, left, 2, "the failed event and everything after it stay queued")
}

func TestOutboxRelay_BreakerHoldsOffFailingBroker(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(base)
	repo := repository.NewOutboxRepository(docstore.NewMemoryStore())
	seedOutbox(t, repo, base, 2)

	pub := &fakePublisher{failAt: 1}
	breaker := guard.NewCircuitBreaker(1, time.Minute, clock)
	relay := NewOutboxRelay(repo, pub, breaker, clock, noopLogger(), time.Second, 10)

	_, err := relay.RelayOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, guard.CircuitOpen, breaker.State("tournaments.tournament.status.changed"))

	pub.failAt = 0
	_, err = relay.RelayOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Empty(t, pub.sent)

	clock.Advance(2 * time.Minute)
	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
