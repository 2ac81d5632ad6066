package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
	"github.com/johncmanuel/isabot/internal/notify"
)

type fakeDirectory struct {
	err   error
	calls int
}

func (f *fakeDirectory) Refresh(_ context.Context) (domain.GuildMemberSet, error) {
	f.calls++
	if f.err != nil {
		return domain.GuildMemberSet{}, f.err
	}
	return domain.NewGuildMemberSet([]int64{101}), nil
}

type fakePlayers struct {
	err   error
	calls int
}

func (f *fakePlayers) RefreshAllStats(_ context.Context, _ oauth2.TokenSource) error {
	f.calls++
	return f.err
}

type fakeAggregator struct {
	err   error
	calls int
}

func (f *fakeAggregator) CreateEntry(_ context.Context) (domain.LeaderboardEntry, error) {
	f.calls++
	if f.err != nil {
		return domain.LeaderboardEntry{}, f.err
	}
	return domain.LeaderboardEntry{
		SchemaVersion: domain.SchemaVersion,
		EntryID:       uuid.NewString(),
		CreatedAt:     time.Now().UnixMilli(),
		Players:       map[string]domain.EntryPlayer{},
		Mounts:        map[string]domain.MountStat{},
	}, nil
}

type fakeNotifier struct {
	err       error
	entries   []domain.LeaderboardEntry
	delivered chan struct{}
}

func (f *fakeNotifier) PublishEntry(_ context.Context, entry domain.LeaderboardEntry) error {
	f.entries = append(f.entries, entry)
	if f.delivered != nil {
		f.delivered <- struct{}{}
	}
	return f.err
}

func newTestPipeline(directory *fakeDirectory, players *fakePlayers, aggregator *fakeAggregator, notifiers ...notify.Notifier) *Pipeline {
	cfg := &config.SyncConfig{Enabled: true, Interval: 168 * time.Hour, CharacterRefreshWindow: time.Hour}
	creds := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "creds"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(directory, players, aggregator, notifiers, creds, cfg, logger)
}

func TestRunOnceExecutesAllStages(t *testing.T) {
	directory := &fakeDirectory{}
	players := &fakePlayers{}
	aggregator := &fakeAggregator{}
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(directory, players, aggregator, notifier)

	if err := pipeline.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if directory.calls != 1 || players.calls != 1 || aggregator.calls != 1 {
		t.Fatalf("expected one call per stage, got guild=%d players=%d entry=%d",
			directory.calls, players.calls, aggregator.calls)
	}
	if len(notifier.entries) != 1 {
		t.Fatalf("expected 1 delivered entry, got %d", len(notifier.entries))
	}
}

func TestRunOnceContinuesPastEarlyStageFailures(t *testing.T) {
	directory := &fakeDirectory{err: errors.New("roster down")}
	players := &fakePlayers{err: errors.New("mounts down")}
	aggregator := &fakeAggregator{}
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(directory, players, aggregator, notifier)

	// Stages one and two failing must not block the snapshot.
	if err := pipeline.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if aggregator.calls != 1 {
		t.Fatalf("snapshot stage skipped after earlier failures")
	}
	if len(notifier.entries) != 1 {
		t.Fatalf("expected delivery despite earlier failures, got %d", len(notifier.entries))
	}
}

func TestRunOnceSurfacesSnapshotFailure(t *testing.T) {
	aggregator := &fakeAggregator{err: errors.New("store down")}
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(&fakeDirectory{}, &fakePlayers{}, aggregator, notifier)

	if err := pipeline.RunOnce(context.Background()); err == nil {
		t.Fatal("expected snapshot failure to surface")
	}
	if len(notifier.entries) != 0 {
		t.Fatalf("nothing should be delivered without an entry, got %d", len(notifier.entries))
	}
}

func TestPublishDeliveryFailureDoesNotRetractEntry(t *testing.T) {
	aggregator := &fakeAggregator{}
	failing := &fakeNotifier{err: errors.New("webhook 500")}
	healthy := &fakeNotifier{}
	pipeline := newTestPipeline(&fakeDirectory{}, &fakePlayers{}, aggregator, failing, healthy)

	err := pipeline.Publish(context.Background())
	if err == nil {
		t.Fatal("expected joined delivery error")
	}
	// The entry was created and every notifier was attempted.
	if aggregator.calls != 1 {
		t.Fatalf("expected 1 entry created, got %d", aggregator.calls)
	}
	if len(failing.entries) != 1 || len(healthy.entries) != 1 {
		t.Fatalf("one notifier failing must not skip the others: failing=%d healthy=%d",
			len(failing.entries), len(healthy.entries))
	}
}

func TestStartRunsCycleImmediatelyWhenConfigured(t *testing.T) {
	notifier := &fakeNotifier{delivered: make(chan struct{}, 1)}
	pipeline := newTestPipeline(&fakeDirectory{}, &fakePlayers{}, &fakeAggregator{}, notifier)
	pipeline.cfg.RunOnStart = true

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pipeline.Stop()

	// With a 168h interval the ticker cannot be the source of this
	// delivery; it must come from the startup cycle.
	select {
	case <-notifier.delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a refresh cycle immediately after start")
	}
}

func TestStartWaitsForFirstTickByDefault(t *testing.T) {
	notifier := &fakeNotifier{}
	aggregator := &fakeAggregator{}
	pipeline := newTestPipeline(&fakeDirectory{}, &fakePlayers{}, aggregator, notifier)

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := pipeline.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if aggregator.calls != 0 {
		t.Fatalf("no cycle should run before the first tick, got %d", aggregator.calls)
	}
}

func TestStartStop(t *testing.T) {
	pipeline := newTestPipeline(&fakeDirectory{}, &fakePlayers{}, &fakeAggregator{}, &fakeNotifier{})

	if pipeline.IsRunning() {
		t.Fatal("pipeline should not be running before Start")
	}
	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !pipeline.IsRunning() {
		t.Fatal("pipeline should report running after Start")
	}
	if err := pipeline.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if pipeline.IsRunning() {
		t.Fatal("pipeline should not report running after Stop")
	}
}
