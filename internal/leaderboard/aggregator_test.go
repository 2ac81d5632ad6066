package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/johncmanuel/isabot/internal/domain"
	"github.com/johncmanuel/isabot/internal/store"
)

func testAggregator() (*Aggregator, *store.Memory) {
	s := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAggregator(s, logger), s
}

func seedPlayer(t *testing.T, s *store.Memory, playerID, battleTag string, mounts int) {
	t.Helper()
	ctx := context.Background()

	record := domain.PlayerRecord{SchemaVersion: domain.SchemaVersion, ID: playerID, BattleTag: battleTag}
	value, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("encode player: %v", err)
	}
	if err := s.Set(ctx, store.PlayerInfoKey(playerID), value); err != nil {
		t.Fatalf("seed player: %v", err)
	}

	if mounts < 0 {
		return // no cached stats for this player
	}
	stat := domain.MountStat{SchemaVersion: domain.SchemaVersion, TotalMounts: mounts}
	value, err = json.Marshal(stat)
	if err != nil {
		t.Fatalf("encode stat: %v", err)
	}
	if err := s.Set(ctx, store.PlayerMountsKey(playerID), value); err != nil {
		t.Fatalf("seed stat: %v", err)
	}
}

func seedBgStat(t *testing.T, s *store.Memory, playerID string, won, lost int) {
	t.Helper()
	stat := domain.BgStat{SchemaVersion: domain.SchemaVersion, TotalWon: won, TotalLost: lost}
	value, err := json.Marshal(stat)
	if err != nil {
		t.Fatalf("encode bg stat: %v", err)
	}
	if err := s.Set(context.Background(), store.PlayerBgKey(playerID), value); err != nil {
		t.Fatalf("seed bg stat: %v", err)
	}
}

func TestCreateEntrySnapshotsPlayersAndMounts(t *testing.T) {
	ctx := context.Background()
	agg, s := testAggregator()
	seedPlayer(t, s, "p1", "Isabelle", 12)
	seedPlayer(t, s, "p2", "Tom", 47)
	seedPlayer(t, s, "p3", "Blathers", -1)
	seedBgStat(t, s, "p2", 11, 8)

	entry, err := agg.CreateEntry(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.EntryID == "" || entry.CreatedAt == 0 {
		t.Fatalf("entry missing identity: %+v", entry)
	}
	if len(entry.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(entry.Players))
	}
	if entry.Mounts["p2"].TotalMounts != 47 {
		t.Fatalf("expected p2 47 mounts, got %d", entry.Mounts["p2"].TotalMounts)
	}
	if entry.BgWins["p2"].TotalWon != 11 || entry.BgWins["p2"].TotalLost != 8 {
		t.Fatalf("expected p2 11/8 battlegrounds, got %+v", entry.BgWins["p2"])
	}
	// A player with no cached stats still appears, at zero.
	if entry.Mounts["p3"].TotalMounts != 0 {
		t.Fatalf("expected p3 zero mounts, got %d", entry.Mounts["p3"].TotalMounts)
	}
	if entry.BgWins["p1"].TotalWon != 0 {
		t.Fatalf("expected p1 zero bg wins, got %d", entry.BgWins["p1"].TotalWon)
	}

	rows := entry.Rank()
	if len(rows) != 3 || rows[0].BattleTag != "Tom" || rows[0].Mounts != 47 || rows[0].BgWins != 11 {
		t.Fatalf("unexpected ranking: %+v", rows)
	}

	// The snapshot is persisted, not just returned.
	stored, err := agg.LatestEntry(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if stored.EntryID != entry.EntryID {
		t.Fatalf("persisted entry %s != created entry %s", stored.EntryID, entry.EntryID)
	}
}

func TestCreateEntryWithNoPlayersIsValid(t *testing.T) {
	ctx := context.Background()
	agg, _ := testAggregator()

	entry, err := agg.CreateEntry(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(entry.Players) != 0 || len(entry.Mounts) != 0 || len(entry.BgWins) != 0 {
		t.Fatalf("expected empty entry, got %+v", entry)
	}
	if rows := entry.Rank(); len(rows) != 0 {
		t.Fatalf("empty entry should rank to zero rows, got %v", rows)
	}
}

func TestEntriesAscendingAndLatestByCreationTime(t *testing.T) {
	ctx := context.Background()
	agg, _ := testAggregator()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * 7 * 24 * time.Hour)
		agg.now = func() time.Time { return stamp }
		entry, err := agg.CreateEntry(ctx)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, entry.EntryID)
	}

	entries, err := agg.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.EntryID != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], entry.EntryID)
		}
		if i > 0 && entries[i].CreatedAt <= entries[i-1].CreatedAt {
			t.Fatalf("entries not ascending at %d: %d <= %d", i, entries[i].CreatedAt, entries[i-1].CreatedAt)
		}
	}

	latest, err := agg.LatestEntry(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.EntryID != ids[2] {
		t.Fatalf("latest should be the newest entry, got %s", latest.EntryID)
	}
}

func TestLatestEntryEmptyBoard(t *testing.T) {
	agg, _ := testAggregator()

	_, err := agg.LatestEntry(context.Background())
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
