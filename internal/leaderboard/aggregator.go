// Package leaderboard assembles immutable ranked snapshots from the cached
// player and mount records and serves their retrieval. Entries are
// append-only; retrieval order comes from the stored creation timestamp,
// not the key.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/johncmanuel/isabot/internal/domain"
	"github.com/johncmanuel/isabot/internal/store"
)

// Aggregator builds and retrieves leaderboard entries.
type Aggregator struct {
	store  store.RecordStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates a leaderboard aggregator.
func NewAggregator(s store.RecordStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

// CreateEntry snapshots every cached player joined against their cached
// mount stat (absent means zero) into a new immutable entry and persists
// it. Zero cached players still yields a valid, renderable empty entry.
func (a *Aggregator) CreateEntry(ctx context.Context) (domain.LeaderboardEntry, error) {
	records, err := a.store.Scan(ctx, store.PlayerInfoPrefix)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("scanning player records: %w", err)
	}

	entry := domain.LeaderboardEntry{
		SchemaVersion: domain.SchemaVersion,
		EntryID:       uuid.NewString(),
		CreatedAt:     a.now().UnixMilli(),
		Players:       make(map[string]domain.EntryPlayer, len(records)),
		Mounts:        make(map[string]domain.MountStat, len(records)),
		BgWins:        make(map[string]domain.BgStat, len(records)),
	}

	for _, kv := range records {
		var player domain.PlayerRecord
		if err := json.Unmarshal(kv.Value, &player); err != nil {
			a.logger.Error("skipping undecodable player record", "key", kv.Key, "error", err)
			continue
		}

		entry.Players[player.ID] = domain.EntryPlayer{BattleTag: player.BattleTag, ID: player.ID}
		entry.Mounts[player.ID] = a.mountStat(ctx, player.ID)
		entry.BgWins[player.ID] = a.bgStat(ctx, player.ID)
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("encoding entry: %w", err)
	}
	if err := a.store.Set(ctx, store.LeaderboardKey(entry.EntryID), value); err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("persisting entry: %w", err)
	}

	a.logger.Info("created leaderboard entry", "entry_id", entry.EntryID, "players", len(entry.Players))
	return entry, nil
}

// mountStat reads a player's cached mount stat, defaulting to zero when
// absent so every known player renders a number.
func (a *Aggregator) mountStat(ctx context.Context, playerID string) domain.MountStat {
	value, err := a.store.Get(ctx, store.PlayerMountsKey(playerID))
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			a.logger.Error("failed to read mount stat, defaulting to zero", "player_id", playerID, "error", err)
		}
		return domain.MountStat{SchemaVersion: domain.SchemaVersion}
	}

	var stat domain.MountStat
	if err := json.Unmarshal(value, &stat); err != nil {
		a.logger.Error("undecodable mount stat, defaulting to zero", "player_id", playerID, "error", err)
		return domain.MountStat{SchemaVersion: domain.SchemaVersion}
	}
	return stat
}

// bgStat reads a player's cached battleground stat, defaulting to zero
// when absent.
func (a *Aggregator) bgStat(ctx context.Context, playerID string) domain.BgStat {
	value, err := a.store.Get(ctx, store.PlayerBgKey(playerID))
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			a.logger.Error("failed to read battleground stat, defaulting to zero", "player_id", playerID, "error", err)
		}
		return domain.BgStat{SchemaVersion: domain.SchemaVersion}
	}

	var stat domain.BgStat
	if err := json.Unmarshal(value, &stat); err != nil {
		a.logger.Error("undecodable battleground stat, defaulting to zero", "player_id", playerID, "error", err)
		return domain.BgStat{SchemaVersion: domain.SchemaVersion}
	}
	return stat
}

// Entries returns every persisted entry in ascending creation order.
// Unbounded; callers needing pagination slice externally.
func (a *Aggregator) Entries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	records, err := a.store.Scan(ctx, store.LeaderboardPrefix)
	if err != nil {
		return nil, fmt.Errorf("scanning entries: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(records))
	for _, kv := range records {
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			a.logger.Error("skipping undecodable entry", "key", kv.Key, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt != entries[j].CreatedAt {
			return entries[i].CreatedAt < entries[j].CreatedAt
		}
		return entries[i].EntryID < entries[j].EntryID
	})
	return entries, nil
}

// LatestEntry returns the entry with the greatest creation timestamp, or
// ErrEntryNotFound when no entries exist yet.
func (a *Aggregator) LatestEntry(ctx context.Context) (domain.LeaderboardEntry, error) {
	entries, err := a.Entries(ctx)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if len(entries) == 0 {
		return domain.LeaderboardEntry{}, domain.ErrEntryNotFound
	}
	return entries[len(entries)-1], nil
}
