// Package player orchestrates per-player synchronization: first-write-wins
// registration, throttled character refresh, and cached mount and
// battleground stats.
// The record store is the sole source of truth; nothing here survives a
// request in memory.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/johncmanuel/isabot/internal/bnet"
	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
	"github.com/johncmanuel/isabot/internal/store"
)

// ProfileClient is the slice of the Battle.net client the player sync uses.
type ProfileClient interface {
	ProfileSummary(ctx context.Context, ts oauth2.TokenSource) (*bnet.ProfileSummary, error)
	AccountMounts(ctx context.Context, ts oauth2.TokenSource) (int, error)
	CharacterMounts(ctx context.Context, ts oauth2.TokenSource, realmSlug, characterName string) (int, error)
	CharacterBattlegrounds(ctx context.Context, ts oauth2.TokenSource, realmSlug, characterName string) (won, lost int, err error)
}

// MemberDirectory provides the current guild member set.
type MemberDirectory interface {
	Get(ctx context.Context) (domain.GuildMemberSet, error)
}

// Sync coordinates a player's cached records.
type Sync struct {
	store         store.RecordStore
	client        ProfileClient
	directory     MemberDirectory
	realms        map[string]struct{}
	refreshWindow time.Duration
	logger        *slog.Logger
}

// NewSync creates a player sync service.
func NewSync(s store.RecordStore, client ProfileClient, directory MemberDirectory, guild *config.GuildConfig, refreshWindow time.Duration, logger *slog.Logger) *Sync {
	realms := make(map[string]struct{}, len(guild.Realms))
	for _, r := range guild.Realms {
		realms[r] = struct{}{}
	}
	return &Sync{
		store:         s,
		client:        client,
		directory:     directory,
		realms:        realms,
		refreshWindow: refreshWindow,
		logger:        logger,
	}
}

// Register inserts a player record with first-write-wins semantics.
// Concurrent logins race here; losing the race is not an error, the stored
// record is returned instead so callers see a single consistent identity.
func (s *Sync) Register(ctx context.Context, playerID, battleTag, accessToken string, expiresAt time.Time) (domain.PlayerRecord, error) {
	record := domain.PlayerRecord{
		SchemaVersion: domain.SchemaVersion,
		ID:            playerID,
		BattleTag:     domain.StripDiscriminator(battleTag),
		AccessToken:   accessToken,
		ExpiresAt:     expiresAt.Unix(),
	}

	value, err := json.Marshal(record)
	if err != nil {
		return domain.PlayerRecord{}, fmt.Errorf("encoding player record: %w", err)
	}

	ok, err := s.store.CompareAndSet(ctx, store.PlayerInfoKey(playerID), true, value)
	if err != nil {
		return domain.PlayerRecord{}, fmt.Errorf("inserting player record: %w", err)
	}
	if ok {
		s.logger.Info("registered new player", "player_id", playerID, "battle_tag", record.BattleTag)
		return record, nil
	}

	s.logger.Info("player already registered", "player_id", playerID)
	return s.Player(ctx, playerID)
}

// Player loads a player's record from the cache.
func (s *Sync) Player(ctx context.Context, playerID string) (domain.PlayerRecord, error) {
	value, err := s.store.Get(ctx, store.PlayerInfoKey(playerID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return domain.PlayerRecord{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.PlayerRecord{}, fmt.Errorf("reading player record: %w", err)
	}

	var record domain.PlayerRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return domain.PlayerRecord{}, fmt.Errorf("decoding player record: %w", err)
	}
	return record, nil
}

// Characters returns the cached character list for a player. An absent list
// is an empty list, not an error.
func (s *Sync) Characters(ctx context.Context, playerID string) ([]domain.CharacterRecord, error) {
	value, err := s.store.Get(ctx, store.PlayerCharactersKey(playerID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading character list: %w", err)
	}

	var list domain.CharacterList
	if err := json.Unmarshal(value, &list); err != nil {
		return nil, fmt.Errorf("decoding character list: %w", err)
	}
	return list.Characters, nil
}

// RefreshCharacters replaces the player's cached character list with the
// roster-eligible characters from the account profile summary. The refresh
// window throttles the expensive upstream fetch: inside the window the
// cached list is returned unchanged and no network call happens. On
// upstream failure the cache and the throttle timestamp stay untouched so
// the next cycle retries.
func (s *Sync) RefreshCharacters(ctx context.Context, playerID string, ts oauth2.TokenSource, now time.Time) ([]domain.CharacterRecord, error) {
	record, err := s.Player(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if record.NextCharacterRefresh > now.Unix() {
		s.logger.Info("character refresh throttled",
			"player_id", playerID,
			"retry_after_seconds", record.NextCharacterRefresh-now.Unix(),
		)
		return s.Characters(ctx, playerID)
	}

	members, err := s.directory.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading guild member set: %w", err)
	}

	summary, err := s.client.ProfileSummary(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("fetching profile summary: %w", err)
	}

	characters := s.filterGuildCharacters(summary, &members)

	list := domain.CharacterList{SchemaVersion: domain.SchemaVersion, Characters: characters}
	value, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encoding character list: %w", err)
	}
	if err := s.store.Set(ctx, store.PlayerCharactersKey(playerID), value); err != nil {
		return nil, fmt.Errorf("caching character list: %w", err)
	}

	record.NextCharacterRefresh = now.Add(s.refreshWindow).Unix()
	recordValue, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding player record: %w", err)
	}
	if err := s.store.Set(ctx, store.PlayerInfoKey(playerID), recordValue); err != nil {
		return nil, fmt.Errorf("updating refresh gate: %w", err)
	}

	s.logger.Info("refreshed character list", "player_id", playerID, "characters", len(characters))
	return characters, nil
}

// filterGuildCharacters keeps characters on the guild's home realms whose
// ids appear in the member set. The profile summary does not expose guild
// membership directly, so both checks are needed.
func (s *Sync) filterGuildCharacters(summary *bnet.ProfileSummary, members *domain.GuildMemberSet) []domain.CharacterRecord {
	var characters []domain.CharacterRecord
	for _, account := range summary.WoWAccounts {
		for _, c := range account.Characters {
			if _, ok := s.realms[c.Realm.Slug]; !ok {
				continue
			}
			if !members.Contains(c.ID) {
				continue
			}
			characters = append(characters, domain.CharacterRecord{
				Name: c.Name,
				ID:   c.ID,
				Realm: domain.Realm{
					Name: c.Realm.Name,
					Slug: c.Realm.Slug,
					ID:   c.Realm.ID,
				},
			})
		}
	}
	return characters
}

// Mounts returns the cached mount stat for a player.
func (s *Sync) Mounts(ctx context.Context, playerID string) (domain.MountStat, error) {
	value, err := s.store.Get(ctx, store.PlayerMountsKey(playerID))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.MountStat{}, domain.ErrKeyNotFound
		}
		return domain.MountStat{}, fmt.Errorf("reading mount stat: %w", err)
	}

	var stat domain.MountStat
	if err := json.Unmarshal(value, &stat); err != nil {
		return domain.MountStat{}, fmt.Errorf("decoding mount stat: %w", err)
	}
	return stat, nil
}

// RefreshMounts fills the mount cache for a player on first login. An
// existing stat is returned unchanged without a network call; only the
// weekly bulk job forces a refresh. On upstream failure the count defaults
// to zero (logged) so every known player renders a number on the board.
func (s *Sync) RefreshMounts(ctx context.Context, playerID string, ts oauth2.TokenSource) (domain.MountStat, error) {
	stat, err := s.Mounts(ctx, playerID)
	if err == nil {
		s.logger.Info("mount stat already cached", "player_id", playerID, "mounts", stat.TotalMounts)
		return stat, nil
	}
	if !errors.Is(err, domain.ErrKeyNotFound) {
		return domain.MountStat{}, err
	}

	count, err := s.client.AccountMounts(ctx, ts)
	if err != nil {
		s.logger.Error("failed to fetch account mounts, caching zero", "player_id", playerID, "error", err)
		count = 0
	}

	return s.OverwriteMounts(ctx, playerID, count)
}

// OverwriteMounts unconditionally replaces a player's cached mount stat.
func (s *Sync) OverwriteMounts(ctx context.Context, playerID string, count int) (domain.MountStat, error) {
	stat := domain.MountStat{SchemaVersion: domain.SchemaVersion, TotalMounts: count}
	value, err := json.Marshal(stat)
	if err != nil {
		return domain.MountStat{}, fmt.Errorf("encoding mount stat: %w", err)
	}
	if err := s.store.Set(ctx, store.PlayerMountsKey(playerID), value); err != nil {
		return domain.MountStat{}, fmt.Errorf("caching mount stat: %w", err)
	}
	return stat, nil
}

// Bg returns the cached battleground stat for a player.
func (s *Sync) Bg(ctx context.Context, playerID string) (domain.BgStat, error) {
	value, err := s.store.Get(ctx, store.PlayerBgKey(playerID))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.BgStat{}, domain.ErrKeyNotFound
		}
		return domain.BgStat{}, fmt.Errorf("reading battleground stat: %w", err)
	}

	var stat domain.BgStat
	if err := json.Unmarshal(value, &stat); err != nil {
		return domain.BgStat{}, fmt.Errorf("decoding battleground stat: %w", err)
	}
	return stat, nil
}

// OverwriteBg unconditionally replaces a player's cached battleground stat.
func (s *Sync) OverwriteBg(ctx context.Context, playerID string, won, lost int) (domain.BgStat, error) {
	stat := domain.BgStat{SchemaVersion: domain.SchemaVersion, TotalWon: won, TotalLost: lost}
	value, err := json.Marshal(stat)
	if err != nil {
		return domain.BgStat{}, fmt.Errorf("encoding battleground stat: %w", err)
	}
	if err := s.store.Set(ctx, store.PlayerBgKey(playerID), value); err != nil {
		return domain.BgStat{}, fmt.Errorf("caching battleground stat: %w", err)
	}
	return stat, nil
}

// RefreshAllStats is the weekly bulk job: for every player with at least
// one cached character it visits each character once with the
// client-credentials token, takes the mount-collection maximum and sums
// battleground wins and losses across characters, then overwrites both
// cached stats. This is the one path that bypasses the cached-stat
// short-circuit in RefreshMounts. A failure for one player is logged and
// leaves that player's previous stats untouched; the loop always continues.
func (s *Sync) RefreshAllStats(ctx context.Context, ts oauth2.TokenSource) error {
	records, err := s.store.Scan(ctx, store.PlayerCharactersPrefix)
	if err != nil {
		return fmt.Errorf("scanning character lists: %w", err)
	}

	refreshed, failed := 0, 0
	for _, kv := range records {
		playerID := store.PlayerIDFromKey(kv.Key, store.PlayerCharactersPrefix)

		var list domain.CharacterList
		if err := json.Unmarshal(kv.Value, &list); err != nil {
			s.logger.Error("skipping undecodable character list", "player_id", playerID, "error", err)
			failed++
			continue
		}
		if len(list.Characters) == 0 {
			continue
		}

		stats, err := s.collectCharacterStats(ctx, ts, list.Characters)
		if err != nil {
			s.logger.Error("failed to refresh stats, keeping previous values", "player_id", playerID, "error", err)
			failed++
			continue
		}

		if _, err := s.OverwriteMounts(ctx, playerID, stats.maxMounts); err != nil {
			s.logger.Error("failed to cache mount stat", "player_id", playerID, "error", err)
			failed++
			continue
		}
		if _, err := s.OverwriteBg(ctx, playerID, stats.bgWon, stats.bgLost); err != nil {
			s.logger.Error("failed to cache battleground stat", "player_id", playerID, "error", err)
			failed++
			continue
		}
		refreshed++
	}

	s.logger.Info("bulk stats refresh completed", "refreshed", refreshed, "failed", failed)
	return nil
}

// characterStats aggregates one player's characters: the largest mount
// collection, and battleground wins/losses summed across all of them.
type characterStats struct {
	maxMounts int
	bgWon     int
	bgLost    int
}

func (s *Sync) collectCharacterStats(ctx context.Context, ts oauth2.TokenSource, characters []domain.CharacterRecord) (characterStats, error) {
	var stats characterStats
	for _, c := range characters {
		count, err := s.client.CharacterMounts(ctx, ts, c.Realm.Slug, c.Name)
		if err != nil {
			return characterStats{}, fmt.Errorf("fetching mounts for %s-%s: %w", c.Name, c.Realm.Slug, err)
		}
		if count > stats.maxMounts {
			stats.maxMounts = count
		}

		won, lost, err := s.client.CharacterBattlegrounds(ctx, ts, c.Realm.Slug, c.Name)
		if err != nil {
			return characterStats{}, fmt.Errorf("fetching battlegrounds for %s-%s: %w", c.Name, c.Realm.Slug, err)
		}
		stats.bgWon += won
		stats.bgLost += lost
	}
	return stats, nil
}
