// Package guild caches the guild's member roster. The member set is the
// membership filter for every per-player sync: a character outside the set
// never enters the character cache.
package guild

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/johncmanuel/isabot/internal/bnet"
	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
	"github.com/johncmanuel/isabot/internal/store"
)

// RosterClient fetches the guild roster from the upstream API.
type RosterClient interface {
	GuildRoster(ctx context.Context, ts oauth2.TokenSource, realmSlug, guildSlug string) (*bnet.GuildRoster, error)
}

// Directory caches the set of member character ids for the guild.
type Directory struct {
	store  store.RecordStore
	client RosterClient
	creds  oauth2.TokenSource
	cfg    *config.GuildConfig
	logger *slog.Logger
}

// NewDirectory creates a guild directory backed by the record store.
func NewDirectory(s store.RecordStore, client RosterClient, creds oauth2.TokenSource, cfg *config.GuildConfig, logger *slog.Logger) *Directory {
	return &Directory{
		store:  s,
		client: client,
		creds:  creds,
		cfg:    cfg,
		logger: logger,
	}
}

// Refresh fetches the roster and unconditionally overwrites the cached
// member set. On upstream failure the previously cached set is left
// untouched: stale-but-available beats absent.
func (d *Directory) Refresh(ctx context.Context) (domain.GuildMemberSet, error) {
	// The guild lives on connected realms; the roster endpoint accepts
	// any one of them, so use the first.
	roster, err := d.client.GuildRoster(ctx, d.creds, d.cfg.Realms[0], d.cfg.Slug)
	if err != nil {
		return domain.GuildMemberSet{}, fmt.Errorf("fetching guild roster: %w", err)
	}

	ids := roster.MemberIDs()
	if len(ids) == 0 {
		return domain.GuildMemberSet{}, fmt.Errorf("%w: roster returned no members", domain.ErrUpstreamUnavailable)
	}

	set := domain.NewGuildMemberSet(ids)
	value, err := json.Marshal(set)
	if err != nil {
		return domain.GuildMemberSet{}, fmt.Errorf("encoding member set: %w", err)
	}
	if err := d.store.Set(ctx, store.GuildKey(d.cfg.Slug), value); err != nil {
		return domain.GuildMemberSet{}, fmt.Errorf("caching member set: %w", err)
	}

	d.logger.Info("refreshed guild member set", "guild", d.cfg.Slug, "members", set.Len())
	return set, nil
}

// Get returns the cached member set, refreshing synchronously on a miss so
// a cold cache does not have to wait for the weekly schedule.
func (d *Directory) Get(ctx context.Context) (domain.GuildMemberSet, error) {
	value, err := d.store.Get(ctx, store.GuildKey(d.cfg.Slug))
	if errors.Is(err, domain.ErrKeyNotFound) {
		d.logger.Info("guild member set not cached, fetching from api", "guild", d.cfg.Slug)
		return d.Refresh(ctx)
	}
	if err != nil {
		return domain.GuildMemberSet{}, fmt.Errorf("reading cached member set: %w", err)
	}

	var set domain.GuildMemberSet
	if err := json.Unmarshal(value, &set); err != nil {
		return domain.GuildMemberSet{}, fmt.Errorf("decoding member set: %w", err)
	}
	return set, nil
}
