// Package bnet is the Battle.net API client. Every call authenticates with
// an oauth2.TokenSource: a static source carrying a player's token from the
// authorization-code flow, or the shared client-credentials source for
// roster reads and bulk jobs. Requests pass a rate limiter so scheduled
// refreshes cannot hammer the upstream API.
package bnet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
)

// Client calls the Battle.net API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	oauthURL   string
	region     string
	locale     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Battle.net API client.
func NewClient(cfg *config.BattleNetConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		apiURL:     strings.TrimSuffix(cfg.APIURL, "/"),
		oauthURL:   strings.TrimSuffix(cfg.OAuthURL, "/"),
		region:     cfg.Region,
		locale:     cfg.Locale,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst),
		logger:     logger,
	}
}

// namespace builds the Battlenet-Namespace header value. Profile data is
// the only namespace this service reads.
func (c *Client) namespace(kind string) string {
	return fmt.Sprintf("%s-%s", kind, c.region)
}

func (c *Client) get(ctx context.Context, ts oauth2.TokenSource, baseURL, path, namespace string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	token, err := ts.Token()
	if err != nil {
		return fmt.Errorf("fetching bearer token: %w", err)
	}

	u := baseURL + path
	if c.locale != "" {
		u += "?" + url.Values{"locale": {c.locale}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	token.SetAuthHeader(req)
	if namespace != "" {
		req.Header.Set("Battlenet-Namespace", c.namespace(namespace))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.UpstreamError{Status: resp.StatusCode, Reason: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// UserInfo fetches the authenticated player's subject id and battle tag.
func (c *Client) UserInfo(ctx context.Context, ts oauth2.TokenSource) (*UserInfo, error) {
	var info UserInfo
	if err := c.get(ctx, ts, c.oauthURL, "/userinfo", "", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ProfileSummary fetches the account profile summary, which yields the
// full character list across the player's WoW accounts.
func (c *Client) ProfileSummary(ctx context.Context, ts oauth2.TokenSource) (*ProfileSummary, error) {
	var summary ProfileSummary
	if err := c.get(ctx, ts, c.apiURL, "/profile/user/wow", "profile", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// AccountMounts returns the size of the account-wide mount collection.
func (c *Client) AccountMounts(ctx context.Context, ts oauth2.TokenSource) (int, error) {
	var collection MountsCollection
	if err := c.get(ctx, ts, c.apiURL, "/profile/user/wow/collections/mounts", "profile", &collection); err != nil {
		return 0, err
	}
	return len(collection.Mounts), nil
}

// CharacterMounts returns the size of a single character's mount
// collection. Character names are lowercased in the path per the API.
func (c *Client) CharacterMounts(ctx context.Context, ts oauth2.TokenSource, realmSlug, characterName string) (int, error) {
	path := fmt.Sprintf("/profile/wow/character/%s/%s/collections/mounts",
		url.PathEscape(realmSlug), url.PathEscape(strings.ToLower(characterName)))
	var collection MountsCollection
	if err := c.get(ctx, ts, c.apiURL, path, "profile", &collection); err != nil {
		return 0, err
	}
	return len(collection.Mounts), nil
}

// CharacterBattlegrounds returns a character's battleground wins and
// losses, summed across the pvp summary's per-map match statistics.
func (c *Client) CharacterBattlegrounds(ctx context.Context, ts oauth2.TokenSource, realmSlug, characterName string) (won, lost int, err error) {
	path := fmt.Sprintf("/profile/wow/character/%s/%s/pvp-summary",
		url.PathEscape(realmSlug), url.PathEscape(strings.ToLower(characterName)))
	var summary PvPSummary
	if err := c.get(ctx, ts, c.apiURL, path, "profile", &summary); err != nil {
		return 0, 0, err
	}
	for _, m := range summary.PvPMapStatistics {
		won += m.MatchStatistics.Won
		lost += m.MatchStatistics.Lost
	}
	return won, lost, nil
}

// GuildRoster fetches the guild roster for a realm and guild slug.
func (c *Client) GuildRoster(ctx context.Context, ts oauth2.TokenSource, realmSlug, guildSlug string) (*GuildRoster, error) {
	path := fmt.Sprintf("/data/wow/guild/%s/%s/roster",
		url.PathEscape(strings.ToLower(realmSlug)), url.PathEscape(strings.ToLower(guildSlug)))
	var roster GuildRoster
	if err := c.get(ctx, ts, c.apiURL, path, "profile", &roster); err != nil {
		return nil, err
	}
	return &roster, nil
}
