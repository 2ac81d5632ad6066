package bnet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
)

func newTestClient(apiURL, oauthURL string) *Client {
	cfg := &config.BattleNetConfig{
		Region:            "us",
		Locale:            "en_US",
		RequestsPerSecond: 100,
		RequestBurst:      100,
		HTTPTimeout:       5 * time.Second,
		APIURL:            apiURL,
		OAuthURL:          oauthURL,
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func bearer(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

func TestProfileSummaryRequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/user/wow" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Battlenet-Namespace"); got != "profile-us" {
			t.Errorf("expected namespace profile-us, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer player-token" {
			t.Errorf("expected bearer header, got %q", got)
		}
		if got := r.URL.Query().Get("locale"); got != "en_US" {
			t.Errorf("expected locale en_US, got %q", got)
		}
		io.WriteString(w, `{"wow_accounts":[{"characters":[{"name":"Ina","id":101,"realm":{"name":"Shandris","slug":"shandris","id":1}}]}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	summary, err := client.ProfileSummary(context.Background(), bearer("player-token"))
	if err != nil {
		t.Fatalf("profile summary: %v", err)
	}
	if len(summary.WoWAccounts) != 1 || len(summary.WoWAccounts[0].Characters) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if c := summary.WoWAccounts[0].Characters[0]; c.ID != 101 || c.Realm.Slug != "shandris" {
		t.Fatalf("unexpected character: %+v", c)
	}
}

func TestUserInfoUsesOAuthHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Battlenet-Namespace"); got != "" {
			t.Errorf("userinfo must not carry a namespace header, got %q", got)
		}
		io.WriteString(w, `{"sub":"sub-1","id":42,"battletag":"Isabelle#1234"}`)
	}))
	defer server.Close()

	client := newTestClient("http://api.invalid", server.URL)
	info, err := client.UserInfo(context.Background(), bearer("t"))
	if err != nil {
		t.Fatalf("userinfo: %v", err)
	}
	if info.Sub != "sub-1" || info.BattleTag != "Isabelle#1234" {
		t.Fatalf("unexpected user info: %+v", info)
	}
}

func TestAccountMountsCountsCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/user/wow/collections/mounts" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, `{"mounts":[{"mount":{"id":1}},{"mount":{"id":2}},{"mount":{"id":3}}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	count, err := client.AccountMounts(context.Background(), bearer("t"))
	if err != nil {
		t.Fatalf("account mounts: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 mounts, got %d", count)
	}
}

func TestCharacterMountsLowercasesName(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"mounts":[{"mount":{"id":1}}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	count, err := client.CharacterMounts(context.Background(), bearer("t"), "shandris", "Isabelle")
	if err != nil {
		t.Fatalf("character mounts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 mount, got %d", count)
	}
	if gotPath != "/profile/wow/character/shandris/isabelle/collections/mounts" {
		t.Fatalf("character name not lowercased in path: %q", gotPath)
	}
}

func TestCharacterBattlegroundsSumsMapStatistics(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"pvp_map_statistics":[
			{"match_statistics":{"played":10,"won":6,"lost":4}},
			{"match_statistics":{"played":3,"won":1,"lost":2}}
		]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	won, lost, err := client.CharacterBattlegrounds(context.Background(), bearer("t"), "shandris", "Isabelle")
	if err != nil {
		t.Fatalf("battlegrounds: %v", err)
	}
	if won != 7 || lost != 6 {
		t.Fatalf("expected 7 won / 6 lost, got %d/%d", won, lost)
	}
	if gotPath != "/profile/wow/character/shandris/isabelle/pvp-summary" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestGuildRosterMemberIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/wow/guild/shandris/ar-club/roster" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, `{"members":[{"character":{"name":"Ina","id":101},"rank":0},{"character":{"name":"Tom","id":102},"rank":3}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	roster, err := client.GuildRoster(context.Background(), bearer("t"), "Shandris", "AR-Club")
	if err != nil {
		t.Fatalf("guild roster: %v", err)
	}
	ids := roster.MemberIDs()
	if len(ids) != 2 || ids[0] != 101 || ids[1] != 102 {
		t.Fatalf("unexpected member ids: %v", ids)
	}
}

func TestNon2xxBecomesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	_, err := client.ProfileSummary(context.Background(), bearer("t"))
	if err == nil {
		t.Fatal("expected error")
	}

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if upstream.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", upstream.Status)
	}
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatal("UpstreamError must unwrap to ErrUpstreamUnavailable")
	}
}
