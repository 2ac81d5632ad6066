package bnet

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/johncmanuel/isabot/internal/config"
)

// Scope granted by players during sign-in.
var Scopes = []string{"wow.profile"}

// OAuthConfig builds the authorization-code flow configuration used by the
// sign-in and callback handlers.
func OAuthConfig(cfg *config.BattleNetConfig, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.OAuthURL + "/authorize",
			TokenURL: cfg.OAuthURL + "/token",
		},
	}
}

// ClientCredentialsSource returns the shared application token source used
// for guild roster reads and the weekly bulk refresh. The source caches and
// renews the token on its own.
func ClientCredentialsSource(ctx context.Context, cfg *config.BattleNetConfig) oauth2.TokenSource {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.OAuthURL + "/token",
	}
	return cc.TokenSource(ctx)
}

// StaticTokenSource wraps a player's access token from the
// authorization-code callback as a token source.
func StaticTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
}
