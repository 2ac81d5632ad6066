package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/johncmanuel/isabot/internal/domain"
)

// Discord messages are hard-capped at 2000 characters.
const discordMessageLimit = 2000

// Webhook posts ranked entries to a Discord webhook.
type Webhook struct {
	url        string
	signInURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhook creates a Discord webhook notifier. signInURL, when set, is
// appended to each message so guild members can register themselves.
func NewWebhook(url, signInURL string, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:        url,
		signInURL:  signInURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// PublishEntry renders the entry as a fixed-width ranked table and posts
// it to the webhook.
func (w *Webhook) PublishEntry(ctx context.Context, entry domain.LeaderboardEntry) error {
	payload, err := json.Marshal(map[string]string{
		"content": FormatEntry(entry, w.signInURL),
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook delivery failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	w.logger.Info("published entry to discord webhook", "entry_id", entry.EntryID)
	return nil
}

// FormatEntry renders a ranked fixed-width table for an entry. Messages
// over the Discord limit shed whole rows from the bottom, keeping the code
// fence closed and never cutting inside a multi-byte battle tag.
func FormatEntry(entry domain.LeaderboardEntry, signInURL string) string {
	created := time.UnixMilli(entry.CreatedAt).UTC()

	var header strings.Builder
	fmt.Fprintf(&header, "🏆 Weekly Mount Leaderboard — %s\n", created.Format("Jan 2, 2006"))
	header.WriteString("```\n")
	fmt.Fprintf(&header, "%-5s %-24s %6s %8s\n", "RANK", "BATTLETAG", "MOUNTS", "BG WINS")

	footer := "```"
	if signInURL != "" {
		footer += fmt.Sprintf("\nSign in at %s to join the board.", signInURL)
	}

	rows := entry.Rank()
	lines := make([]string, 0, len(rows))
	if len(rows) == 0 {
		lines = append(lines, "no players registered yet\n")
	}
	for i, row := range rows {
		lines = append(lines, fmt.Sprintf("%-5d %-24s %6d %8d\n", i+1, row.BattleTag, row.Mounts, row.BgWins))
	}

	for {
		msg := header.String() + strings.Join(lines, "") + footer
		if len(msg) <= discordMessageLimit || len(lines) == 0 {
			return msg
		}
		lines = lines[:len(lines)-1]
	}
}
