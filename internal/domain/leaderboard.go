package domain

import "sort"

// EntryPlayer is the public identity rendered on a leaderboard entry.
type EntryPlayer struct {
	BattleTag string `json:"battle_tag"`
	ID        string `json:"id"`
}

// LeaderboardEntry is an immutable, timestamped ranked snapshot of the
// cached player and mount data. Entries are append-only: once written they
// are never mutated or deleted. They are totally ordered by CreatedAt.
type LeaderboardEntry struct {
	SchemaVersion int                    `json:"schema_version"`
	EntryID       string                 `json:"entry_id"`
	CreatedAt     int64                  `json:"created_at"` // epoch milliseconds
	Players       map[string]EntryPlayer `json:"players"`
	Mounts        map[string]MountStat   `json:"mounts"`
	BgWins        map[string]BgStat      `json:"normal_bg_wins"`
}

// RankedRow is one line of a ranked leaderboard view.
type RankedRow struct {
	BattleTag string `json:"battle_tag"`
	PlayerID  string `json:"player_id"`
	Mounts    int    `json:"mounts"`
	BgWins    int    `json:"bg_wins"`
}

// Rank returns the entry's players ordered by mount count descending. A
// player with no cached MountStat ranks with zero mounts; an absent BgStat
// shows zero wins. Ties break by battle tag, then player id, so the
// ordering is a pure function of the entry and re-derivable identically at
// any later time.
func (e *LeaderboardEntry) Rank() []RankedRow {
	rows := make([]RankedRow, 0, len(e.Players))
	for id, p := range e.Players {
		rows = append(rows, RankedRow{
			BattleTag: p.BattleTag,
			PlayerID:  id,
			Mounts:    e.Mounts[id].TotalMounts,
			BgWins:    e.BgWins[id].TotalWon,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Mounts != rows[j].Mounts {
			return rows[i].Mounts > rows[j].Mounts
		}
		if rows[i].BattleTag != rows[j].BattleTag {
			return rows[i].BattleTag < rows[j].BattleTag
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	return rows
}
