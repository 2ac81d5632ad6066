package domain

import "strings"

// SchemaVersion tags every stored record so schema drift is caught at
// decode time instead of guessed at runtime.
const SchemaVersion = 1

// PlayerRecord is a logged-in player's identity and upstream credential.
// Created once on first successful authentication (first write wins) and
// mutated only to advance the character refresh gate.
type PlayerRecord struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`         // Battle.net subject id, stable
	BattleTag     string `json:"battle_tag"` // discriminator stripped
	AccessToken   string `json:"access_token"`
	ExpiresAt     int64  `json:"expires_at"` // epoch seconds
	// NextCharacterRefresh gates the expensive character refresh. Epoch
	// seconds; a refresh before this time returns the cached list unchanged.
	NextCharacterRefresh int64 `json:"next_character_refresh"`
}

// StripDiscriminator removes the #1234 suffix from a battle tag. The tag is
// rendered publicly on the leaderboard, so the discriminator stays private.
func StripDiscriminator(battleTag string) string {
	tag, _, _ := strings.Cut(battleTag, "#")
	return tag
}

// Realm is the server a character lives on.
type Realm struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	ID   int64  `json:"id"`
}

// CharacterRecord is a single in-game character belonging to a player,
// already filtered to the guild's home realms and guild membership. The
// cached list for a player is replaced wholesale on refresh, never merged.
type CharacterRecord struct {
	Name  string `json:"name"`
	ID    int64  `json:"id"`
	Realm Realm  `json:"realm"`
}

// CharacterList is the versioned stored form of a player's characters.
type CharacterList struct {
	SchemaVersion int               `json:"schema_version"`
	Characters    []CharacterRecord `json:"characters"`
}

// MountStat is the cached size of a player's mount collection. The login
// path fills it once from the account-wide collection; the weekly bulk job
// overwrites it with the maximum observed across the player's characters.
type MountStat struct {
	SchemaVersion int `json:"schema_version"`
	TotalMounts   int `json:"total_mounts"`
}

// BgStat is a player's battleground record: wins and losses summed across
// the per-map match statistics of every qualifying character. Written only
// by the weekly bulk job, replaced wholesale each generation.
type BgStat struct {
	SchemaVersion int `json:"schema_version"`
	TotalWon      int `json:"bg_total_won"`
	TotalLost     int `json:"bg_total_lost"`
}
