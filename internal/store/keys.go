package store

// Key layout. Per-player records append the player id to the prefix so a
// bounded prefix scan enumerates one kind of record for all players.
const (
	PlayerInfoPrefix       = "players/info/"
	PlayerCharactersPrefix = "players/characters/"
	PlayerMountsPrefix     = "players/mounts/"
	PlayerBgPrefix         = "players/bg/"
	GuildPrefix            = "guild/"
	LeaderboardPrefix      = "leaderboard/"
	SessionPrefix          = "sessions/"
)

func PlayerInfoKey(playerID string) string       { return PlayerInfoPrefix + playerID }
func PlayerCharactersKey(playerID string) string { return PlayerCharactersPrefix + playerID }
func PlayerMountsKey(playerID string) string     { return PlayerMountsPrefix + playerID }
func PlayerBgKey(playerID string) string         { return PlayerBgPrefix + playerID }
func GuildKey(slug string) string                { return GuildPrefix + slug }
func LeaderboardKey(entryID string) string       { return LeaderboardPrefix + entryID }
func SessionKey(sessionID string) string         { return SessionPrefix + sessionID }

// PlayerIDFromKey strips a per-player prefix from a scanned key.
func PlayerIDFromKey(key, prefix string) string {
	return key[len(prefix):]
}
