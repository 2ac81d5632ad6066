package domain

// Session ties a browser cookie to a registered player.
type Session struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`
	PlayerID      string `json:"player_id"`
	ExpiresAt     int64  `json:"expires_at"` // epoch seconds
}
