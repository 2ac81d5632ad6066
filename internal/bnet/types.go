package bnet

// Response shapes for the Battle.net endpoints this service consumes.
// Fields not used by the service are left out.

// UserInfo is the OAuth userinfo response.
type UserInfo struct {
	Sub       string `json:"sub"`
	ID        int64  `json:"id"`
	BattleTag string `json:"battletag"`
}

// Realm identifies the server a character lives on.
type Realm struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// Character is one entry of a WoW account's character list. The profile
// summary does not reveal a character's guild, so guild membership has to
// be cross-checked against the roster.
type Character struct {
	Name  string `json:"name"`
	ID    int64  `json:"id"`
	Realm Realm  `json:"realm"`
	Level int    `json:"level"`
}

// WoWAccount groups the characters of one WoW account.
type WoWAccount struct {
	ID         int64       `json:"id"`
	Characters []Character `json:"characters"`
}

// ProfileSummary is the account profile summary response.
type ProfileSummary struct {
	WoWAccounts []WoWAccount `json:"wow_accounts"`
}

// MountsCollection is the mounts collection response for an account or a
// single character. Only the collection size matters here.
type MountsCollection struct {
	Mounts []struct {
		Mount struct {
			Name string `json:"name"`
			ID   int64  `json:"id"`
		} `json:"mount"`
	} `json:"mounts"`
}

// PvPSummary is the character pvp summary response. Only the per-map
// battleground match statistics matter here.
type PvPSummary struct {
	PvPMapStatistics []struct {
		MatchStatistics struct {
			Played int `json:"played"`
			Won    int `json:"won"`
			Lost   int `json:"lost"`
		} `json:"match_statistics"`
	} `json:"pvp_map_statistics"`
}

// GuildMember is one roster entry.
type GuildMember struct {
	Character struct {
		Name string `json:"name"`
		ID   int64  `json:"id"`
	} `json:"character"`
	Rank int `json:"rank"`
}

// GuildRoster is the guild roster response.
type GuildRoster struct {
	Members []GuildMember `json:"members"`
}

// MemberIDs extracts the character ids of every guild member.
func (r *GuildRoster) MemberIDs() []int64 {
	ids := make([]int64, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.Character.ID)
	}
	return ids
}
