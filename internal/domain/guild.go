package domain

// GuildMemberSet holds the external character ids currently in the guild.
// Replaced wholesale on each scheduled refresh and used only for membership
// filtering.
type GuildMemberSet struct {
	SchemaVersion int     `json:"schema_version"`
	MemberIDs     []int64 `json:"member_ids"`

	lookup map[int64]struct{}
}

// NewGuildMemberSet builds a member set from roster character ids.
func NewGuildMemberSet(ids []int64) GuildMemberSet {
	return GuildMemberSet{SchemaVersion: SchemaVersion, MemberIDs: ids}
}

// Contains reports whether the character id is in the guild.
func (s *GuildMemberSet) Contains(id int64) bool {
	if s.lookup == nil {
		s.lookup = make(map[int64]struct{}, len(s.MemberIDs))
		for _, m := range s.MemberIDs {
			s.lookup[m] = struct{}{}
		}
	}
	_, ok := s.lookup[id]
	return ok
}

// Len returns the number of guild members.
func (s *GuildMemberSet) Len() int {
	return len(s.MemberIDs)
}
