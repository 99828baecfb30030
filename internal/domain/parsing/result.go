package parsing

import "time"

// ResultItem is a parsed resource (group or channel) as stored by the
// parsing service. Once fetched, items are owned exclusively by the page
// cache; capacity enforcement only reasons about counts and the oldest
// ParsedAt.
type ResultItem struct {
	ID          int64     `json:"id"`
	ResourceID  string    `json:"resource_id"`
	Name        string    `json:"name"`
	Username    string    `json:"username,omitempty"`
	MemberCount int       `json:"member_count"`
	IsPublic    bool      `json:"is_public"`
	ParsedAt    time.Time `json:"parsed_at"`
}

// Older reports whether a should be evicted before b under the
// oldest-first eviction policy: minimum ParsedAt wins, ties broken
// deterministically by lowest ID.
func Older(a, b ResultItem) bool {
	if a.ParsedAt.Equal(b.ParsedAt) {
		return a.ID < b.ID
	}
	return a.ParsedAt.Before(b.ParsedAt)
}
