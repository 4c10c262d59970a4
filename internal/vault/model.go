// Package vault defines the in-memory model of an unlocked vault: password
// entries, groups, and the Tree that holds them.
package vault

import (
	"slices"
	"time"
)

// DefaultGroupIcon is shown for groups that carry no icon of their own.
const DefaultGroupIcon = "📁"

// HistoryItem is a snapshot of an entry's secret fields taken before an update.
type HistoryItem struct {
	Timestamp int64  `json:"timestamp"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	Notes     string `json:"notes,omitempty"`
}

// PasswordEntry is a single credential. ID never changes after creation and
// UpdatedAt is never smaller than CreatedAt. GroupID is empty for entries in
// the root group.
type PasswordEntry struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Username   string        `json:"username"`
	Password   string        `json:"password"`
	URLs       []string      `json:"url,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	TOTPSecret string        `json:"totp_secret,omitempty"`
	Icon       string        `json:"icon,omitempty"`
	Tags       []string      `json:"tags,omitempty"`
	GroupID    string        `json:"group_id,omitempty"`
	SortOrder  *int64        `json:"sort_order,omitempty"`
	CreatedAt  int64         `json:"created_at"`
	UpdatedAt  int64         `json:"updated_at"`
	History    []HistoryItem `json:"history,omitempty"`
}

// Clone returns a deep copy of e.
func (e PasswordEntry) Clone() PasswordEntry {
	c := e
	c.URLs = slices.Clone(e.URLs)
	c.Tags = slices.Clone(e.Tags)
	c.History = slices.Clone(e.History)
	if e.SortOrder != nil {
		v := *e.SortOrder
		c.SortOrder = &v
	}
	return c
}

// Touch sets UpdatedAt to now, keeping UpdatedAt >= CreatedAt even when the
// clock moved backwards.
func (e *PasswordEntry) Touch(now time.Time) {
	e.UpdatedAt = max(now.UnixMilli(), e.CreatedAt)
}

// URL returns the primary URL or "".
func (e PasswordEntry) URL() string {
	if len(e.URLs) == 0 {
		return ""
	}
	return e.URLs[0]
}

// HasTag reports whether the entry carries tag.
func (e PasswordEntry) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// PasswordGroup is a folder of entries. ParentID is empty for top-level groups.
type PasswordGroup struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color,omitempty"`
	SortOrder int64  `json:"sort_order"`
	CreatedAt int64  `json:"created_at"`
	ParentID  string `json:"parent_id,omitempty"`
}

// Int64 returns a pointer to v, for optional fields such as SortOrder.
func Int64(v int64) *int64 {
	return &v
}

// NowMillis returns the current time in milliseconds since the epoch.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
