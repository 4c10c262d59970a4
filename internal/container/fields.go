package container

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/vault"
	"github.com/google/uuid"
	"github.com/tobischo/gokeepasslib/v3"
	w "github.com/tobischo/gokeepasslib/v3/wrappers"
)

// Well-known KDBX field names.
const (
	FieldTitle    = "Title"
	FieldUserName = "UserName"
	FieldPassword = "Password"
	FieldURL      = "URL"
	FieldNotes    = "Notes"
)

// Custom field names.
const (
	FieldOTPSecret      = "TimeOtp-Secret-Base32"
	FieldLegacyOTP      = "TOTP_SECRET"
	FieldIcon           = "IconId"
	FieldAdditionalURLs = "AdditionalURLs"
	FieldTags           = "Tags"
	FieldSortOrder      = "SORT_ORDER"
	FieldCreatedAt      = "CreatedAt"
	FieldUpdatedAt      = "UpdatedAt"
	FieldEntryID        = "EntryId"
)

// idNamespace turns non-UUID entry ids into stable UUIDs.
var idNamespace = uuid.MustParse("6f1a3c52-8d0e-4b7a-9f43-2c55e1d0b9a7")

// SetField stores value under key, removing every existing field with that
// key first. An empty value just removes the field.
func SetField(e *gokeepasslib.Entry, key, value string, protected bool) {
	RemoveField(e, key)
	if value == "" {
		return
	}
	e.Values = append(e.Values, gokeepasslib.ValueData{
		Key:   key,
		Value: gokeepasslib.V{Content: value, Protected: w.NewBoolWrapper(protected)},
	})
}

// RemoveField deletes all fields named key.
func RemoveField(e *gokeepasslib.Entry, key string) {
	e.Values = slices.DeleteFunc(e.Values, func(v gokeepasslib.ValueData) bool { return v.Key == key })
}

// CountField returns how many fields named key the entry has.
func CountField(e *gokeepasslib.Entry, key string) int {
	n := 0
	for _, v := range e.Values {
		if v.Key == key {
			n++
		}
	}
	return n
}

// recordUUID returns id itself when it parses as a UUID, otherwise a UUID
// derived from it.
func recordUUID(id string) gokeepasslib.UUID {
	if u, err := uuid.Parse(id); err == nil {
		return gokeepasslib.UUID(u)
	}
	return gokeepasslib.UUID(uuid.NewSHA1(idNamespace, []byte(id)))
}

func isCanonicalUUID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

// toRecord maps an entry to a KDBX record.
func toRecord(e vault.PasswordEntry) gokeepasslib.Entry {
	rec := gokeepasslib.NewEntry()
	rec.UUID = recordUUID(e.ID)

	SetField(&rec, FieldTitle, e.Title, false)
	SetField(&rec, FieldUserName, e.Username, false)
	SetField(&rec, FieldPassword, e.Password, true)
	SetField(&rec, FieldURL, e.URL(), false)
	SetField(&rec, FieldNotes, e.Notes, false)

	SetField(&rec, FieldOTPSecret, e.TOTPSecret, true)
	SetField(&rec, FieldIcon, e.Icon, false)
	if len(e.URLs) > 1 {
		SetField(&rec, FieldAdditionalURLs, strings.Join(e.URLs[1:], "\n"), false)
	}
	SetField(&rec, FieldTags, strings.Join(e.Tags, ","), false)
	if e.SortOrder != nil {
		SetField(&rec, FieldSortOrder, strconv.FormatInt(*e.SortOrder, 10), false)
	}
	SetField(&rec, FieldCreatedAt, strconv.FormatInt(e.CreatedAt, 10), false)
	SetField(&rec, FieldUpdatedAt, strconv.FormatInt(e.UpdatedAt, 10), false)
	if !isCanonicalUUID(e.ID) {
		SetField(&rec, FieldEntryID, e.ID, false)
	}

	for _, h := range e.History {
		snap := gokeepasslib.NewEntry()
		snap.UUID = rec.UUID
		SetField(&snap, FieldTitle, e.Title, false)
		SetField(&snap, FieldUserName, h.Username, false)
		SetField(&snap, FieldPassword, h.Password, true)
		SetField(&snap, FieldNotes, h.Notes, false)
		SetField(&snap, FieldUpdatedAt, strconv.FormatInt(h.Timestamp, 10), false)
		rec.Histories = append(rec.Histories, gokeepasslib.History{Entries: []gokeepasslib.Entry{snap}})
	}
	return rec
}

// fromRecord maps a KDBX record back to an entry. now is used for missing
// timestamps.
func fromRecord(rec *gokeepasslib.Entry, now int64) vault.PasswordEntry {
	e := vault.PasswordEntry{
		ID:       uuid.UUID(rec.UUID).String(),
		Title:    rec.GetContent(FieldTitle),
		Username: rec.GetContent(FieldUserName),
		Password: rec.GetContent(FieldPassword),
		Notes:    rec.GetContent(FieldNotes),
		Icon:     rec.GetContent(FieldIcon),
	}
	if id := rec.GetContent(FieldEntryID); id != "" {
		e.ID = id
	}

	if u := rec.GetContent(FieldURL); u != "" {
		e.URLs = append(e.URLs, u)
	}
	for _, u := range strings.Split(rec.GetContent(FieldAdditionalURLs), "\n") {
		if u = strings.TrimSpace(u); u != "" {
			e.URLs = append(e.URLs, u)
		}
	}

	e.TOTPSecret = rec.GetContent(FieldOTPSecret)
	if e.TOTPSecret == "" {
		e.TOTPSecret = rec.GetContent(FieldLegacyOTP)
	}

	e.Tags = splitTags(rec.GetContent(FieldTags))

	if n, err := strconv.ParseInt(rec.GetContent(FieldSortOrder), 10, 64); err == nil {
		e.SortOrder = vault.Int64(n)
	}

	e.CreatedAt = parseMillis(rec.GetContent(FieldCreatedAt), now)
	e.UpdatedAt = max(parseMillis(rec.GetContent(FieldUpdatedAt), now), e.CreatedAt)

	for _, h := range rec.Histories {
		for i := range h.Entries {
			snap := &h.Entries[i]
			e.History = append(e.History, vault.HistoryItem{
				Timestamp: parseMillis(snap.GetContent(FieldUpdatedAt), 0),
				Password:  snap.GetContent(FieldPassword),
				Username:  snap.GetContent(FieldUserName),
				Notes:     snap.GetContent(FieldNotes),
			})
		}
	}
	return e
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseMillis(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// groupMeta is the JSON document kept in a KDBX group's notes.
type groupMeta struct {
	ID        string `json:"id,omitempty"`
	Icon      string `json:"icon"`
	Color     string `json:"color,omitempty"`
	SortOrder int64  `json:"sort_order"`
	CreatedAt int64  `json:"created_at"`
}

func toGroupRecord(g vault.PasswordGroup) gokeepasslib.Group {
	rec := gokeepasslib.NewGroup()
	rec.UUID = recordUUID(g.ID)
	rec.Name = g.Name

	m := groupMeta{Icon: g.Icon, Color: g.Color, SortOrder: g.SortOrder, CreatedAt: g.CreatedAt}
	if !isCanonicalUUID(g.ID) {
		m.ID = g.ID
	}
	meta, _ := json.Marshal(m)
	rec.Notes = string(meta)
	return rec
}

func fromGroupRecord(rec *gokeepasslib.Group, now int64) vault.PasswordGroup {
	g := vault.PasswordGroup{
		ID:        uuid.UUID(rec.UUID).String(),
		Name:      rec.Name,
		Icon:      vault.DefaultGroupIcon,
		CreatedAt: now,
	}

	var meta groupMeta
	if err := json.Unmarshal([]byte(rec.Notes), &meta); err == nil {
		if meta.ID != "" {
			g.ID = meta.ID
		}
		if meta.Icon != "" {
			g.Icon = meta.Icon
		}
		g.Color = meta.Color
		g.SortOrder = meta.SortOrder
		if meta.CreatedAt != 0 {
			g.CreatedAt = meta.CreatedAt
		}
	}
	return g
}
