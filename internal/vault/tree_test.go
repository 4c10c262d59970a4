package vault

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, title string) PasswordEntry {
	return PasswordEntry{ID: id, Title: title, Username: "u-" + id, Password: "p-" + id, CreatedAt: 1, UpdatedAt: 2}
}

func group(id, name string) PasswordGroup {
	return PasswordGroup{ID: id, Name: name, Icon: "🔑", CreatedAt: 1}
}

func TestNewTree_EmptyWithRoot(t *testing.T) {
	tr := NewTree()
	assert.NotEmpty(t, tr.RootID())
	assert.Equal(t, RootGroupName, tr.Root().Name)
	assert.Equal(t, DefaultGroupIcon, tr.Root().Icon)
	assert.Zero(t, tr.CountEntries())
	assert.Zero(t, tr.CountGroups())
	assert.Empty(t, tr.Entries())
	assert.Empty(t, tr.Groups())
}

func TestAddEntry_RootAndGroup(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("g1", "Work")))
	require.NoError(t, tr.AddEntry(entry("e1", "Mail")))

	e2 := entry("e2", "VPN")
	e2.GroupID = "g1"
	require.NoError(t, tr.AddEntry(e2))

	got, err := tr.Entry("e1")
	require.NoError(t, err)
	assert.Equal(t, "", got.GroupID)

	got, err = tr.Entry("e2")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GroupID)

	assert.Equal(t, 2, tr.CountEntries())
}

func TestAddEntry_RootIDIsNormalised(t *testing.T) {
	tr := NewTree()
	e := entry("e1", "Mail")
	e.GroupID = tr.RootID()
	require.NoError(t, tr.AddEntry(e))

	got, err := tr.Entry("e1")
	require.NoError(t, err)
	assert.Empty(t, got.GroupID)
}

func TestAddEntry_Errors(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddEntry(entry("e1", "Mail")))

	assert.ErrorIs(t, tr.AddEntry(entry("e1", "dup")), common.ErrAlreadyExists)
	assert.ErrorIs(t, tr.AddEntry(PasswordEntry{}), common.ErrInvalidFormat)

	orphan := entry("e2", "x")
	orphan.GroupID = "missing"
	assert.ErrorIs(t, tr.AddEntry(orphan), common.ErrNotFound)
	assert.Equal(t, 1, tr.CountEntries())
}

func TestEntry_ReturnsCopy(t *testing.T) {
	tr := NewTree()
	e := entry("e1", "Mail")
	e.Tags = []string{"a"}
	require.NoError(t, tr.AddEntry(e))

	got, err := tr.Entry("e1")
	require.NoError(t, err)
	got.Tags[0] = "changed"
	got.Title = "changed"

	again, err := tr.Entry("e1")
	require.NoError(t, err)
	assert.Equal(t, "Mail", again.Title)
	assert.Equal(t, []string{"a"}, again.Tags)
}

func TestUpdateEntry_SameGroupKeepsPosition(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddEntry(entry("e1", "A")))
	require.NoError(t, tr.AddEntry(entry("e2", "B")))

	upd := entry("e1", "A2")
	require.NoError(t, tr.UpdateEntry(upd))

	all := tr.Entries()
	require.Len(t, all, 2)
	assert.Equal(t, "A2", all[0].Title)
	assert.Equal(t, "B", all[1].Title)
}

func TestUpdateEntry_MovesBetweenGroups(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("g1", "Work")))
	require.NoError(t, tr.AddGroup(group("g2", "Home")))

	e := entry("e1", "Mail")
	e.GroupID = "g1"
	require.NoError(t, tr.AddEntry(e))

	e.GroupID = "g2"
	require.NoError(t, tr.UpdateEntry(e))

	got, err := tr.Entry("e1")
	require.NoError(t, err)
	assert.Equal(t, "g2", got.GroupID)
	assert.Equal(t, 1, tr.CountEntries(), "an entry is never duplicated across groups")

	// g1 is now empty and can go
	require.NoError(t, tr.RemoveGroup("g1"))
}

func TestUpdateEntry_FailuresLeaveTreeUnchanged(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddEntry(entry("e1", "Mail")))
	before := tr.Entries()

	assert.ErrorIs(t, tr.UpdateEntry(entry("missing", "x")), common.ErrNotFound)

	moved := entry("e1", "Mail2")
	moved.GroupID = "nope"
	assert.ErrorIs(t, tr.UpdateEntry(moved), common.ErrNotFound)

	if diff := cmp.Diff(before, tr.Entries()); diff != "" {
		t.Fatalf("tree changed (-before +after):\n%s", diff)
	}
}

func TestRemoveEntry(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddEntry(entry("e1", "Mail")))
	require.NoError(t, tr.RemoveEntry("e1"))
	assert.Zero(t, tr.CountEntries())
	assert.ErrorIs(t, tr.RemoveEntry("e1"), common.ErrNotFound)
	_, err := tr.Entry("e1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGroups_NestedDepthFirst(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("a", "A")))
	child := group("a1", "A1")
	child.ParentID = "a"
	require.NoError(t, tr.AddGroup(child))
	require.NoError(t, tr.AddGroup(group("b", "B")))

	names := []string{}
	for _, g := range tr.Groups() {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"A", "A1", "B"}, names)

	g, err := tr.Group("a1")
	require.NoError(t, err)
	assert.Equal(t, "a", g.ParentID)

	ids, err := tr.Children("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids)
}

func TestAddGroup_Errors(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("a", "A")))
	assert.ErrorIs(t, tr.AddGroup(group("a", "again")), common.ErrAlreadyExists)
	assert.ErrorIs(t, tr.AddGroup(PasswordGroup{Name: "no id"}), common.ErrInvalidFormat)

	orphan := group("x", "X")
	orphan.ParentID = "missing"
	assert.ErrorIs(t, tr.AddGroup(orphan), common.ErrNotFound)
}

func TestAddGroup_DefaultIcon(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(PasswordGroup{ID: "a", Name: "A"}))
	g, err := tr.Group("a")
	require.NoError(t, err)
	assert.Equal(t, DefaultGroupIcon, g.Icon)
}

func TestUpdateGroup(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("a", "A")))

	require.NoError(t, tr.UpdateGroup(PasswordGroup{ID: "a", Name: "Renamed", Color: "#ff0000", SortOrder: 3, ParentID: "ignored"}))
	g, err := tr.Group("a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", g.Name)
	assert.Equal(t, DefaultGroupIcon, g.Icon)
	assert.Equal(t, "#ff0000", g.Color)
	assert.EqualValues(t, 3, g.SortOrder)
	assert.Empty(t, g.ParentID)

	assert.ErrorIs(t, tr.UpdateGroup(group("missing", "x")), common.ErrNotFound)
	assert.ErrorIs(t, tr.UpdateGroup(PasswordGroup{ID: tr.RootID()}), common.ErrNotFound)
}

func TestRemoveGroup_WithDirectEntryConflicts(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("g", "G")))
	e := entry("e1", "Mail")
	e.GroupID = "g"
	require.NoError(t, tr.AddEntry(e))

	err := tr.RemoveGroup("g")
	require.ErrorIs(t, err, common.ErrConflict)
	assert.Contains(t, err.Error(), "cannot delete group with entries")

	_, err = tr.Group("g")
	assert.NoError(t, err)
	got, err := tr.Entry("e1")
	require.NoError(t, err)
	assert.Equal(t, "g", got.GroupID)
}

func TestRemoveGroup_WithNestedEntryConflicts(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("g", "G")))
	sub := group("s", "S")
	sub.ParentID = "g"
	require.NoError(t, tr.AddGroup(sub))
	e := entry("e1", "Mail")
	e.GroupID = "s"
	require.NoError(t, tr.AddEntry(e))

	assert.ErrorIs(t, tr.RemoveGroup("g"), common.ErrConflict)
	assert.Equal(t, 2, tr.CountGroups())
}

func TestRemoveGroup_EmptyWithEmptySubgroups(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("g", "G")))
	sub := group("s", "S")
	sub.ParentID = "g"
	require.NoError(t, tr.AddGroup(sub))

	require.NoError(t, tr.RemoveGroup("g"))
	assert.Empty(t, tr.Groups())
	_, err := tr.Group("s")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRemoveGroup_RootAndMissing(t *testing.T) {
	tr := NewTree()
	assert.ErrorIs(t, tr.RemoveGroup(tr.RootID()), common.ErrConflict)
	assert.ErrorIs(t, tr.RemoveGroup("missing"), common.ErrNotFound)
}

func TestClone_IsIndependent(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.AddGroup(group("g", "G")))
	require.NoError(t, tr.AddEntry(entry("e1", "Mail")))

	c := tr.Clone()
	require.NoError(t, c.RemoveEntry("e1"))
	require.NoError(t, c.RemoveGroup("g"))
	require.NoError(t, c.AddEntry(entry("e2", "New")))

	assert.Equal(t, 1, tr.CountEntries())
	assert.Equal(t, 1, tr.CountGroups())
	_, err := tr.Entry("e2")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, tr.RootID(), c.RootID())
}

func TestWipe_EmptiesTree(t *testing.T) {
	tr := NewTree()
	e := entry("e1", "Mail")
	e.History = []HistoryItem{{Timestamp: 1, Password: "old"}}
	require.NoError(t, tr.AddEntry(e))
	stored := tr.entries["e1"]

	tr.Wipe()
	assert.Empty(t, stored.Password)
	assert.Empty(t, stored.History[0].Password)
	assert.Zero(t, len(tr.entries))
}

func TestPasswordEntry_TouchKeepsInvariant(t *testing.T) {
	e := PasswordEntry{CreatedAt: time.Now().Add(time.Hour).UnixMilli()}
	e.Touch(time.Now())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	e = PasswordEntry{CreatedAt: 10}
	now := time.UnixMilli(5000)
	e.Touch(now)
	assert.EqualValues(t, 5000, e.UpdatedAt)
}

func TestPasswordEntry_Helpers(t *testing.T) {
	e := PasswordEntry{URLs: []string{"https://a", "https://b"}, Tags: []string{"Chrome"}, SortOrder: Int64(4)}
	assert.Equal(t, "https://a", e.URL())
	assert.Equal(t, "", PasswordEntry{}.URL())
	assert.True(t, e.HasTag("Chrome"))
	assert.False(t, e.HasTag("chrome"))

	c := e.Clone()
	*c.SortOrder = 9
	c.URLs[0] = "x"
	assert.EqualValues(t, 4, *e.SortOrder)
	assert.Equal(t, "https://a", e.URLs[0])
}
