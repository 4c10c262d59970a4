package vault

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/google/uuid"
)

// RootGroupName is the display name of a fresh vault's root group.
const RootGroupName = "Root"

type groupNode struct {
	group   PasswordGroup
	parent  string
	groups  []string
	entries []string
}

// Tree is the vault's group/entry hierarchy stored as an arena: every node
// is addressed by id and knows its parent, so lookups and moves never walk
// the tree. Children keep insertion order.
//
// Groups are only ever created under an existing parent and never
// re-parented, so the hierarchy cannot contain cycles.
type Tree struct {
	rootID      string
	groups      map[string]*groupNode
	entries     map[string]*PasswordEntry
	entryParent map[string]string
}

// NewTree returns an empty tree with a freshly identified root group.
func NewTree() *Tree {
	return NewTreeWithRoot(PasswordGroup{
		ID:        uuid.NewString(),
		Name:      RootGroupName,
		Icon:      DefaultGroupIcon,
		CreatedAt: NowMillis(),
	})
}

// NewTreeWithRoot returns an empty tree whose root group is root.
func NewTreeWithRoot(root PasswordGroup) *Tree {
	root.ParentID = ""
	return &Tree{
		rootID:      root.ID,
		groups:      map[string]*groupNode{root.ID: {group: root}},
		entries:     make(map[string]*PasswordEntry),
		entryParent: make(map[string]string),
	}
}

// Root returns the root group.
func (t *Tree) Root() PasswordGroup {
	return t.groups[t.rootID].group
}

// RootID returns the identifier of the root group.
func (t *Tree) RootID() string {
	return t.rootID
}

func (t *Tree) CountEntries() int { return len(t.entries) }

// CountGroups returns the number of groups, root excluded.
func (t *Tree) CountGroups() int { return len(t.groups) - 1 }

// resolveGroup maps "" and the root id to the root, and anything else to an
// existing group.
func (t *Tree) resolveGroup(id string) (string, error) {
	if id == "" {
		return t.rootID, nil
	}
	if _, ok := t.groups[id]; !ok {
		return "", fmt.Errorf("group %q: %w", id, common.ErrNotFound)
	}
	return id, nil
}

// publicParent hides the root id from callers: top-level items report "".
func (t *Tree) publicParent(id string) string {
	if id == t.rootID {
		return ""
	}
	return id
}

// Entry returns a copy of the entry with the given id.
func (t *Tree) Entry(id string) (PasswordEntry, error) {
	e, ok := t.entries[id]
	if !ok {
		return PasswordEntry{}, fmt.Errorf("entry %q: %w", id, common.ErrNotFound)
	}
	c := e.Clone()
	c.GroupID = t.publicParent(t.entryParent[id])
	return c, nil
}

// Group returns a copy of the group with the given id. The root is not
// addressable this way.
func (t *Tree) Group(id string) (PasswordGroup, error) {
	n, ok := t.groups[id]
	if !ok || id == t.rootID {
		return PasswordGroup{}, fmt.Errorf("group %q: %w", id, common.ErrNotFound)
	}
	g := n.group
	g.ParentID = t.publicParent(n.parent)
	return g, nil
}

// Entries lists every entry depth-first: a group's own entries, then those of
// its subgroups.
func (t *Tree) Entries() []PasswordEntry {
	out := make([]PasswordEntry, 0, len(t.entries))
	t.Walk(func(g PasswordGroup, depth int, entries []PasswordEntry) {
		out = append(out, entries...)
	})
	return out
}

// Groups lists every group except the root, depth-first.
func (t *Tree) Groups() []PasswordGroup {
	out := make([]PasswordGroup, 0, len(t.groups)-1)
	t.Walk(func(g PasswordGroup, depth int, _ []PasswordEntry) {
		if depth > 0 {
			out = append(out, g)
		}
	})
	return out
}

// Walk visits groups depth-first starting with the root (depth 0), passing
// each group with copies of its direct entries.
func (t *Tree) Walk(fn func(g PasswordGroup, depth int, entries []PasswordEntry)) {
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n := t.groups[id]
		g := n.group
		g.ParentID = t.publicParent(n.parent)

		entries := make([]PasswordEntry, 0, len(n.entries))
		for _, eid := range n.entries {
			e := t.entries[eid].Clone()
			e.GroupID = t.publicParent(id)
			entries = append(entries, e)
		}
		fn(g, depth, entries)

		for _, child := range n.groups {
			visit(child, depth+1)
		}
	}
	visit(t.rootID, 0)
}

// Children returns the ids of the direct subgroups of group id ("" = root).
func (t *Tree) Children(id string) ([]string, error) {
	gid, err := t.resolveGroup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.groups[gid].groups), nil
}

// EntriesIn returns copies of the direct entries of group id ("" = root).
func (t *Tree) EntriesIn(id string) ([]PasswordEntry, error) {
	gid, err := t.resolveGroup(id)
	if err != nil {
		return nil, err
	}
	n := t.groups[gid]
	out := make([]PasswordEntry, 0, len(n.entries))
	for _, eid := range n.entries {
		e := t.entries[eid].Clone()
		e.GroupID = t.publicParent(gid)
		out = append(out, e)
	}
	return out, nil
}

// AddEntry attaches e to e.GroupID, or to the root when GroupID is empty.
func (t *Tree) AddEntry(e PasswordEntry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is empty: %w", common.ErrInvalidFormat)
	}
	if _, ok := t.entries[e.ID]; ok {
		return fmt.Errorf("entry %q: %w", e.ID, common.ErrAlreadyExists)
	}
	gid, err := t.resolveGroup(e.GroupID)
	if err != nil {
		return err
	}

	stored := e.Clone()
	stored.GroupID = ""
	t.entries[e.ID] = &stored
	t.entryParent[e.ID] = gid
	t.groups[gid].entries = append(t.groups[gid].entries, e.ID)
	return nil
}

// UpdateEntry replaces the entry with e's id. When e.GroupID names another
// group the entry is removed from its current group and appended to the new
// one; otherwise it keeps its position. Either the whole update applies or
// nothing changes.
func (t *Tree) UpdateEntry(e PasswordEntry) error {
	if _, ok := t.entries[e.ID]; !ok {
		return fmt.Errorf("entry %q: %w", e.ID, common.ErrNotFound)
	}
	target, err := t.resolveGroup(e.GroupID)
	if err != nil {
		return err
	}

	stored := e.Clone()
	stored.GroupID = ""

	current := t.entryParent[e.ID]
	if current == target {
		t.entries[e.ID] = &stored
		return nil
	}

	t.detachEntry(e.ID)
	t.entries[e.ID] = &stored
	t.entryParent[e.ID] = target
	t.groups[target].entries = append(t.groups[target].entries, e.ID)
	return nil
}

// RemoveEntry deletes the entry with the given id.
func (t *Tree) RemoveEntry(id string) error {
	if _, ok := t.entries[id]; !ok {
		return fmt.Errorf("entry %q: %w", id, common.ErrNotFound)
	}
	t.detachEntry(id)
	return nil
}

func (t *Tree) detachEntry(id string) {
	parent := t.groups[t.entryParent[id]]
	parent.entries = slices.DeleteFunc(parent.entries, func(s string) bool { return s == id })
	delete(t.entries, id)
	delete(t.entryParent, id)
}

// AddGroup creates g under g.ParentID, or under the root when empty.
func (t *Tree) AddGroup(g PasswordGroup) error {
	if g.ID == "" {
		return fmt.Errorf("group id is empty: %w", common.ErrInvalidFormat)
	}
	if _, ok := t.groups[g.ID]; ok {
		return fmt.Errorf("group %q: %w", g.ID, common.ErrAlreadyExists)
	}
	parent, err := t.resolveGroup(g.ParentID)
	if err != nil {
		return err
	}
	if g.Icon == "" {
		g.Icon = DefaultGroupIcon
	}
	g.ParentID = ""

	t.groups[g.ID] = &groupNode{group: g, parent: parent}
	t.groups[parent].groups = append(t.groups[parent].groups, g.ID)
	return nil
}

// UpdateGroup changes a group's name and decorative fields. Groups are never
// re-parented, so g.ParentID is ignored.
func (t *Tree) UpdateGroup(g PasswordGroup) error {
	n, ok := t.groups[g.ID]
	if !ok || g.ID == t.rootID {
		return fmt.Errorf("group %q: %w", g.ID, common.ErrNotFound)
	}
	n.group.Name = g.Name
	n.group.Icon = g.Icon
	if n.group.Icon == "" {
		n.group.Icon = DefaultGroupIcon
	}
	n.group.Color = g.Color
	n.group.SortOrder = g.SortOrder
	return nil
}

// RemoveGroup deletes a group together with its (empty) subgroups. It fails
// with common.ErrConflict when the group or any nested group still holds an
// entry; the root can never be removed.
func (t *Tree) RemoveGroup(id string) error {
	if id == t.rootID {
		return fmt.Errorf("cannot delete root group: %w", common.ErrConflict)
	}
	n, ok := t.groups[id]
	if !ok {
		return fmt.Errorf("group %q: %w", id, common.ErrNotFound)
	}
	if t.occupied(id) {
		return fmt.Errorf("cannot delete group with entries: %w", common.ErrConflict)
	}

	parent := t.groups[n.parent]
	parent.groups = slices.DeleteFunc(parent.groups, func(s string) bool { return s == id })
	t.dropSubtree(id)
	return nil
}

func (t *Tree) occupied(id string) bool {
	n := t.groups[id]
	if len(n.entries) > 0 {
		return true
	}
	for _, child := range n.groups {
		if t.occupied(child) {
			return true
		}
	}
	return false
}

func (t *Tree) dropSubtree(id string) {
	for _, child := range t.groups[id].groups {
		t.dropSubtree(child)
	}
	delete(t.groups, id)
}

// Clone returns a deep copy; mutations of the copy never affect t.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		rootID:      t.rootID,
		groups:      make(map[string]*groupNode, len(t.groups)),
		entries:     make(map[string]*PasswordEntry, len(t.entries)),
		entryParent: make(map[string]string, len(t.entryParent)),
	}
	for id, n := range t.groups {
		c.groups[id] = &groupNode{
			group:   n.group,
			parent:  n.parent,
			groups:  slices.Clone(n.groups),
			entries: slices.Clone(n.entries),
		}
	}
	for id, e := range t.entries {
		ce := e.Clone()
		c.entries[id] = &ce
	}
	for id, p := range t.entryParent {
		c.entryParent[id] = p
	}
	return c
}

// Wipe blanks every secret held by the tree and empties it. The tree must
// not be used afterwards.
func (t *Tree) Wipe() {
	for id, e := range t.entries {
		e.Password = ""
		e.TOTPSecret = ""
		for i := range e.History {
			e.History[i].Password = ""
		}
		delete(t.entries, id)
	}
	clear(t.entryParent)
	clear(t.groups)
}
