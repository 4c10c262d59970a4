package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/keevault/internal/vault"
)

func (a *App) Groups(ctx context.Context) error {
	tree, err := a.vault.Tree(ctx)
	if err != nil {
		return err
	}
	defer tree.Wipe()

	if tree.CountGroups() == 0 {
		a.printf("No groups\n")
		return nil
	}
	tree.Walk(func(g vault.PasswordGroup, depth int, entries []vault.PasswordEntry) {
		if depth == 0 {
			return
		}
		a.printf("%*s%s %s [%s] %d entries\n", 2*(depth-1), "", g.Icon, g.Name, shortID(g.ID), len(entries))
	})
	return nil
}

func (a *App) AddGroup(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Name", a.out)
	if err != nil {
		return err
	}
	icon, err := GetWithDefault(a.reader, "Icon", vault.DefaultGroupIcon, a.out)
	if err != nil {
		return err
	}
	parentAnswer, err := GetSimpleText(a.reader, "Parent group (empty for root)", a.out)
	if err != nil {
		return err
	}
	parent, err := a.groupRef(ctx, parentAnswer)
	if err != nil {
		return err
	}

	g, err := a.vault.AddGroup(ctx, vault.PasswordGroup{Name: name, Icon: icon, ParentID: parent})
	if err != nil {
		return err
	}
	a.printf("Group added [%s]\n", shortID(g.ID))
	return nil
}

// EditGroup changes name, icon, color and sort order. Groups keep their
// parent.
func (a *App) EditGroup(ctx context.Context, args []string) error {
	ref, err := oneArg(args, "editgroup <group>")
	if err != nil {
		return err
	}
	g, err := a.findGroup(ctx, ref)
	if err != nil {
		return err
	}

	if g.Name, err = GetWithDefault(a.reader, "Name", g.Name, a.out); err != nil {
		return err
	}
	if g.Icon, err = GetWithDefault(a.reader, "Icon", g.Icon, a.out); err != nil {
		return err
	}
	if g.Color, err = GetWithDefault(a.reader, "Color", g.Color, a.out); err != nil {
		return err
	}
	order, err := GetWithDefault(a.reader, "Sort order", strconv.FormatInt(g.SortOrder, 10), a.out)
	if err != nil {
		return err
	}
	if g.SortOrder, err = strconv.ParseInt(order, 10, 64); err != nil {
		return fmt.Errorf("sort order %q is not a number", order)
	}

	if err := a.vault.UpdateGroup(ctx, g); err != nil {
		return err
	}
	a.printf("Group updated\n")
	return nil
}

// DeleteGroup removes a group and its empty subgroups. Groups holding
// entries are refused by the vault.
func (a *App) DeleteGroup(ctx context.Context, args []string) error {
	ref, err := oneArg(args, "delgroup <group>")
	if err != nil {
		return err
	}
	g, err := a.findGroup(ctx, ref)
	if err != nil {
		return err
	}
	ok, err := GetConfirm(a.reader, fmt.Sprintf("Delete group %q?", g.Name), a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.vault.DeleteGroup(ctx, g.ID); err != nil {
		return err
	}
	a.printf("Group deleted\n")
	return nil
}
