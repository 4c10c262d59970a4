package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/cryptox"
	"github.com/dmitrijs2005/keevault/internal/passgen"
	"github.com/dmitrijs2005/keevault/internal/vault"
)

func wipe(b []byte) {
	cryptox.Wipe(b)
}

func generatePassword() (string, error) {
	return passgen.Generate(passgen.DefaultOptions())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format(time.DateTime)
}

// findEntry resolves ref as an exact id, a unique id prefix or a unique
// case-insensitive title.
func (a *App) findEntry(ctx context.Context, ref string) (vault.PasswordEntry, error) {
	entries, err := a.vault.Entries(ctx)
	if err != nil {
		return vault.PasswordEntry{}, err
	}
	i, err := resolve(ref, len(entries), func(i int) (string, string) {
		return entries[i].ID, entries[i].Title
	})
	if err != nil {
		return vault.PasswordEntry{}, fmt.Errorf("entry %q: %w", ref, err)
	}
	return entries[i], nil
}

// findGroup resolves ref like findEntry, matching group names.
func (a *App) findGroup(ctx context.Context, ref string) (vault.PasswordGroup, error) {
	groups, err := a.vault.Groups(ctx)
	if err != nil {
		return vault.PasswordGroup{}, err
	}
	i, err := resolve(ref, len(groups), func(i int) (string, string) {
		return groups[i].ID, groups[i].Name
	})
	if err != nil {
		return vault.PasswordGroup{}, fmt.Errorf("group %q: %w", ref, err)
	}
	return groups[i], nil
}

func resolve(ref string, n int, item func(i int) (id, name string)) (int, error) {
	var byPrefix, byName []int
	for i := 0; i < n; i++ {
		id, name := item(i)
		if id == ref {
			return i, nil
		}
		if strings.HasPrefix(id, ref) {
			byPrefix = append(byPrefix, i)
		}
		if strings.EqualFold(name, ref) {
			byName = append(byName, i)
		}
	}
	for _, m := range [][]int{byPrefix, byName} {
		switch len(m) {
		case 0:
		case 1:
			return m[0], nil
		default:
			return 0, fmt.Errorf("ambiguous, %d matches: %w", len(m), common.ErrConflict)
		}
	}
	return 0, common.ErrNotFound
}

// groupRef resolves an optional group answer; empty or "/" is the root.
func (a *App) groupRef(ctx context.Context, ref string) (string, error) {
	if ref == "" || ref == "/" {
		return "", nil
	}
	g, err := a.findGroup(ctx, ref)
	if err != nil {
		return "", err
	}
	return g.ID, nil
}

func (a *App) groupName(ctx context.Context, id string) string {
	if id == "" {
		return "/"
	}
	g, err := a.findGroup(ctx, id)
	if err != nil {
		return id
	}
	return g.Name
}

func oneArg(args []string, form string) (string, error) {
	if len(args) == 0 {
		return "", usage(form)
	}
	return strings.Join(args, " "), nil
}
