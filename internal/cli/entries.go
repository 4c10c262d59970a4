package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/otp"
	"github.com/dmitrijs2005/keevault/internal/passgen"
	"github.com/dmitrijs2005/keevault/internal/vault"
)

const otpIssuer = "keevault"

// List prints the group tree with its entries. With arguments it prints only
// entries whose title, username, url or tags contain the joined term.
func (a *App) List(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return a.search(ctx, strings.ToLower(strings.Join(args, " ")))
	}

	tree, err := a.vault.Tree(ctx)
	if err != nil {
		return err
	}
	defer tree.Wipe()

	if tree.CountEntries() == 0 && tree.CountGroups() == 0 {
		a.printf("Vault is empty\n")
		return nil
	}
	tree.Walk(func(g vault.PasswordGroup, depth int, entries []vault.PasswordEntry) {
		indent := strings.Repeat("  ", depth)
		if depth > 0 {
			a.printf("%s%s %s [%s]\n", indent, g.Icon, g.Name, shortID(g.ID))
		}
		for _, e := range entries {
			a.printEntryLine(indent, e)
		}
	})
	return nil
}

func (a *App) search(ctx context.Context, term string) error {
	entries, err := a.vault.Entries(ctx)
	if err != nil {
		return err
	}
	found := 0
	for _, e := range entries {
		fields := append([]string{e.Title, e.Username}, e.URLs...)
		fields = append(fields, e.Tags...)
		if slices.ContainsFunc(fields, func(f string) bool {
			return strings.Contains(strings.ToLower(f), term)
		}) {
			a.printEntryLine("", e)
			found++
		}
	}
	if found == 0 {
		a.printf("No matching entries\n")
	}
	return nil
}

func (a *App) printEntryLine(indent string, e vault.PasswordEntry) {
	line := fmt.Sprintf("%s- [%s] %s", indent, shortID(e.ID), e.Title)
	if e.Username != "" {
		line += " (" + e.Username + ")"
	}
	if u := e.URL(); u != "" {
		line += " " + u
	}
	a.printf("%s\n", line)
}

// Show prints one entry. The password is masked unless -p is given.
func (a *App) Show(ctx context.Context, args []string) error {
	reveal := false
	if len(args) > 0 && args[0] == "-p" {
		reveal, args = true, args[1:]
	}
	ref, err := oneArg(args, "show [-p] <entry>")
	if err != nil {
		return err
	}
	e, err := a.findEntry(ctx, ref)
	if err != nil {
		return err
	}

	password := strings.Repeat("*", 8)
	if reveal || e.Password == "" {
		password = e.Password
	}
	a.printf("ID:       %s\n", e.ID)
	a.printf("Title:    %s\n", e.Title)
	a.printf("Username: %s\n", e.Username)
	a.printf("Password: %s\n", password)
	a.printf("Group:    %s\n", a.groupName(ctx, e.GroupID))
	if len(e.URLs) > 0 {
		a.printf("URLs:     %s\n", strings.Join(e.URLs, ", "))
	}
	if len(e.Tags) > 0 {
		a.printf("Tags:     %s\n", strings.Join(e.Tags, ", "))
	}
	if e.Notes != "" {
		a.printf("Notes:\n%s\n", e.Notes)
	}
	if e.TOTPSecret != "" {
		if code, err := a.vault.GenerateTOTP(ctx, e.ID); err == nil {
			a.printf("TOTP:     %s (%ds)\n", code, otp.Remaining(a.now()))
		}
	}
	a.printf("Created:  %s\n", formatMillis(e.CreatedAt))
	a.printf("Updated:  %s\n", formatMillis(e.UpdatedAt))
	if n := len(e.History); n > 0 {
		a.printf("History:  %d previous version(s)\n", n)
		if reveal {
			for _, h := range e.History {
				a.printf("  %s  %s / %s\n", formatMillis(h.Timestamp), h.Username, h.Password)
			}
		}
	}
	return nil
}

// readTOTPSecret validates a secret answer. "-" clears it.
func readTOTPSecret(answer string) (string, error) {
	if answer == "" || answer == "-" {
		return "", nil
	}
	return otp.Normalize(answer)
}

// AddEntry prompts for a new entry. An empty password is replaced by a
// generated one.
func (a *App) AddEntry(ctx context.Context) error {
	if !a.vault.IsUnlocked() {
		return common.ErrLocked
	}

	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	if title == "" {
		return errors.New("title must not be empty")
	}
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	pass, err := GetPassword(a.out, "Password (empty to generate)")
	if err != nil {
		return err
	}
	password := string(pass)
	wipe(pass)
	generated := password == ""
	if generated {
		if password, err = generatePassword(); err != nil {
			return err
		}
	}
	urls, err := GetSimpleText(a.reader, "URLs (comma separated)", a.out)
	if err != nil {
		return err
	}
	tags, err := GetSimpleText(a.reader, "Tags (comma separated)", a.out)
	if err != nil {
		return err
	}
	groupAnswer, err := GetSimpleText(a.reader, "Group (empty for root)", a.out)
	if err != nil {
		return err
	}
	groupID, err := a.groupRef(ctx, groupAnswer)
	if err != nil {
		return err
	}
	secretAnswer, err := GetSimpleText(a.reader, "TOTP secret (optional)", a.out)
	if err != nil {
		return err
	}
	secret, err := readTOTPSecret(secretAnswer)
	if err != nil {
		return err
	}
	notes, err := GetMultiline(a.reader, "Notes", a.out)
	if err != nil {
		return err
	}

	e, err := a.vault.AddEntry(ctx, vault.PasswordEntry{
		Title:      title,
		Username:   username,
		Password:   password,
		URLs:       splitList(urls),
		Tags:       splitList(tags),
		GroupID:    groupID,
		TOTPSecret: secret,
		Notes:      notes,
	})
	if err != nil {
		return err
	}
	if generated {
		a.printf("Generated password: %s\n", password)
	}
	a.printf("Entry added [%s]\n", shortID(e.ID))
	return nil
}

// EditEntry prompts for every field with the current value as default.
func (a *App) EditEntry(ctx context.Context, args []string) error {
	ref, err := oneArg(args, "edit <entry>")
	if err != nil {
		return err
	}
	e, err := a.findEntry(ctx, ref)
	if err != nil {
		return err
	}

	if e.Title, err = GetWithDefault(a.reader, "Title", e.Title, a.out); err != nil {
		return err
	}
	if e.Username, err = GetWithDefault(a.reader, "Username", e.Username, a.out); err != nil {
		return err
	}
	pass, err := GetPassword(a.out, "New password (empty to keep)")
	if err != nil {
		return err
	}
	if len(pass) > 0 {
		e.Password = string(pass)
	}
	wipe(pass)

	urls, err := GetWithDefault(a.reader, "URLs", strings.Join(e.URLs, ", "), a.out)
	if err != nil {
		return err
	}
	e.URLs = splitList(urls)
	tags, err := GetWithDefault(a.reader, "Tags", strings.Join(e.Tags, ", "), a.out)
	if err != nil {
		return err
	}
	e.Tags = splitList(tags)

	groupAnswer, err := GetWithDefault(a.reader, "Group", a.groupName(ctx, e.GroupID), a.out)
	if err != nil {
		return err
	}
	if e.GroupID, err = a.groupRef(ctx, groupAnswer); err != nil {
		return err
	}

	secretAnswer, err := GetWithDefault(a.reader, "TOTP secret ('-' to clear)", e.TOTPSecret, a.out)
	if err != nil {
		return err
	}
	if e.TOTPSecret, err = readTOTPSecret(secretAnswer); err != nil {
		return err
	}

	notes, err := GetMultiline(a.reader, "Notes (empty to keep)", a.out)
	if err != nil {
		return err
	}
	if notes != "" {
		e.Notes = notes
	}

	if _, err := a.vault.UpdateEntry(ctx, e); err != nil {
		return err
	}
	a.printf("Entry updated\n")
	return nil
}

func (a *App) DeleteEntry(ctx context.Context, args []string) error {
	ref, err := oneArg(args, "delete <entry>")
	if err != nil {
		return err
	}
	e, err := a.findEntry(ctx, ref)
	if err != nil {
		return err
	}
	ok, err := GetConfirm(a.reader, fmt.Sprintf("Delete %q?", e.Title), a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.vault.DeleteEntry(ctx, e.ID); err != nil {
		return err
	}
	a.printf("Entry deleted\n")
	return nil
}

// TOTP prints the current one-time code of an entry.
func (a *App) TOTP(ctx context.Context, args []string) error {
	var code string
	if len(args) > 1 && args[0] == "-c" {
		code, args = args[1], args[2:]
	}
	ref, err := oneArg(args, "totp [-c code] <entry>")
	if err != nil {
		return err
	}
	e, err := a.findEntry(ctx, ref)
	if err != nil {
		return err
	}
	if e.TOTPSecret == "" {
		a.printf("%q has no TOTP secret\n", e.Title)
		return nil
	}
	if code != "" {
		ok, err := otp.Validate(code, e.TOTPSecret, a.now())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("code %s does not match %q: %w", code, e.Title, common.ErrUnauthenticated)
		}
		a.printf("Code matches\n")
		return nil
	}
	code, err = a.vault.GenerateTOTP(ctx, e.ID)
	if err != nil {
		return err
	}
	a.printf("%s (valid for %ds)\n", code, otp.Remaining(a.now()))
	return nil
}

// GenSecret creates a TOTP secret and prints its provisioning URI. Given an
// entry, the secret is stored on it.
func (a *App) GenSecret(ctx context.Context, args []string) error {
	secret, err := otp.GenerateSecret()
	if err != nil {
		return err
	}
	account := "keevault"
	if len(args) > 0 {
		e, err := a.findEntry(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		e.TOTPSecret = secret
		if _, err := a.vault.UpdateEntry(ctx, e); err != nil {
			return err
		}
		account = e.Title
		if e.Username != "" {
			account = e.Username
		}
	}
	a.printf("Secret: %s\n", secret)
	a.printf("URI:    %s\n", otp.URI(secret, account, otpIssuer))
	return nil
}

// GenPass prints a random password and its strength without touching the
// vault.
func (a *App) GenPass(_ context.Context, args []string) error {
	const form = "genpass [-n length] [-s] [-pin]"
	opts := passgen.DefaultOptions()
	pin := false

	fs := flag.NewFlagSet("genpass", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&opts.Length, "n", opts.Length, "length")
	fs.BoolVar(&opts.Symbols, "s", false, "include symbols")
	fs.BoolVar(&pin, "pin", false, "digits only")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return usage(form)
	}
	if pin {
		opts = passgen.Options{Length: opts.Length, Digits: true}
	}

	pw, err := passgen.Generate(opts)
	if err != nil {
		return err
	}
	a.printf("%s\n", pw)
	a.printf("Strength: %s\n", passgen.Rate(pw))
	return nil
}
