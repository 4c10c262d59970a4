package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/cryptox"
	"github.com/dmitrijs2005/keevault/internal/syncx"
	"github.com/fatih/color"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// Colors are dropped automatically when stdout is not a terminal.
var (
	promptText = color.New(color.FgCyan).SprintFunc()
	errorText  = color.New(color.FgRed).SprintFunc()
)

// execIface is the command surface the REPL dispatches to. App implements it;
// tests use a recording stub.
type execIface interface {
	isUnlocked() bool
	touch()

	Init(ctx context.Context) error
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	ChangePassphrase(ctx context.Context) error
	Remember(ctx context.Context) error
	Forget(ctx context.Context) error

	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	AddEntry(ctx context.Context) error
	EditEntry(ctx context.Context, args []string) error
	DeleteEntry(ctx context.Context, args []string) error
	TOTP(ctx context.Context, args []string) error
	GenSecret(ctx context.Context, args []string) error
	GenPass(ctx context.Context, args []string) error

	Groups(ctx context.Context) error
	AddGroup(ctx context.Context) error
	EditGroup(ctx context.Context, args []string) error
	DeleteGroup(ctx context.Context, args []string) error

	Export(ctx context.Context, args []string) error
	ImportChrome(ctx context.Context, args []string) error
	ImportEncrypted(ctx context.Context, args []string) error

	SyncConfig(ctx context.Context, args []string) error
	SyncTest(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	CheckUpdate(ctx context.Context, args []string) error
	SyncStatus(ctx context.Context) error

	Prefs(ctx context.Context) error
}

const (
	helpLocked   = "Available commands: init, unlock, prefs, exit"
	helpUnlocked = "Available commands:\n" +
		"  (l)ist [term], show <entry>, add, edit <entry>, delete <entry>, totp [-c code] <entry>\n" +
		"  gensecret [account], genpass [-n length] [-s] [-pin]\n" +
		"  groups, addgroup, editgroup <group>, delgroup <group>\n" +
		"  passwd, remember, forget, export <file>, import-chrome <file>, import <file>\n" +
		"  sync-config [provider], sync-test, upload, download, check, sync-status\n" +
		"  prefs, lock, exit"
)

// runREPL reads commands from reader until EOF or "exit"/"quit".
//
// The first word of a line is the command, the rest are its arguments.
// Entries and groups are referenced by id, id prefix or exact title. Handler
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(promptText(fmt.Sprintf("kv> %s > ", statusFn())))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		a.touch()

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn(helpUnlocked)
			} else {
				printlnFn(helpLocked)
			}

		case "init":
			cmdErr = a.Init(ctx)
		case "unlock":
			cmdErr = a.Unlock(ctx)
		case "lock":
			cmdErr = a.Lock(ctx)
		case "passwd":
			cmdErr = a.ChangePassphrase(ctx)
		case "remember":
			cmdErr = a.Remember(ctx)
		case "forget":
			cmdErr = a.Forget(ctx)

		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "add":
			cmdErr = a.AddEntry(ctx)
		case "edit":
			cmdErr = a.EditEntry(ctx, args)
		case "delete", "rm":
			cmdErr = a.DeleteEntry(ctx, args)
		case "totp":
			cmdErr = a.TOTP(ctx, args)
		case "gensecret":
			cmdErr = a.GenSecret(ctx, args)
		case "genpass":
			cmdErr = a.GenPass(ctx, args)

		case "groups":
			cmdErr = a.Groups(ctx)
		case "addgroup":
			cmdErr = a.AddGroup(ctx)
		case "editgroup":
			cmdErr = a.EditGroup(ctx, args)
		case "delgroup":
			cmdErr = a.DeleteGroup(ctx, args)

		case "export":
			cmdErr = a.Export(ctx, args)
		case "import-chrome":
			cmdErr = a.ImportChrome(ctx, args)
		case "import":
			cmdErr = a.ImportEncrypted(ctx, args)

		case "sync-config":
			cmdErr = a.SyncConfig(ctx, args)
		case "sync-test":
			cmdErr = a.SyncTest(ctx, args)
		case "upload":
			cmdErr = a.Upload(ctx, args)
		case "download":
			cmdErr = a.Download(ctx, args)
		case "check":
			cmdErr = a.CheckUpdate(ctx, args)
		case "sync-status":
			cmdErr = a.SyncStatus(ctx)

		case "prefs":
			cmdErr = a.Prefs(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(errorText(describeError(cmdErr)))
		}
	}
}

// describeError turns a handler error into a message for the user.
func describeError(err error) string {
	switch {
	case errors.Is(err, common.ErrLocked):
		return "Vault is locked, run 'unlock' first"
	case errors.Is(err, syncx.ErrRemoteNotFound):
		return "Nothing has been uploaded yet"
	case errors.Is(err, cryptox.ErrAuthFailed), errors.Is(err, common.ErrUnauthenticated):
		return "Wrong passphrase"
	case errors.Is(err, errUsage):
		return err.Error()
	default:
		return "Error: " + err.Error()
	}
}
