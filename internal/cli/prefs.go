package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Prefs edits the theme, language and auto-lock preferences and saves them
// to the config file.
func (a *App) Prefs(ctx context.Context) error {
	c := a.config
	theme, err := GetWithDefault(a.reader, "Theme", c.Theme, a.out)
	if err != nil {
		return err
	}
	language, err := GetWithDefault(a.reader, "Language", c.Language, a.out)
	if err != nil {
		return err
	}
	minutes := strconv.FormatInt(int64(c.AutoLockTimeout/time.Minute), 10)
	answer, err := GetWithDefault(a.reader, "Auto-lock after minutes (0 = never)", minutes, a.out)
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(answer, 10, 32)
	if err != nil {
		return fmt.Errorf("auto-lock %q is not a number of minutes", answer)
	}

	c.Theme, c.Language = theme, language
	c.AutoLockTimeout = time.Duration(n) * time.Minute
	if err := c.Save(); err != nil {
		return err
	}
	a.ensureWatcher(ctx)
	a.printf("Preferences saved to %s\n", c.ConfigPath())
	return nil
}
