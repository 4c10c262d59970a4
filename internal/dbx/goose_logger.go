package dbx

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/logging"
)

// gooseLogger routes goose output into the structured logger. Migration
// chatter goes to debug. Fatalf is logged as an error and does not exit;
// goose reports real failures through returned errors.
type gooseLogger struct {
	ctx context.Context
	log logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Debug(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Error(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}
