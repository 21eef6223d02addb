package bootstrap

import (
	"fmt"
	"io"
	"os"

	"ruleguard/config"
	"ruleguard/storage"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// InitStorage opens the SQLite database and the rule storage on top of it.
// On failure a remediation hint is printed to stderr.
func InitStorage(cfg *config.Config, sugar *zap.SugaredLogger) (*storage.SQLite, *storage.SQLiteRuleStorage, error) {
	sqlite, err := storage.NewSQLite(cfg.Storage.SQLitePath, sugar)
	if err != nil {
		printFatal("SQLite Initialization Failed", ClassifySQLiteError(err, cfg.Storage.SQLitePath))
		return nil, nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	sugar.Infow("SQLite initialized", "path", sqlite.Path)

	rules, err := storage.NewSQLiteRuleStorage(sqlite, cfg.Storage.RuleCacheSize, sugar)
	if err != nil {
		if closeErr := sqlite.Close(); closeErr != nil {
			sugar.Warnw("Failed to close SQLite after rule storage error", "error", closeErr)
		}
		return nil, nil, fmt.Errorf("failed to initialize rule storage: %w", err)
	}

	count, err := rules.GetRuleCount()
	if err != nil {
		sugar.Warnw("Failed to count stored rules", "error", err)
	} else {
		sugar.Infow("Rule storage ready", "rules", count)
	}
	return sqlite, rules, nil
}

var fatalColor = color.New(color.FgRed, color.Bold)

func printFatal(title, msg string) {
	writeFatal(os.Stderr, fatalColor, title, msg)
}

// writeFatal prints a startup failure banner: a colored title, then the hint
func writeFatal(w io.Writer, c *color.Color, title, msg string) {
	rule := "========================================"
	fmt.Fprintf(w, "\n%s\n", rule)
	c.Fprintf(w, "FATAL: %s", title)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "%s\n", msg)
	fmt.Fprintf(w, "%s\n\n", rule)
}
