package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"
)

// OpenBadger opens the embedded KV store described by cfg. Badger's own
// log output is routed through log at debug/info/warn/error.
func OpenBadger(cfg BadgerConfig, log *slog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{log: log.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", cfg.Dir, err)
	}
	return db, nil
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(badgerMsg(format, args))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(badgerMsg(format, args))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(badgerMsg(format, args))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(badgerMsg(format, args))
}

func badgerMsg(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
