package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Serve is the entrypoint of "haven serve". It returns an error instead
// of exiting so deferred cleanup runs.
func Serve(cfg Config) error {
	log := NewLogger(cfg.Log, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("app.init.fail", "err", err)
		return err
	}

	return a.Run(ctx)
}
