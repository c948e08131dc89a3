// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package main

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cr0nhq/cr0n/internal/store"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// expirer deletes rows whose expiry has passed.
type expirer interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// sweeper removes expired sessions and tokens.
type sweeper struct {
	logger  *slog.Logger
	targets map[string]expirer
}

func newSweeper(logger *slog.Logger, targets map[string]expirer) *sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &sweeper{logger: logger, targets: targets}
}

// run sweeps every target once. A failing target does not stop the others;
// the first error is returned.
func (s *sweeper) run(ctx context.Context) (map[string]int64, error) {
	names := make([]string, 0, len(s.targets))
	for name := range s.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	removed := make(map[string]int64, len(names))
	var firstErr error
	for _, name := range names {
		n, err := s.targets[name].SweepExpired(ctx)
		if err != nil {
			errutil.LogError(s.logger, "sweep failed", err)
			if firstErr == nil {
				firstErr = oops.Code("SWEEP_FAILED").With("target", name).Wrap(err)
			}
			continue
		}
		removed[name] = n
		if n > 0 {
			s.logger.InfoContext(ctx, "swept expired rows", "target", name, "removed", n)
		}
	}
	return removed, firstErr
}

// loop sweeps every interval until ctx is cancelled.
func (s *sweeper) loop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			//nolint:errcheck // failures are logged per target
			s.run(ctx)
		}
	}
}

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions and tokens",
		Long: `Delete expired sessions, password reset tokens and email verification
tokens once, then exit. serve also sweeps periodically (auth.sweep_every).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			pool, err := store.Open(ctx, cfg.Database.URL, store.PoolConfig{MaxConns: 2})
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			defer pool.Close()

			core, err := newAuthCore(cfg, pool)
			if err != nil {
				return err
			}
			return runSweep(ctx, cmd, newSweeper(slog.Default(), core.sweepTargets()))
		},
	}
}

func runSweep(ctx context.Context, cmd *cobra.Command, s *sweeper) error {
	removed, err := s.run(ctx)
	names := make([]string, 0, len(removed))
	for name := range removed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd.Printf("%s: %d removed\n", name, removed[name])
	}
	return err
}
