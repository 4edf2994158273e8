package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"announcer/internal/scheduler"
	"announcer/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger and run the optional schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close(c.logger)

	e := server.New(a.reconciler, c.cfg.Timeouts.Run, c.logger)

	var sched runner
	if c.cfg.Schedule.Enabled {
		sched = scheduler.NewScheduler(a.reconciler, c.cfg.Schedule.Interval, c.cfg.Timeouts.Run, c.logger)
	}

	c.logger.Info("starting announcer server", "addr", c.cfg.Server.Addr, "dry_run", c.cfg.DryRun)
	if err := runService(ctx, c.cfg.Server.Addr, e, sched); err != nil {
		return err
	}

	c.logger.Info("server exited properly")
	return nil
}

type httpServer interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

type runner interface {
	Start(ctx context.Context) error
}

// runService serves HTTP and runs sched (if any) until ctx is done or the
// server fails. It returns only after both have stopped, so callers may close
// shared clients afterwards.
func runService(ctx context.Context, addr string, srv httpServer, sched runner) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	if sched != nil {
		g.Go(func() error {
			if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
