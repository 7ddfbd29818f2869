package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/hotel-ops/internal/api"
	"github.com/nhle/hotel-ops/internal/draft"
	"github.com/nhle/hotel-ops/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	var (
		addr          string
		withScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the notification dispatcher",
		Long: `Run the HTTP API.

Examples:
  hotelops serve
  hotelops serve --addr :9090 --scheduler=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(*configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer rt.close()

			if addr == "" {
				addr = rt.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			drafts, err := draft.New(ctx, rt.cfg.Drafts)
			if err != nil {
				return err
			}
			if c, ok := drafts.(interface{ Close() error }); ok {
				defer c.Close()
			}

			var sched *scheduler.Scheduler
			if withScheduler {
				sched = scheduler.New(rt.store, rt.engine, rt.notifier, rt.logger, rt.cfg.Scheduler)
				sched.Start()
				defer sched.Stop()
			}

			srv := api.New(api.Deps{
				Store:       rt.store,
				Coordinator: rt.coordinator(),
				Merger:      rt.merger(),
				Reminders:   rt.reminders(),
				Drafts:      drafts,
				Logger:      rt.logger,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			rt.logger.Infow("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr from config)")
	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "also run the reminder scheduler")
	return cmd
}

func schedulerCmd(configPath *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Fire due reminders without serving the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(*configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer rt.close()

			sched := scheduler.New(rt.store, rt.engine, rt.notifier, rt.logger, rt.cfg.Scheduler)

			if once {
				res := sched.Tick(cmd.Context())
				rt.logger.Infow("Scheduler pass complete",
					"fired", res.Fired,
					"rescheduled", res.Rescheduled,
					"finished", res.Finished,
					"errors", res.Errors,
				)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched.Start()
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}
