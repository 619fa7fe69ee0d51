package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/admitflow/internal/dashboard"
	"github.com/zulandar/admitflow/internal/sweeper"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noSweeper  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and the scheduled sweeper",
		Long:  "Starts the dashboard JSON API and schedules the inactivity sweeper. Stops on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, noSweeper)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&noSweeper, "no-sweeper", false, "do not schedule the sweeper")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, noSweeper bool) error {
	cfg, gormDB, engine, svc, err := services(cmd, configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Dashboard.Port
	}
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sw := sweeper.New(gormDB, cfg.Sweeper, svc)
	sw.Out = out

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dashboard.Start(ctx, dashboard.StartOpts{DB: gormDB, Engine: engine, Sweeper: sw, Port: port, Out: out})
	})
	if !noSweeper {
		g.Go(func() error {
			return sweeper.RunDaemon(ctx, sw, sweeper.NewScheduler(), cfg.Sweeper.Schedule, out)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil && err == nil {
		fmt.Fprintln(out, "Shut down.")
	}
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
