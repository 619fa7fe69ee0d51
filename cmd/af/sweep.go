package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/admitflow/internal/sweeper"
)

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		threshold  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the inactivity sweeper once",
		Long:  "Books a follow-up task for every active lead idle longer than the threshold, then fires task_overdue for overdue tasks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			s := sweeper.New(gormDB, cfg.Sweeper, svc)
			if threshold > 0 {
				s.Threshold = threshold
			}
			s.Out = cmd.OutOrStdout()
			res, err := s.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sweep: %d inactive, %d follow-ups booked, %d skipped, %d failed, %d overdue fired\n",
				res.Scanned, res.Created, res.Skipped, res.Failed, res.OverdueFired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().DurationVar(&threshold, "threshold", 0, "override the configured inactivity threshold")
	return cmd
}
