package sweeper

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// JobID is the scheduler id of the inactivity sweep.
const JobID = "check_inactive_leads"

const stopTimeout = 30 * time.Second

// RunDaemon schedules the sweep on sched under JobID, starts it and blocks
// until ctx is done. Restarting the daemon on the same scheduler replaces
// the job instead of adding a second one.
func RunDaemon(ctx context.Context, s *Sweeper, sched *Scheduler, spec string, out io.Writer) error {
	if s == nil {
		return fmt.Errorf("sweeper: sweeper is required")
	}
	if sched == nil {
		return fmt.Errorf("sweeper: scheduler is required")
	}
	if out == nil {
		out = io.Discard
	}

	err := sched.Register(JobID, spec, func() {
		res, err := s.Run(ctx)
		if err != nil {
			log.Printf("sweeper: run: %v", err)
			return
		}
		fmt.Fprintf(out, "Sweep: %d inactive, %d follow-ups booked, %d skipped, %d failed, %d overdue fired\n",
			res.Scanned, res.Created, res.Skipped, res.Failed, res.OverdueFired)
	})
	if err != nil {
		return err
	}

	sched.Start()
	fmt.Fprintf(out, "Sweeper started (%s)\n", spec)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Sweeper stopped.\n")
	return nil
}
