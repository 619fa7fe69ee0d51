// Package sweeper books follow-up work for leads that have gone quiet and
// fires task_overdue for tasks past their due date.
package sweeper

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zulandar/admitflow/internal/automation"
	"github.com/zulandar/admitflow/internal/config"
	"github.com/zulandar/admitflow/internal/lead"
	"github.com/zulandar/admitflow/internal/models"
	"github.com/zulandar/admitflow/internal/task"
	"gorm.io/gorm"
)

const (
	DefaultThreshold   = 48 * time.Hour
	DefaultFollowUpDue = 24 * time.Hour
)

// OverdueFirer fires task_overdue for a task.
type OverdueFirer interface {
	OnTaskOverdue(ctx context.Context, t *models.Task) *automation.Result
}

// Sweeper scans for inactive leads. The zero value of every field except DB
// is usable.
type Sweeper struct {
	DB          *gorm.DB
	Threshold   time.Duration // inactivity cutoff; 48h when zero
	FollowUpDue time.Duration // follow-up due offset; 24h when zero
	Overdue     OverdueFirer  // nil disables task_overdue firing
	Now         func() time.Time
	Out         io.Writer
}

// Result summarizes one sweep.
type Result struct {
	Scanned      int // inactive leads found
	Created      int // follow-up tasks booked
	Skipped      int // leads already covered or no longer inactive
	Failed       int // leads whose processing errored
	OverdueFired int // tasks that fired task_overdue
}

// New builds a Sweeper from config.
func New(db *gorm.DB, cfg config.SweeperConfig, overdue OverdueFirer) *Sweeper {
	s := &Sweeper{
		DB:          db,
		Threshold:   cfg.InactivityThreshold,
		FollowUpDue: cfg.FollowUpDue,
	}
	if overdue != nil && cfg.OverdueEnabled() {
		s.Overdue = overdue
	}
	return s
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sweeper) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return io.Discard
}

// Run performs one sweep. Per-lead and per-task failures are logged and
// counted; only a failure to query candidates is returned.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var res Result
	if s.DB == nil {
		return res, fmt.Errorf("sweeper: db is required")
	}
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	dueIn := s.FollowUpDue
	if dueIn <= 0 {
		dueIn = DefaultFollowUpDue
	}

	now := s.now()
	cutoff := now.Add(-threshold)
	leads, err := lead.Inactive(s.DB, cutoff)
	if err != nil {
		return res, err
	}
	res.Scanned = len(leads)

	for _, l := range leads {
		created, err := s.sweepLead(l.ID, cutoff, now, threshold, dueIn)
		switch {
		case err != nil:
			res.Failed++
			log.Printf("sweeper: lead %d: %v", l.ID, err)
		case created:
			res.Created++
			fmt.Fprintf(s.out(), "Booked follow-up for lead %d (%s)\n", l.ID, l.FullName())
		default:
			res.Skipped++
		}
	}

	if s.Overdue != nil {
		fired, err := s.fireOverdue(ctx, now)
		if err != nil {
			log.Printf("sweeper: overdue tasks: %v", err)
		}
		res.OverdueFired = fired
	}
	return res, nil
}

// sweepLead books a follow-up for one lead. The pending check and the
// insert run under the lead's row lock so concurrent sweeps book at most
// one task.
func (s *Sweeper) sweepLead(leadID uint, cutoff, now time.Time, threshold, dueIn time.Duration) (bool, error) {
	var created bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		l, err := lead.Lock(tx, leadID)
		if err != nil {
			return err
		}
		if l.Status != models.LeadActive || !l.LastActivityAt.Before(cutoff) {
			return nil
		}
		pending, err := task.HasPending(tx, leadID, task.TypeFollowUp)
		if err != nil {
			return err
		}
		if pending {
			return nil
		}
		if _, err := task.CreateFollowUp(tx, l, now, threshold, dueIn); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// fireOverdue stamps and fires each overdue task once. A task another
// sweeper stamped first is left alone.
func (s *Sweeper) fireOverdue(ctx context.Context, now time.Time) (int, error) {
	tasks, err := task.Overdue(s.DB, now)
	if err != nil {
		return 0, err
	}
	fired := 0
	for i := range tasks {
		t := &tasks[i]
		won, err := task.MarkOverdueFired(s.DB, t.ID, now)
		if err != nil {
			log.Printf("sweeper: task %d: %v", t.ID, err)
			continue
		}
		if !won {
			continue
		}
		s.Overdue.OnTaskOverdue(ctx, t)
		fired++
		fmt.Fprintf(s.out(), "Task %d overdue (%s)\n", t.ID, t.Title)
	}
	return fired, nil
}
