package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/admitflow/internal/models"
	"github.com/zulandar/admitflow/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskCompleteCmd())
	cmd.AddCommand(newTaskReopenCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       task.CreateOpts
		leadID     uint
		assignee   uint
		actor      uint
		dueIn      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task and fire task_created",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			opts.LeadID = optionalID(leadID)
			opts.AssignedTo = optionalID(assignee)
			opts.CreatedBy = optionalID(actor)
			if dueIn > 0 {
				due := time.Now().Add(dueIn)
				opts.DueDate = &due
			}
			t, fired, err := svc.CreateTask(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created task %d %q (%s)\n", t.ID, t.Title, t.TaskType)
			printResult(out, fired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "task description")
	cmd.Flags().StringVar(&opts.TaskType, "type", task.TypeFollowUp, "task type")
	cmd.Flags().StringVar(&opts.Priority, "priority", task.PriorityMedium, "priority")
	cmd.Flags().UintVar(&leadID, "lead", 0, "lead id")
	cmd.Flags().UintVar(&assignee, "assign", 0, "assignee user id")
	cmd.Flags().UintVar(&actor, "user", 0, "acting user id")
	cmd.Flags().DurationVar(&dueIn, "due-in", task.DefaultDueIn, "due offset from now (0 for none)")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		leadID     uint
		assignee   uint
		status     string
		taskType   string
		overdue    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, soonest due first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			filters := task.ListFilters{LeadID: optionalID(leadID), AssignedTo: optionalID(assignee), Status: status, TaskType: taskType}
			if overdue {
				now := time.Now()
				filters.DueBefore = &now
				if filters.Status == "" {
					filters.Status = models.TaskPending
				}
			}
			tasks, err := task.List(gormDB, filters)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTYPE\tSTATUS\tPRIORITY\tLEAD\tASSIGNED\tDUE")
			for _, t := range tasks {
				due := "-"
				if t.DueDate != nil {
					due = t.DueDate.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.TaskType, t.Status, t.Priority, idOrDash(t.LeadID), idOrDash(t.AssignedTo), due)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().UintVar(&leadID, "lead", 0, "filter by lead id")
	cmd.Flags().UintVar(&assignee, "assigned", 0, "filter by assignee")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&taskType, "type", "", "filter by task type")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "only tasks past their due date")
	return cmd
}

func newTaskCompleteCmd() *cobra.Command {
	var (
		configPath string
		actor      uint
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a task and fire task_completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			_, _, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			t, fired, err := svc.CompleteTask(cmd.Context(), id, optionalID(actor), notes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Completed task %d %q\n", t.ID, t.Title)
			printResult(out, fired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().UintVar(&actor, "user", 0, "acting user id")
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes")
	return cmd
}

func newTaskReopenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reopen <id>",
		Short: "Move a completed or cancelled task back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := task.Reopen(gormDB, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reopened task %d %q\n", t.ID, t.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	return cmd
}
