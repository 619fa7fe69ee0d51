package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/admitflow/internal/activity"
	"github.com/zulandar/admitflow/internal/lead"
)

func newLeadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Lead management commands",
	}

	cmd.AddCommand(newLeadCreateCmd())
	cmd.AddCommand(newLeadListCmd())
	cmd.AddCommand(newLeadShowCmd())
	cmd.AddCommand(newLeadStageCmd())
	cmd.AddCommand(newLeadAssignCmd())
	return cmd
}

func newLeadCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       lead.CreateOpts
		sourceID   uint
		assignee   uint
		actor      uint
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead (or record a re-inquiry) and fire automation",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			opts.SourceID = optionalID(sourceID)
			opts.AssignedTo = optionalID(assignee)
			opts.CreatedBy = optionalID(actor)
			res, fired, err := svc.CreateLead(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.ReInquiry {
				fmt.Fprintf(out, "Re-inquiry for lead %d %s (count: %d)\n", res.Lead.ID, res.Lead.FullName(), res.Lead.ReInquiryCount)
			} else {
				fmt.Fprintf(out, "Created lead %d %s\n", res.Lead.ID, res.Lead.FullName())
			}
			printResult(out, fired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "first name (required)")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "last name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email (required)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().UintVar(&sourceID, "source", 0, "lead source id")
	cmd.Flags().UintVar(&assignee, "assign", 0, "assignee user id")
	cmd.Flags().UintVar(&actor, "user", 0, "acting user id")
	return cmd
}

func newLeadListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		stageID    uint
		assignee   uint
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			leads, err := lead.List(gormDB, lead.ListFilters{Status: status, StageID: optionalID(stageID), AssignedTo: optionalID(assignee), Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(leads) == 0 {
				fmt.Fprintln(out, "No leads found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTATUS\tSTAGE\tASSIGNED\tLAST ACTIVITY")
			for _, l := range leads {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.FullName(), l.Email, l.Status, idOrDash(l.StageID), idOrDash(l.AssignedTo), l.LastActivityAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().UintVar(&stageID, "stage", 0, "filter by stage id")
	cmd.Flags().UintVar(&assignee, "assigned", 0, "filter by assignee")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	return cmd
}

func idOrDash(id *uint) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

func newLeadShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a lead with its recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "lead")
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			l, err := lead.Get(gormDB, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Lead %d: %s <%s>\n", l.ID, l.FullName(), l.Email)
			fmt.Fprintf(out, "Status:        %s\n", l.Status)
			if l.Stage != nil {
				fmt.Fprintf(out, "Stage:         %s\n", l.Stage.Name)
			}
			fmt.Fprintf(out, "Assigned to:   %s\n", idOrDash(l.AssignedTo))
			fmt.Fprintf(out, "Re-inquiries:  %d\n", l.ReInquiryCount)
			fmt.Fprintf(out, "Last activity: %s\n", l.LastActivityAt.Format("2006-01-02 15:04:05"))
			if l.Application != nil {
				fmt.Fprintf(out, "Application:   %d (%s)\n", l.Application.ID, l.Application.OverallStatus)
			}

			acts, err := activity.ForLead(gormDB, l.ID, 10)
			if err != nil {
				return err
			}
			if len(acts) > 0 {
				fmt.Fprintln(out, "\nRecent activity:")
				for _, a := range acts {
					fmt.Fprintf(out, "  %s  %-16s %s\n", a.CreatedAt.Format("2006-01-02 15:04"), a.Type, a.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	return cmd
}

func newLeadStageCmd() *cobra.Command {
	var (
		configPath string
		actor      uint
	)

	cmd := &cobra.Command{
		Use:   "stage <lead-id> <stage-id>",
		Short: "Move a lead to another stage and fire stage_changed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			leadID, err := parseID(args[0], "lead")
			if err != nil {
				return err
			}
			stageID, err := parseID(args[1], "stage")
			if err != nil {
				return err
			}
			_, _, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			change, fired, err := svc.ChangeStage(cmd.Context(), leadID, stageID, optionalID(actor))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !change.Changed() {
				fmt.Fprintf(out, "Lead %d is already in stage %s\n", leadID, change.NewStage.Name)
				return nil
			}
			fmt.Fprintf(out, "Lead %d: %s\n", leadID, change.Activity.Description)
			printResult(out, fired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().UintVar(&actor, "user", 0, "acting user id")
	return cmd
}

func newLeadAssignCmd() *cobra.Command {
	var (
		configPath string
		actor      uint
	)

	cmd := &cobra.Command{
		Use:   "assign <lead-id> <user-id>",
		Short: "Assign a lead to a user (0 unassigns)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			leadID, err := parseID(args[0], "lead")
			if err != nil {
				return err
			}
			var assignee *uint
			if args[1] != "0" {
				uid, err := parseID(args[1], "user")
				if err != nil {
					return err
				}
				assignee = &uid
			}
			_, _, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			fired, err := svc.AssignLead(cmd.Context(), leadID, assignee, optionalID(actor))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Lead %d assigned to %s\n", leadID, idOrDash(assignee))
			printResult(out, fired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().UintVar(&actor, "user", 0, "acting user id")
	return cmd
}
