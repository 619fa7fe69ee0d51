package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApplicationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "application",
		Aliases: []string{"app"},
		Short:   "Application commands",
	}

	cmd.AddCommand(newApplicationConvertCmd())
	cmd.AddCommand(newApplicationStatusCmd())
	return cmd
}

func newApplicationConvertCmd() *cobra.Command {
	var (
		configPath string
		actor      uint
	)

	cmd := &cobra.Command{
		Use:   "convert <lead-id>",
		Short: "Convert a lead into an application and fire application_created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leadID, err := parseID(args[0], "lead")
			if err != nil {
				return err
			}
			_, _, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			app, fired, err := svc.ConvertLead(cmd.Context(), leadID, optionalID(actor))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created application %d for lead %d\n", app.ID, leadID)
			printResult(out, fired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().UintVar(&actor, "user", 0, "acting user id")
	return cmd
}

func newApplicationStatusCmd() *cobra.Command {
	var (
		configPath string
		actor      uint
	)

	cmd := &cobra.Command{
		Use:   "status <application-id> <process> <status>",
		Short: "Update a document, fee, admission or enrollment status",
		Long: `Updates one application sub-process, e.g.

  af application status 3 document verified
  af application status 3 fee paid

Verified documents, paid fees and admission decisions fire their triggers.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "application")
			if err != nil {
				return err
			}
			_, _, _, svc, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			change, fired, err := svc.UpdateApplicationStatus(cmd.Context(), id, args[1], args[2], optionalID(actor))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Application %d %s: %s -> %s (overall: %s)\n", id, change.Process, change.Old, change.New, change.Application.OverallStatus)
			printResult(out, fired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().UintVar(&actor, "user", 0, "acting user id")
	return cmd
}
