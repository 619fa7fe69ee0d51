package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/admitflow/internal/automation"
	"github.com/zulandar/admitflow/internal/config"
	"github.com/zulandar/admitflow/internal/models"
	"gopkg.in/yaml.v3"
)

func newWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Workflow automation rules",
	}

	cmd.AddCommand(newWorkflowListCmd())
	cmd.AddCommand(newWorkflowShowCmd())
	cmd.AddCommand(newWorkflowApplyCmd())
	cmd.AddCommand(newWorkflowDeleteCmd())
	cmd.AddCommand(newWorkflowSetActiveCmd("enable", true))
	cmd.AddCommand(newWorkflowSetActiveCmd("disable", false))
	cmd.AddCommand(newWorkflowFireCmd())
	cmd.AddCommand(newWorkflowRunsCmd())
	cmd.AddCommand(newWorkflowReplayCmd())
	return cmd
}

func newWorkflowListCmd() *cobra.Command {
	var (
		configPath string
		trigger    string
		activeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			wfs, err := automation.NewRegistry(gormDB).List(automation.ListFilters{Trigger: trigger, ActiveOnly: activeOnly})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(wfs) == 0 {
				fmt.Fprintln(out, "No workflows found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTRIGGER\tACTIVE\tACTIONS\tRUNS")
			for _, wf := range wfs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%d\n", wf.ID, wf.Name, wf.Trigger, wf.Active, actionKinds(wf.Actions), wf.ExecutionCount)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().StringVar(&trigger, "trigger", "", "filter by trigger")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active workflows")
	return cmd
}

func actionKinds(actions []models.Action) string {
	kinds := make([]string, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind
	}
	return strings.Join(kinds, ",")
}

func newWorkflowShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			wf, err := automation.NewRegistry(gormDB).Get(id)
			if err != nil {
				return err
			}
			active := wf.Active
			data, err := yaml.Marshal(automation.Definition{
				Name:        wf.Name,
				Description: wf.Description,
				Trigger:     wf.Trigger,
				Conditions:  wf.Conditions,
				Actions:     wf.Actions,
				Active:      &active,
			})
			if err != nil {
				return fmt.Errorf("encode workflow: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# workflow %d, executed %d times\n", wf.ID, wf.ExecutionCount)
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	return cmd
}

func newWorkflowApplyCmd() *cobra.Command {
	var (
		configPath string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or replace workflows from a YAML file",
		Long: `Reads a YAML file holding either one workflow or a list of workflows and
creates each by name, replacing the definition of any that already exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			defs, err := parseWorkflowFile(data)
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			reg := automation.NewRegistry(gormDB)
			out := cmd.OutOrStdout()
			for _, def := range defs {
				wf, created, err := reg.Apply(def)
				if err != nil {
					return fmt.Errorf("apply workflow %q: %w", def.Name, err)
				}
				verb := "Updated"
				if created {
					verb = "Created"
				}
				fmt.Fprintf(out, "%s workflow %d %q (%s)\n", verb, wf.ID, wf.Name, wf.Trigger)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "workflow YAML file")
	return cmd
}

// parseWorkflowFile accepts a single workflow mapping or a sequence of them.
func parseWorkflowFile(data []byte) ([]automation.Definition, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse workflow file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("parse workflow file: empty document")
	}
	var list []config.WorkflowConfig
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("parse workflow file: %w", err)
		}
	case yaml.MappingNode:
		var one config.WorkflowConfig
		if err := root.Decode(&one); err != nil {
			return nil, fmt.Errorf("parse workflow file: %w", err)
		}
		list = append(list, one)
	default:
		return nil, fmt.Errorf("parse workflow file: expected a mapping or a list")
	}
	defs := make([]automation.Definition, len(list))
	for i, w := range list {
		defs[i] = definitionFromConfig(w)
	}
	return defs, nil
}

func newWorkflowDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workflow (its run history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := automation.NewRegistry(gormDB).Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted workflow %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	return cmd
}

func newWorkflowSetActiveCmd(use string, active bool) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "workflow")
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := automation.NewRegistry(gormDB).SetActive(id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow %d %sd\n", id, use)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	return cmd
}

func newWorkflowFireCmd() *cobra.Command {
	var (
		configPath string
		contextArg string
	)

	cmd := &cobra.Command{
		Use:   "fire <trigger>",
		Short: "Fire a trigger by hand",
		Long:  "Fires a trigger with a JSON context, e.g. --context '{\"lead_id\": 4}'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evt := automation.Context{}
			if contextArg != "" {
				if err := json.Unmarshal([]byte(contextArg), &evt); err != nil {
					return fmt.Errorf("parse --context: %w", err)
				}
			}
			_, _, engine, _, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			res, err := engine.Fire(cmd.Context(), args[0], evt)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().StringVar(&contextArg, "context", "", "event context as a JSON object")
	return cmd
}

func newWorkflowRunsCmd() *cobra.Command {
	var (
		configPath string
		workflowID uint
		firingID   string
		outcome    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the workflow run audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			runs, err := automation.Runs(gormDB, automation.RunFilters{WorkflowID: workflowID, FiringID: firingID, Outcome: outcome, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWORKFLOW\tTRIGGER\tOUTCOME\tFIRING\tAT\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.WorkflowID, r.Trigger, r.Outcome, shortID(r.FiringID), r.CreatedAt.Format("2006-01-02 15:04:05"), r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().UintVar(&workflowID, "workflow", 0, "filter by workflow id")
	cmd.Flags().StringVar(&firingID, "firing", "", "filter by firing id")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (fired, failed, skipped)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newWorkflowReplayCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Fire a recorded run's trigger again with its stored context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "run")
			if err != nil {
				return err
			}
			_, _, engine, _, err := services(cmd, configPath)
			if err != nil {
				return err
			}
			res, err := engine.Replay(cmd.Context(), id)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	return cmd
}
