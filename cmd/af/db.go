package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/admitflow/internal/automation"
	"github.com/zulandar/admitflow/internal/config"
	"github.com/zulandar/admitflow/internal/db"
	"github.com/zulandar/admitflow/internal/models"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Admitflow database",
		Long:  "Creates the database if needed, migrates all tables, seeds pipeline stages and applies the workflows listed in the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s\n", configPath)

	if err := ensureDatabase(cfg, out); err != nil {
		return err
	}
	return initialize(cfg, out)
}

// ensureDatabase creates the MySQL database. SQLite files are created on
// first connect.
func ensureDatabase(cfg *config.Config, out io.Writer) error {
	if cfg.Database.Driver != "mysql" {
		return nil
	}
	adminDB, err := db.ConnectAdmin(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}
	if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	return nil
}

// initialize migrates, seeds stages and applies config workflows.
func initialize(cfg *config.Config, out io.Writer) error {
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	n, err := db.SeedStages(gormDB, models.StageTypeLead, cfg.Stages.Lead)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Lead stages: %s (%d new)\n", strings.Join(cfg.Stages.Lead, ", "), n)
	n, err = db.SeedStages(gormDB, models.StageTypeApplication, cfg.Stages.Application)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Application stages: %s (%d new)\n", strings.Join(cfg.Stages.Application, ", "), n)

	reg := automation.NewRegistry(gormDB)
	for _, w := range cfg.Workflows {
		wf, created, err := reg.Apply(definitionFromConfig(w))
		if err != nil {
			return fmt.Errorf("apply workflow %q: %w", w.Name, err)
		}
		verb := "Updated"
		if created {
			verb = "Created"
		}
		fmt.Fprintf(out, "%s workflow %d %q (%s)\n", verb, wf.ID, wf.Name, wf.Trigger)
	}

	fmt.Fprintln(out, "\nAdmitflow database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Admitflow database",
		Long: `Drops the Admitflow database (or deletes the SQLite file) and
re-initializes it from config: migrate, seed stages, apply workflows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Admitflow config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	target := cfg.Database.Name
	if cfg.Database.Driver == "sqlite" {
		target = cfg.Database.Path
	}
	if !skipConfirm && !confirmReset(cmd, target) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	switch cfg.Database.Driver {
	case "mysql":
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.DropDatabase(adminDB, target); err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, target); err != nil {
			return err
		}
	case "sqlite":
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", target, err)
		}
	}
	fmt.Fprintf(out, "Dropped database %s\n", target)

	return initialize(cfg, out)
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in database %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
