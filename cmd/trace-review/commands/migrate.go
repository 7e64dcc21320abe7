package commands

import (
	"bufio"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trace.review/internal/config"
	"github.com/banshee-data/trace.review/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite slot database schema",
		Long: `Manage the schema of the SQLite slot database (--db-path). The schema is
also migrated automatically whenever the sqlite backend is opened; these
commands exist to inspect and repair it.`,
	}

	// withDB opens the configured database without migrating it.
	withDB := func(fn func(database *db.DB, migrations fs.FS) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.GetBackend() != config.BackendSQLite {
				a.out.Warning("Backend is %q; migrating %s anyway\n", cfg.GetBackend(), cfg.GetDBPath())
			}
			migrations, err := db.MigrationsFS()
			if err != nil {
				return a.out.Error("Failed to read migrations", err.Error(), nil)
			}
			database, err := db.OpenDB(cfg.GetDBPath())
			if err != nil {
				return a.out.Error("Failed to open database", err.Error(), nil)
			}
			defer database.Close()
			return fn(database, migrations)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(database *db.DB, migrations fs.FS) error {
			a.out.Step("Running migrations...\n")
			if err := database.MigrateUp(migrations); err != nil {
				return a.out.Error("Migration up failed", err.Error(), nil)
			}
			return a.printMigrationStatus(database, migrations, "All migrations applied")
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withDB(func(database *db.DB, migrations fs.FS) error {
			a.out.Step("Rolling back one migration...\n")
			if err := database.MigrateDown(migrations); err != nil {
				return a.out.Error("Migration down failed", err.Error(), nil)
			}
			return a.printMigrationStatus(database, migrations, "Migration rolled back")
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: withDB(func(database *db.DB, migrations fs.FS) error {
			return a.printMigrationStatus(database, migrations, "")
		}),
	})

	var yes bool
	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Force the recorded schema version (recovery only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return a.out.Error("Invalid version number", args[0], nil)
			}
			return withDB(func(database *db.DB, migrations fs.FS) error {
				if !yes {
					a.out.Warning("Forcing migration version to %d\n", version)
					a.out.Info("This should only be used to recover from a dirty migration state.\nContinue? [y/N]: ")
					line, _ := bufio.NewReader(a.in).ReadString('\n')
					if r := strings.TrimSpace(line); r != "y" && r != "Y" {
						a.out.Info("Aborted\n")
						return nil
					}
				}
				if err := database.MigrateForce(migrations, version); err != nil {
					return a.out.Error("Force migration failed", err.Error(), nil)
				}
				return a.printMigrationStatus(database, migrations, "Migration version forced")
			})(cmd, args)
		},
	}
	force.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(force)

	return cmd
}

func (a *app) printMigrationStatus(database *db.DB, migrations fs.FS, done string) error {
	status, err := database.GetMigrationStatus(migrations)
	if err != nil {
		return a.out.Error("Failed to get migration status", err.Error(), nil)
	}
	if done != "" {
		a.out.Success("%s\n", done)
	}
	a.out.Info("Database:        %s\n", database.Path())
	a.out.Info("Current version: %d\n", status.CurrentVersion)
	a.out.Info("Latest version:  %d\n", status.LatestVersion)
	a.out.Info("Dirty:           %v\n", status.Dirty)

	switch {
	case status.Dirty:
		a.out.Warning("Database is in a dirty state: a migration failed mid-execution.\n")
		a.out.Info("Inspect the database, fix any issues, then run: trace-review migrate force <version>\n")
	case status.Pending():
		a.out.Warning("%d migration(s) pending; run: trace-review migrate up\n", status.LatestVersion-status.CurrentVersion)
	}
	return nil
}
