package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand. args starts with the
// action; output goes to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}

	// Migrations manage the schema, so the database is opened without them.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ All migrations applied successfully")

	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Migration rolled back successfully")

	case "status":
		// printed below

	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: drivecheck migrate version <version_number>")
		}
		target, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := database.MigrateTo(migrationsFS, uint(target)); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migrated to version %d successfully\n", target)

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: drivecheck migrate force <version_number>")
		}
		forced, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := database.MigrateForce(migrationsFS, forced); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Migration version forced to %d\n", forced)

	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}

	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(out, "Current version: %d (latest %d, dirty: %v)\n", version, LatestSchemaVersion, dirty)
	if dirty {
		fmt.Fprintln(out, "WARNING: database is in a dirty state; inspect it, then run: drivecheck migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp writes the help for the migrate command.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, "Database Migration Commands")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: drivecheck migrate -db runs.db <command> [version]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  up                 Apply all pending migrations")
	fmt.Fprintln(out, "  down               Roll back the most recent migration")
	fmt.Fprintln(out, "  status             Show the current version")
	fmt.Fprintln(out, "  version <N>        Migrate up or down to version N")
	fmt.Fprintln(out, "  force <N>          Record version N without running migrations (recovery only)")
	fmt.Fprintln(out, "  help               Show this help")
}
