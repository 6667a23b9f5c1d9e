package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"gymmaster/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|version|force] [version]",
	Short: "Run database migrations",
	Long: `Commands:
  up        Apply all pending migrations (default)
  down      Roll back the last migration
  version   Print the current schema version
  force N   Mark version N as clean after a failed run`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) > 0 {
			action = args[0]
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config failed: %w", err)
		}

		migrator, err := migrate.New(migrationSource(), cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("init migrator failed: %w", err)
		}
		defer migrator.Close() //nolint:errcheck

		switch action {
		case "up":
			err = migrator.Up()
		case "down":
			err = migrator.Steps(-1)
		case "version":
			version, dirty, verr := migrator.Version()
			if errors.Is(verr, migrate.ErrNilVersion) {
				fmt.Println("no migrations applied")
				return nil
			}
			if verr != nil {
				return fmt.Errorf("read version failed: %w", verr)
			}
			fmt.Printf("version %d (dirty=%t)\n", version, dirty)
			return nil
		case "force":
			if len(args) < 2 {
				return errors.New("version is required for force")
			}
			version, perr := strconv.Atoi(args[1])
			if perr != nil {
				return fmt.Errorf("invalid version: %w", perr)
			}
			err = migrator.Force(version)
		default:
			return fmt.Errorf("unknown migrate command %q", action)
		}

		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("run migrations failed: %w", err)
		}
		fmt.Println("migrations applied successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// migrationSource prefers the container path and falls back to the repo checkout.
func migrationSource() string {
	dir := "/migrations"
	if _, err := os.Stat(dir); err != nil {
		dir = "./migrations"
	}
	return "file://" + dir
}
