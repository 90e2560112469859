package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/entrypoint"
)

// MigrateCommand runs the legacy store migration once and prints a summary.
type MigrateCommand struct {
	DatabasePath string
}

func NewMigrateCommand() *MigrateCommand {
	return &MigrateCommand{}
}

func (cmd *MigrateCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s migrate [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Migrate legacy single-device records into the replicated library.\n")
		fmt.Fprintf(os.Stderr, "Safe to run repeatedly; an up-to-date store is a no-op.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *MigrateCommand) Run() error {
	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.Migration.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Schema version: %d -> %d\n", summary.FromVersion, summary.ToVersion)
	fmt.Printf("Scanned:  %d\n", summary.Scanned)
	fmt.Printf("Migrated: %d\n", summary.Migrated)
	fmt.Printf("Skipped:  %d\n", summary.Skipped)
	fmt.Printf("Failed:   %d\n", summary.Failed)
	return nil
}
