package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/entrypoint"
)

// RestoreCommand writes an offloaded book's binary back, verifying it
// against the stored fingerprint first.
type RestoreCommand struct {
	DatabasePath string
	BookID       string
	FilePath     string
}

func NewRestoreCommand() *RestoreCommand {
	return &RestoreCommand{}
}

func (cmd *RestoreCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database file")
	fs.StringVar(&cmd.BookID, "book", "", "Book id to restore (required)")
	fs.StringVar(&cmd.FilePath, "file", "", "Path to the original book file (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s restore -book <id> -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Restore the binary of an offloaded book. The file must hash to the\n")
		fmt.Fprintf(os.Stderr, "fingerprint recorded at import; anything else is rejected.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.BookID == "" {
		return fmt.Errorf("required flag -book not provided")
	}
	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}
	return nil
}

func (cmd *RestoreCommand) Run() error {
	content, err := os.ReadFile(cmd.FilePath)
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Library.Restore(cmd.BookID, content); err != nil {
		return err
	}
	fmt.Printf("Restored %s from %s\n", cmd.BookID, cmd.FilePath)
	return nil
}
