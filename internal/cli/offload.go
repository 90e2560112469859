package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/entrypoint"
)

// OffloadCommand frees a book's binary while keeping its metadata and
// reading state.
type OffloadCommand struct {
	DatabasePath string
	BookID       string
}

func NewOffloadCommand() *OffloadCommand {
	return &OffloadCommand{}
}

func (cmd *OffloadCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("offload", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database file")
	fs.StringVar(&cmd.BookID, "book", "", "Book id to offload (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s offload -book <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Drop a book's stored binary. Metadata, progress and history stay;\n")
		fmt.Fprintf(os.Stderr, "restore the same file later with the restore command.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.BookID == "" {
		return fmt.Errorf("required flag -book not provided")
	}
	return nil
}

func (cmd *OffloadCommand) Run() error {
	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Library.Offload(cmd.BookID); err != nil {
		return err
	}
	fmt.Printf("Offloaded %s\n", cmd.BookID)
	return nil
}
