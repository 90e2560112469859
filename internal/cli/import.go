package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/entrypoint"
	"github.com/vrwarp/versicle/internal/services"
)

// ImportCommand ingests one or more book files into the library.
type ImportCommand struct {
	DatabasePath string
	Verbose      bool
	Files        []string
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database file")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import [options] <file> [<file>...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ingest book files into the library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import walden.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -db ~/books/versicle.db *.txt\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.Files = fs.Args()
	if len(cmd.Files) == 0 {
		return fmt.Errorf("no files to import")
	}
	return nil
}

func (cmd *ImportCommand) Run() error {
	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	var inputs []services.IngestInput
	for _, path := range cmd.Files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		inputs = append(inputs, services.IngestInput{
			Filename: filepath.Base(path),
			Content:  content,
		})
	}

	results := app.Ingest.IngestBatch(context.Background(), inputs)

	imported := 0
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(os.Stderr, "  FAILED  %s: %s\n", r.Filename, r.Error)
			continue
		}
		imported++
		if cmd.Verbose {
			fmt.Printf("  ok      %s -> %s\n", r.Filename, r.BookID)
		}
	}

	fmt.Printf("Imported %d of %d file(s)\n", imported, len(results))
	if imported == 0 {
		return fmt.Errorf("nothing imported")
	}
	return nil
}
