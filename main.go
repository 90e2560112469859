package main

import (
	"fmt"
	"os"

	"github.com/vrwarp/versicle/internal/cli"
	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "import":
		cmd = cli.NewImportCommand()
	case "migrate":
		cmd = cli.NewMigrateCommand()
	case "devices":
		cmd = cli.NewDevicesCommand()
	case "offload":
		cmd = cli.NewOffloadCommand()
	case "restore":
		cmd = cli.NewRestoreCommand()
	case "version":
		fmt.Printf("versicle %s (%s)\n", Version, Commit)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  serve     Run the HTTP server (default)")
	fmt.Println("  import    Ingest book files into the library")
	fmt.Println("  migrate   Migrate a legacy store and exit")
	fmt.Println("  devices   List the device registry")
	fmt.Println("  offload   Drop a book's stored binary")
	fmt.Println("  restore   Restore an offloaded book's binary")
	fmt.Println("  version   Print version information")
	fmt.Printf("\nRun '%s <command> -h' for command options.\n", os.Args[0])
}
