package cli

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/entrypoint"
)

// DevicesCommand lists the replicated device registry.
type DevicesCommand struct {
	DatabasePath string
}

func NewDevicesCommand() *DevicesCommand {
	return &DevicesCommand{}
}

func (cmd *DevicesCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s devices [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List every device known to this library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *DevicesCommand) Run() error {
	cfg := config.NewConfig()
	cfg.Database.Path = cmd.DatabasePath

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	devices, err := app.Library.Devices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No devices registered")
		return nil
	}

	for _, d := range devices {
		marker := " "
		if d.DeviceID == app.DeviceID {
			marker = "*"
		}
		name := d.DisplayName
		if name == "" {
			name = "(unnamed)"
		}
		lastSeen := "never"
		if d.LastSeen > 0 {
			lastSeen = time.UnixMilli(d.LastSeen).Format(time.RFC3339)
		}
		fmt.Printf("%s %-36s  %-24s  last seen %s\n", marker, d.DeviceID, name, lastSeen)
	}
	return nil
}
