// Command seed_demo creates a demo database with sample data from public
// domain books: a legacy store left for the migration to pick up, freshly
// ingested books, and simulated reading sessions from several devices.
// Usage: go run cmd/seed_demo/main.go [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/vrwarp/versicle/internal/config"
	"github.com/vrwarp/versicle/internal/entities"
	"github.com/vrwarp/versicle/internal/entrypoint"
	"github.com/vrwarp/versicle/internal/services"
)

const defaultDemoDatabasePath = "./demo/demo.db"

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}
	os.Remove(tasksPathFor(*dbPath))

	cfg := config.NewConfig()
	cfg.Database.Path = *dbPath
	cfg.Device.DisplayName = "Demo Desktop"

	app, err := entrypoint.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer app.Close()

	seedLegacyStore(app)
	runMigration(app)
	bookIDs := ingestSampleBooks(app)
	simulateDevices(app, bookIDs)

	log.Printf("Demo database ready at %s", *dbPath)
}

func tasksPathFor(dbPath string) string {
	ext := filepath.Ext(dbPath)
	return dbPath[:len(dbPath)-len(ext)] + "-tasks" + ext
}

// seedLegacyStore plants single-device era records so the demo exercises
// the migration path.
func seedLegacyStore(app *entrypoint.App) {
	books := []entities.LegacyBook{
		{
			BookID:         "legacy-frankenstein",
			Title:          "Frankenstein",
			Author:         "Mary Shelley",
			Percentage:     0.62,
			Location:       "epubcfi(/6/14!/4/2/8)",
			SourceFilename: "frankenstein.txt",
			UpdatedAt:      time.Now().Add(-45 * 24 * time.Hour),
		},
		{
			BookID:         "legacy-dracula",
			Title:          "Dracula",
			Author:         "Bram Stoker",
			Percentage:     1.0,
			Location:       "epubcfi(/6/54!/4/2/2)",
			SourceFilename: "dracula.txt",
			UpdatedAt:      time.Now().Add(-120 * 24 * time.Hour),
		},
	}

	for i := range books {
		content := []byte(books[i].Title + "\n\nA demo body standing in for the real text of the book.")
		if err := app.Blobs.Put(books[i].BookID, entities.BlobKindBook, content); err != nil {
			log.Fatalf("Failed to store legacy binary: %v", err)
		}
	}

	if err := app.Legacy.Seed(books); err != nil {
		log.Fatalf("Failed to seed legacy store: %v", err)
	}
	log.Printf("Seeded %d legacy books", len(books))
}

func runMigration(app *entrypoint.App) {
	summary, err := app.Migration.Run(context.Background())
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migration: %d scanned, %d migrated, %d skipped, %d failed",
		summary.Scanned, summary.Migrated, summary.Skipped, summary.Failed)
}

func ingestSampleBooks(app *entrypoint.App) []string {
	samples := []services.IngestInput{
		{
			Filename: "walden.txt",
			Content: []byte("Walden\n\nWhen I wrote the following pages, or rather the bulk of them, " +
				"I lived alone, in the woods, a mile from any neighbor, in a house which I had built myself, " +
				"on the shore of Walden Pond, in Concord, Massachusetts.\n\n" +
				"I went to the woods because I wished to live deliberately, to front only the essential facts of life."),
		},
		{
			Filename: "the_yellow_wallpaper.txt",
			Content: []byte("The Yellow Wallpaper\n\nIt is very seldom that mere ordinary people like John " +
				"and myself secure ancestral halls for the summer.\n\n" +
				"A colonial mansion, a hereditary estate, I would say a haunted house."),
		},
		{
			Filename: "meditations.txt",
			Content: []byte("Meditations\n\nFrom my grandfather Verus I learned good morals and the government of my temper.\n\n" +
				"From the reputation and remembrance of my father, modesty and a manly character."),
		},
	}

	results := app.Ingest.IngestBatch(context.Background(), samples)

	var ids []string
	for _, r := range results {
		if r.Error != "" {
			log.Printf("Failed to ingest %s: %s", r.Filename, r.Error)
			continue
		}
		log.Printf("Ingested: %s (%s)", r.Filename, r.BookID)
		ids = append(ids, r.BookID)
	}
	return ids
}

// simulateDevices writes progress and history as if a phone and a tablet
// had been reading alongside this device, so resume suggestions and the
// device registry have something to show.
func simulateDevices(app *entrypoint.App, bookIDs []string) {
	if len(bookIDs) == 0 {
		return
	}

	devices := []entities.Device{
		{DeviceID: "demo-phone", DisplayName: "Demo Phone", LastSeen: time.Now().Add(-2 * time.Hour).UnixMilli()},
		{DeviceID: "demo-tablet", DisplayName: "Demo Tablet", LastSeen: time.Now().Add(-26 * time.Hour).UnixMilli()},
	}
	for _, d := range devices {
		if err := app.Library.RegisterDevice(d.DeviceID, d.DisplayName); err != nil {
			log.Fatalf("Failed to register %s: %v", d.DeviceID, err)
		}
	}

	first := bookIDs[0]

	// Sessions on this device, spaced beyond the coalescing window so the
	// history keeps them distinct.
	ranges := []struct {
		start, end string
		ageHours   int
	}{
		{"epubcfi(/6/4!/4/2)", "epubcfi(/6/4!/4/20)", 72},
		{"epubcfi(/6/4!/4/20)", "epubcfi(/6/6!/4/8)", 48},
		{"epubcfi(/6/8!/4/2)", "epubcfi(/6/8!/4/14)", 3},
	}
	for _, r := range ranges {
		err := app.Library.RecordRange(first,
			entities.ReadRange{Start: r.start, End: r.end},
			entities.SessionSourceReading,
			fmt.Sprintf("%dh ago", r.ageHours))
		if err != nil {
			log.Fatalf("Failed to record range: %v", err)
		}
	}

	// The phone is further along: this is what the resume suggestion
	// surfaces without ever touching local progress.
	batch := map[string]entities.DeviceProgress{
		entities.ProgressKey(first, "demo-phone"): {
			BookID:     first,
			DeviceID:   "demo-phone",
			Percentage: 0.58,
			Location:   "epubcfi(/6/10!/4/6)",
			LastRead:   time.Now().Add(-90 * time.Minute).UnixMilli(),
		},
		entities.ProgressKey(first, app.DeviceID): {
			BookID:     first,
			DeviceID:   app.DeviceID,
			Percentage: 0.31,
			Location:   "epubcfi(/6/8!/4/14)",
			LastRead:   time.Now().Add(-3 * time.Hour).UnixMilli(),
		},
	}
	if err := app.Library.FlushProgress(batch); err != nil {
		log.Fatalf("Failed to write progress: %v", err)
	}

	log.Printf("Simulated %d devices over %d books", len(devices)+1, len(bookIDs))
}
