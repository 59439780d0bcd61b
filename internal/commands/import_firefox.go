package commands

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/dastanaron/linkmark/internal/service"

	_ "github.com/mattn/go-sqlite3"
)

// ImportFirefoxCommand reads bookmarks directly out of a Firefox profile's
// places.sqlite database
type ImportFirefoxCommand struct {
	svc *service.LinkService
}

// NewImportFirefoxCommand creates a new Firefox import command
func NewImportFirefoxCommand(svc *service.LinkService) *ImportFirefoxCommand {
	return &ImportFirefoxCommand{svc: svc}
}

// Execute imports all http(s) bookmarks from the given places.sqlite. The
// database is opened read-only; Firefox timestamps (microseconds since the
// epoch) become the links' date_added.
func (c *ImportFirefoxCommand) Execute(placesPath string) error {
	if _, err := os.Stat(placesPath); err != nil {
		return fmt.Errorf("cannot access %s: %w", placesPath, err)
	}

	db, err := sql.Open("sqlite3", "file:"+placesPath+"?mode=ro&immutable=1")
	if err != nil {
		return fmt.Errorf("cannot open places database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT p.url, IFNULL(b.title, ''), b.dateAdded
		FROM moz_bookmarks AS b
		JOIN moz_places AS p ON p.id = b.fk
		WHERE b.type = 1 AND p.url LIKE 'http%'
		ORDER BY b.dateAdded
	`)
	if err != nil {
		return fmt.Errorf("cannot read bookmarks: %w", err)
	}
	defer rows.Close()

	var entries []service.BatchEntry
	for rows.Next() {
		var url, title string
		var dateAddedMicros int64
		if err := rows.Scan(&url, &title, &dateAddedMicros); err != nil {
			return fmt.Errorf("cannot read bookmark row: %w", err)
		}

		entry := service.BatchEntry{Name: title, URL: url}
		if dateAddedMicros > 0 {
			t := time.UnixMicro(dateAddedMicros)
			entry.AddedAt = &t
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("cannot read bookmarks: %w", err)
	}

	result, err := c.svc.AddBatch(entries)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	for _, f := range result.Failed {
		fmt.Printf("Warning: skipped '%s': %v\n", f.URL, f.Err)
	}
	fmt.Printf("Imported %d links from Firefox (%d skipped).\n", len(result.Added), len(result.Failed))
	return nil
}
