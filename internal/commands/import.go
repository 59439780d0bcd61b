package commands

import (
	"fmt"
	"os"

	"github.com/dastanaron/linkmark/internal/parser"
	"github.com/dastanaron/linkmark/internal/service"
)

// ImportCommand loads links from a Netscape bookmarks HTML file
type ImportCommand struct {
	svc *service.LinkService
}

// NewImportCommand creates a new import command
func NewImportCommand(svc *service.LinkService) *ImportCommand {
	return &ImportCommand{svc: svc}
}

// Execute imports every link found in the file as a single batch. Invalid
// entries are skipped and reported without aborting the import.
func (c *ImportCommand) Execute(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()

	parsed, err := parser.ParseBookmarksHTML(file)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	entries := make([]service.BatchEntry, 0, len(parsed))
	for _, p := range parsed {
		entries = append(entries, service.BatchEntry{
			Name:    p.Name,
			URL:     p.URL,
			Tags:    p.Tags,
			AddedAt: p.AddedAt,
		})
	}

	result, err := c.svc.AddBatch(entries)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	for _, f := range result.Failed {
		fmt.Printf("Warning: skipped '%s': %v\n", f.URL, f.Err)
	}
	fmt.Printf("Imported %d links (%d skipped).\n", len(result.Added), len(result.Failed))
	return nil
}
