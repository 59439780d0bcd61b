package commands

import (
	"fmt"
	"strings"

	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/service"
)

// DedupeCommand removes duplicate links that share the same URL
type DedupeCommand struct {
	svc *service.LinkService
}

// NewDedupeCommand creates a new dedupe command
func NewDedupeCommand(svc *service.LinkService) *DedupeCommand {
	return &DedupeCommand{svc: svc}
}

// Execute keeps the oldest link for each URL (case-insensitive) and deletes
// the rest in one batch.
func (c *DedupeCommand) Execute() error {
	links := c.svc.All()
	service.SortLinks(links, models.SortByDateAdded, true)

	seen := make(map[string]int64)
	var duplicates []int64
	for _, l := range links {
		key := strings.ToLower(l.URL)
		if keepID, exists := seen[key]; exists {
			duplicates = append(duplicates, l.ID)
			fmt.Printf("Found duplicate: '%s' (id %d, keeping id %d)\n", l.Name, l.ID, keepID)
			continue
		}
		seen[key] = l.ID
	}

	if len(duplicates) == 0 {
		fmt.Println("No duplicate links found.")
		return nil
	}

	deleted, err := c.svc.Delete(duplicates)
	if err != nil {
		return fmt.Errorf("dedupe failed: %w", err)
	}
	fmt.Printf("Deleted %d duplicate link(s).\n", deleted)
	return nil
}
