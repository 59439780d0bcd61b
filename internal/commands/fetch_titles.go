package commands

import (
	"fmt"
	"strings"

	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/scraper"
	"github.com/dastanaron/linkmark/internal/service"
)

// FetchTitlesCommand fills in real page titles for links whose name is
// still just their URL or host
type FetchTitlesCommand struct {
	svc     *service.LinkService
	scraper *scraper.Scraper
}

// NewFetchTitlesCommand creates a new fetch-titles command
func NewFetchTitlesCommand(svc *service.LinkService, sc *scraper.Scraper) *FetchTitlesCommand {
	return &FetchTitlesCommand{svc: svc, scraper: sc}
}

// Execute fetches titles best-effort: a failed lookup leaves the link as it
// is and does not stop the run.
func (c *FetchTitlesCommand) Execute() error {
	updated := 0
	failed := 0
	for _, l := range c.svc.All() {
		if !needsTitle(l) {
			continue
		}

		title, err := c.scraper.FetchTitle(l.URL)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
			failed++
			continue
		}

		if _, err := c.svc.Edit(l.ID, service.LinkEdit{Name: &title}); err != nil {
			fmt.Printf("Warning: could not rename link %d: %v\n", l.ID, err)
			failed++
			continue
		}
		fmt.Printf("Updated '%s' -> '%s'\n", l.Name, title)
		updated++
	}

	fmt.Printf("Fetched titles for %d link(s), %d failed.\n", updated, failed)
	return nil
}

// needsTitle reports whether the link name carries no more information than
// the URL itself.
func needsTitle(l models.Link) bool {
	name := strings.TrimSpace(l.Name)
	return name == "" ||
		name == l.URL ||
		name == l.Host() ||
		strings.TrimPrefix(strings.TrimPrefix(l.URL, "https://"), "http://") == name
}
