package commands

import (
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/service"
)

// ExportCommand writes the collection to a Netscape bookmarks HTML file
type ExportCommand struct {
	svc *service.LinkService
}

// NewExportCommand creates a new export command
func NewExportCommand(svc *service.LinkService) *ExportCommand {
	return &ExportCommand{svc: svc}
}

// Execute exports all links sorted by name, carrying timestamps in the
// ADD_DATE and LAST_VISIT attributes browsers understand.
func (c *ExportCommand) Execute(filePath string) error {
	links := c.svc.All()
	service.SortLinks(links, models.SortByName, true)

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("cannot create file: %w", err)
	}
	defer file.Close()

	if err := writeBookmarksHTML(file, links); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported %d links to %s\n", len(links), filePath)
	return nil
}

func writeBookmarksHTML(w io.Writer, links []models.Link) error {
	fmt.Fprintf(w, "<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	fmt.Fprintf(w, "<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	fmt.Fprintf(w, "<TITLE>Bookmarks</TITLE>\n")
	fmt.Fprintf(w, "<H1>Bookmarks</H1>\n")
	fmt.Fprintf(w, "<DL><p>\n")

	for _, l := range links {
		fmt.Fprintf(w, "    <DT><A HREF=\"%s\" ADD_DATE=\"%d\"", html.EscapeString(l.URL), l.DateAdded.Unix())
		if l.DateLastOpened != nil {
			fmt.Fprintf(w, " LAST_VISIT=\"%d\"", l.DateLastOpened.Unix())
		}
		if len(l.Tags) > 0 {
			fmt.Fprintf(w, " TAGS=\"%s\"", html.EscapeString(strings.Join(l.Tags, ",")))
		}
		fmt.Fprintf(w, ">%s</A>\n", html.EscapeString(l.Name))
	}

	_, err := fmt.Fprintf(w, "</DL><p>\n")
	return err
}
