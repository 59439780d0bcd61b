package parser

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ParsedLink is one anchor extracted from a bookmarks HTML file.
type ParsedLink struct {
	Name    string
	URL     string
	Tags    []string
	AddedAt *time.Time
}

// ParseBookmarksHTML extracts links from a Netscape-format bookmarks file,
// the export format every major browser produces. Folder structure is
// flattened; the ADD_DATE attribute is carried over when it parses as a
// unix timestamp, and Firefox's comma-separated TAGS attribute is split
// into tags.
func ParseBookmarksHTML(r io.Reader) ([]ParsedLink, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var links []ParsedLink

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var link ParsedLink
			for _, attr := range n.Attr {
				switch attr.Key {
				case "href":
					link.URL = attr.Val
				case "add_date":
					if secs, err := strconv.ParseInt(attr.Val, 10, 64); err == nil && secs > 0 {
						t := time.Unix(secs, 0)
						link.AddedAt = &t
					}
				case "tags":
					for _, tag := range strings.Split(attr.Val, ",") {
						if tag = strings.TrimSpace(tag); tag != "" {
							link.Tags = append(link.Tags, tag)
						}
					}
				}
			}
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				link.Name = strings.TrimSpace(n.FirstChild.Data)
			}
			if link.URL != "" {
				links = append(links, link)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return links, nil
}
