package models

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// SortField identifies a sortable link column
type SortField string

const (
	SortByName       SortField = "name"
	SortByURL        SortField = "url"
	SortByDateAdded  SortField = "date_added"
	SortByLastOpened SortField = "date_last_opened"
)

// Link represents a single stored link with its metadata
type Link struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	Tags           []string   `json:"tags,omitempty"`
	DateAdded      time.Time  `json:"date_added"`
	DateLastOpened *time.Time `json:"date_last_opened"`
	IsFavorite     bool       `json:"is_favorite"`
	IsRead         bool       `json:"is_read"`
}

// NewLink creates a link from user input. The URL is normalized (a missing
// scheme becomes https://) and must contain a host. An empty name defaults
// to the URL's host and path.
func NewLink(name, rawURL string) (Link, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return Link{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = displayName(normalized)
	}

	return Link{
		Name: name,
		URL:  normalized,
	}, nil
}

// NormalizeURL trims the input, prepends https:// when no scheme is present
// and verifies the result parses with a host component.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", &ValidationError{Field: "url", Reason: "cannot be empty"}
	}

	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &ValidationError{Field: "url", Reason: err.Error()}
	}
	if u.Host == "" {
		return "", &ValidationError{Field: "url", Reason: "missing host"}
	}

	return u.String(), nil
}

// Validate checks the invariants every persisted link must hold.
func (l *Link) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	u, err := url.Parse(l.URL)
	if err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must have a scheme and a host"}
	}
	return nil
}

// Host returns the host part of the URL for display, or the raw URL if it
// does not parse.
func (l *Link) Host() string {
	u, err := url.Parse(l.URL)
	if err != nil || u.Host == "" {
		return l.URL
	}
	return u.Host
}

// IsUnread reports whether the link is still marked unread.
func (l *Link) IsUnread() bool {
	return !l.IsRead
}

// MarkOpened records an open at the given time and marks the link read.
func (l *Link) MarkOpened(t time.Time) {
	opened := t
	l.DateLastOpened = &opened
	l.IsRead = true
}

// ToggleFavorite flips the favorite flag.
func (l *Link) ToggleFavorite() {
	l.IsFavorite = !l.IsFavorite
}

// ToggleRead flips the read flag.
func (l *Link) ToggleRead() {
	l.IsRead = !l.IsRead
}

// NormalizeTag lowercases and trims a tag. An empty result means the input
// was not a usable tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags normalizes, deduplicates and sorts a tag list.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// HasTag reports whether the link carries the tag, case-insensitive.
func (l *Link) HasTag(tag string) bool {
	tag = NormalizeTag(tag)
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag attaches a tag, keeping the tag list sorted and free of
// duplicates. Reports whether the link changed.
func (l *Link) AddTag(tag string) bool {
	tag = NormalizeTag(tag)
	if tag == "" || l.HasTag(tag) {
		return false
	}
	// Copy first: links get copied by value and would otherwise share the
	// tag array with their originals.
	tags := make([]string, len(l.Tags), len(l.Tags)+1)
	copy(tags, l.Tags)
	l.Tags = append(tags, tag)
	sort.Strings(l.Tags)
	return true
}

// RemoveTag detaches a tag. Reports whether the link changed.
func (l *Link) RemoveTag(tag string) bool {
	tag = NormalizeTag(tag)
	for i, t := range l.Tags {
		if t == tag {
			l.Tags = append(l.Tags[:i:i], l.Tags[i+1:]...)
			if len(l.Tags) == 0 {
				l.Tags = nil
			}
			return true
		}
	}
	return false
}

// ClearTags drops every tag. Reports whether the link changed.
func (l *Link) ClearTags() bool {
	if len(l.Tags) == 0 {
		return false
	}
	l.Tags = nil
	return true
}

func displayName(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return normalized
	}
	name := u.Host
	if p := strings.TrimSuffix(u.Path, "/"); p != "" {
		name += p
	}
	return name
}
