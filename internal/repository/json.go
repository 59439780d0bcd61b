package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dastanaron/linkmark/internal/models"
)

// BackupSuffix is appended to a data file's name for its backup copy. The
// backup is overwritten on every successful save.
const BackupSuffix = ".bak"

const tmpSuffix = ".tmp"

// JSONLinkRepository implements LinkRepository over a single JSON file
type JSONLinkRepository struct {
	path string
}

// NewJSONLinkRepository creates a repository backed by the given file.
func NewJSONLinkRepository(path string) *JSONLinkRepository {
	return &JSONLinkRepository{path: path}
}

// Path returns the location of the backing file.
func (r *JSONLinkRepository) Path() string {
	return r.path
}

// Load reads all links from the file. A missing file means a first run and
// returns an empty collection. A file that exists but does not parse, or
// that fails schema validation, returns a StorageError and is left
// untouched so the user can inspect or repair it.
func (r *JSONLinkRepository) Load() ([]models.Link, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "load", Path: r.path, Err: err}
	}
	if len(data) == 0 {
		return nil, nil
	}

	var links []models.Link
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, &models.StorageError{Op: "load", Path: r.path, Err: err}
	}

	seen := make(map[int64]bool, len(links))
	for i := range links {
		l := &links[i]
		if l.ID == 0 {
			return nil, &models.StorageError{Op: "load", Path: r.path, Err: fmt.Errorf("record %d: missing id", i)}
		}
		if seen[l.ID] {
			return nil, &models.StorageError{Op: "load", Path: r.path, Err: fmt.Errorf("duplicate id %d", l.ID)}
		}
		seen[l.ID] = true
		if err := l.Validate(); err != nil {
			return nil, &models.StorageError{Op: "load", Path: r.path, Err: fmt.Errorf("record %d (id %d): %w", i, l.ID, err)}
		}
	}

	return links, nil
}

// Save persists the collection. The previous file, if any, is first copied
// to the backup location; the new content goes to a temporary file that
// atomically replaces the target, so a crash mid-write cannot corrupt the
// previously-good file.
func (r *JSONLinkRepository) Save(links []models.Link) error {
	if links == nil {
		links = []models.Link{}
	}
	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return &models.StorageError{Op: "save", Path: r.path, Err: err}
	}
	return writeFileAtomic(r.path, data)
}

// Add appends a link and persists.
func (r *JSONLinkRepository) Add(link models.Link) error {
	links, err := r.Load()
	if err != nil {
		return err
	}
	return r.Save(append(links, link))
}

// Update replaces the stored link with the same ID.
func (r *JSONLinkRepository) Update(link models.Link) error {
	links, err := r.Load()
	if err != nil {
		return err
	}
	for i := range links {
		if links[i].ID == link.ID {
			links[i] = link
			return r.Save(links)
		}
	}
	return fmt.Errorf("link %d: %w", link.ID, models.ErrNotFound)
}

// Remove deletes the link with the given ID.
func (r *JSONLinkRepository) Remove(id int64) error {
	links, err := r.Load()
	if err != nil {
		return err
	}
	for i := range links {
		if links[i].ID == id {
			return r.Save(append(links[:i], links[i+1:]...))
		}
	}
	return fmt.Errorf("link %d: %w", id, models.ErrNotFound)
}

// writeFileAtomic backs up the current file and replaces it via a temporary
// file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &models.StorageError{Op: "save", Path: path, Err: err}
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+BackupSuffix, prev, 0644); err != nil {
			return &models.StorageError{Op: "save", Path: path, Err: fmt.Errorf("backup: %w", err)}
		}
	} else if !os.IsNotExist(err) {
		return &models.StorageError{Op: "save", Path: path, Err: fmt.Errorf("backup: %w", err)}
	}

	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &models.StorageError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &models.StorageError{Op: "save", Path: path, Err: err}
	}
	return nil
}
