package repository

import "github.com/dastanaron/linkmark/internal/models"

// LinkRepository defines persistence operations for links. It is the only
// component that touches the filesystem for link data.
type LinkRepository interface {
	// Load returns every stored link. A missing file is not an error and
	// yields an empty collection.
	Load() ([]models.Link, error)
	// Save replaces the stored collection, backing up the previous file
	// before an atomic overwrite.
	Save(links []models.Link) error
	Add(link models.Link) error
	Update(link models.Link) error
	Remove(id int64) error
	// Path returns the location of the backing file.
	Path() string
}

// ProfileRepository defines persistence operations for profile metadata
type ProfileRepository interface {
	Load() ([]models.Profile, error)
	Save(profiles []models.Profile) error
}
