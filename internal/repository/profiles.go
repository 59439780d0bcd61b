package repository

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dastanaron/linkmark/internal/models"
)

// DefaultLinksFile is the links file of the bootstrap "Default" profile. It
// matches the pre-profiles layout, so an existing single-file installation
// is picked up unchanged.
const DefaultLinksFile = "links.json"

// JSONProfileRepository implements ProfileRepository over profiles.json
type JSONProfileRepository struct {
	path string
}

// NewJSONProfileRepository creates a repository backed by the given file.
func NewJSONProfileRepository(path string) *JSONProfileRepository {
	return &JSONProfileRepository{path: path}
}

// Load reads all profiles. A missing file creates and persists a single
// default profile. The loaded set is repaired to hold the invariants: at
// least one profile exists and exactly one is the default.
func (r *JSONProfileRepository) Load() ([]models.Profile, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return r.bootstrap()
	}
	if err != nil {
		return nil, &models.StorageError{Op: "load", Path: r.path, Err: err}
	}
	if len(data) == 0 {
		return r.bootstrap()
	}

	var profiles []models.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, &models.StorageError{Op: "load", Path: r.path, Err: err}
	}
	if len(profiles) == 0 {
		return r.bootstrap()
	}

	if repairDefaults(profiles) {
		if err := r.Save(profiles); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// Save persists the profile set with the same backup and atomic-replace
// discipline as the link store.
func (r *JSONProfileRepository) Save(profiles []models.Profile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return &models.StorageError{Op: "save", Path: r.path, Err: err}
	}
	return writeFileAtomic(r.path, data)
}

func (r *JSONProfileRepository) bootstrap() ([]models.Profile, error) {
	def := models.Profile{
		Name:      "Default",
		LinksFile: DefaultLinksFile,
		CreatedAt: time.Now(),
		IsDefault: true,
	}
	profiles := []models.Profile{def}
	if err := r.Save(profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// repairDefaults ensures exactly one profile carries the default flag.
// Returns true if anything changed.
func repairDefaults(profiles []models.Profile) bool {
	changed := false
	seen := false
	for i := range profiles {
		if profiles[i].IsDefault {
			if seen {
				profiles[i].IsDefault = false
				changed = true
			}
			seen = true
		}
	}
	if !seen && len(profiles) > 0 {
		profiles[0].IsDefault = true
		changed = true
	}
	return changed
}
