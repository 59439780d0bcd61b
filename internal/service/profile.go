package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/repository"
	"go.uber.org/zap"
)

// ProfileStats summarizes a profile's link collection.
type ProfileStats struct {
	Total     int
	Favorites int
	Unread    int
}

// ProfileService manages the set of profiles and tracks the active one.
// Link persistence stays with the per-profile LinkRepository; this service
// only owns the metadata in profiles.json.
type ProfileService struct {
	repo    repository.ProfileRepository
	dataDir string
	clock   Clock
	log     *zap.Logger

	profiles []models.Profile
	current  string

	observers    map[int]func()
	nextObserver int
}

// NewProfileService loads the profile set and selects the default profile
// as current.
func NewProfileService(repo repository.ProfileRepository, dataDir string, log *zap.Logger, clock Clock) (*ProfileService, error) {
	profiles, err := repo.Load()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}

	s := &ProfileService{
		repo:      repo,
		dataDir:   dataDir,
		clock:     clock,
		log:       log,
		profiles:  profiles,
		observers: make(map[int]func()),
	}
	for _, p := range profiles {
		if p.IsDefault {
			s.current = p.Name
			break
		}
	}
	return s, nil
}

// Subscribe registers a change observer and returns a handle.
func (s *ProfileService) Subscribe(o func()) int {
	s.nextObserver++
	s.observers[s.nextObserver] = o
	return s.nextObserver
}

// Unsubscribe removes the observer registered under the handle.
func (s *ProfileService) Unsubscribe(handle int) {
	delete(s.observers, handle)
}

// All returns a copy of the profile set.
func (s *ProfileService) All() []models.Profile {
	out := make([]models.Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// Current returns the active profile.
func (s *ProfileService) Current() models.Profile {
	if idx := s.find(s.current); idx >= 0 {
		return s.profiles[idx]
	}
	return s.profiles[0]
}

// LinksPath resolves a profile's links file inside the data directory.
func (s *ProfileService) LinksPath(p models.Profile) string {
	return filepath.Join(s.dataDir, p.LinksFile)
}

// Switch makes the named profile the active one.
func (s *ProfileService) Switch(name string) error {
	if s.find(name) < 0 {
		return fmt.Errorf("profile %q: %w", name, models.ErrNotFound)
	}
	s.current = name
	s.notify()
	return nil
}

// Create adds a new profile with its own links file.
func (s *ProfileService) Create(name string, makeDefault bool) (models.Profile, error) {
	p, err := models.NewProfile(name, linksFileFor(name), s.clock.Now())
	if err != nil {
		return models.Profile{}, err
	}
	if s.find(p.Name) >= 0 {
		return models.Profile{}, &models.ValidationError{Field: "profile name", Reason: "already exists"}
	}

	prev := s.profiles
	next := s.snapshot()
	if makeDefault {
		for i := range next {
			next[i].IsDefault = false
		}
		p.IsDefault = true
	}
	s.profiles = append(next, p)
	if err := s.persist(prev); err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

// Rename changes a profile's name, keeping its links file.
func (s *ProfileService) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := models.ValidateProfileName(newName); err != nil {
		return err
	}
	idx := s.find(oldName)
	if idx < 0 {
		return fmt.Errorf("profile %q: %w", oldName, models.ErrNotFound)
	}
	if other := s.find(newName); other >= 0 && other != idx {
		return &models.ValidationError{Field: "profile name", Reason: "already exists"}
	}

	prev := s.profiles
	next := s.snapshot()
	next[idx].Name = newName
	s.profiles = next
	if err := s.persist(prev); err != nil {
		return err
	}
	if s.current == oldName {
		s.current = newName
	}
	return nil
}

// Delete removes a profile and its links file. The last remaining profile
// cannot be deleted; deleting the default promotes the first survivor.
func (s *ProfileService) Delete(name string) error {
	idx := s.find(name)
	if idx < 0 {
		return fmt.Errorf("profile %q: %w", name, models.ErrNotFound)
	}
	if len(s.profiles) <= 1 {
		return &models.ValidationError{Field: "profile", Reason: "cannot delete the last profile"}
	}

	removed := s.profiles[idx]
	prev := s.profiles
	prevCurrent := s.current
	next := s.snapshot()
	next = append(next[:idx], next[idx+1:]...)
	if removed.IsDefault {
		next[0].IsDefault = true
	}
	s.profiles = next
	if s.current == name {
		s.current = s.defaultName()
	}
	if err := s.persist(prev); err != nil {
		s.current = prevCurrent
		return err
	}

	// Best-effort cleanup of the orphaned link files.
	path := s.LinksPath(removed)
	for _, f := range []string{path, path + repository.BackupSuffix} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			s.log.Warn("could not remove profile data file", zap.String("path", f), zap.Error(err))
		}
	}
	return nil
}

// SetDefault marks the named profile as the default one.
func (s *ProfileService) SetDefault(name string) error {
	idx := s.find(name)
	if idx < 0 {
		return fmt.Errorf("profile %q: %w", name, models.ErrNotFound)
	}

	prev := s.profiles
	next := s.snapshot()
	for i := range next {
		next[i].IsDefault = i == idx
	}
	s.profiles = next
	return s.persist(prev)
}

// Stats loads the named profile's links and summarizes them.
func (s *ProfileService) Stats(name string) (ProfileStats, error) {
	idx := s.find(name)
	if idx < 0 {
		return ProfileStats{}, fmt.Errorf("profile %q: %w", name, models.ErrNotFound)
	}

	links, err := repository.NewJSONLinkRepository(s.LinksPath(s.profiles[idx])).Load()
	if err != nil {
		return ProfileStats{}, err
	}

	stats := ProfileStats{Total: len(links)}
	for _, l := range links {
		if l.IsFavorite {
			stats.Favorites++
		}
		if l.IsUnread() {
			stats.Unread++
		}
	}
	return stats, nil
}

func (s *ProfileService) persist(prev []models.Profile) error {
	if err := s.repo.Save(s.profiles); err != nil {
		s.profiles = prev
		return err
	}
	s.notify()
	return nil
}

func (s *ProfileService) notify() {
	for _, o := range s.observers {
		o()
	}
}

func (s *ProfileService) snapshot() []models.Profile {
	out := make([]models.Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

func (s *ProfileService) find(name string) int {
	for i := range s.profiles {
		if s.profiles[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *ProfileService) defaultName() string {
	for _, p := range s.profiles {
		if p.IsDefault {
			return p.Name
		}
	}
	return s.profiles[0].Name
}

// linksFileFor derives a file name for a profile's link collection. The
// bootstrap Default profile keeps the legacy links.json name.
func linksFileFor(name string) string {
	if name == "Default" {
		return repository.DefaultLinksFile
	}
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(name))
	return "links-" + slug + ".json"
}
