package models

import (
	"strings"
	"time"
)

// MaxProfileNameLen bounds profile names for display purposes.
const MaxProfileNameLen = 50

// Profile represents a named collection of links. Each profile owns its own
// links file; profiles.json stores only this metadata.
type Profile struct {
	Name      string    `json:"name"`
	LinksFile string    `json:"links_file"`
	CreatedAt time.Time `json:"created_at"`
	IsDefault bool      `json:"is_default"`
}

// NewProfile creates a profile after validating its name.
func NewProfile(name, linksFile string, createdAt time.Time) (Profile, error) {
	name = strings.TrimSpace(name)
	if err := ValidateProfileName(name); err != nil {
		return Profile{}, err
	}
	return Profile{
		Name:      name,
		LinksFile: linksFile,
		CreatedAt: createdAt,
	}, nil
}

// ValidateProfileName checks a profile name for emptiness and length.
func ValidateProfileName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "profile name", Reason: "cannot be empty"}
	}
	if len(name) > MaxProfileNameLen {
		return &ValidationError{Field: "profile name", Reason: "cannot exceed 50 characters"}
	}
	return nil
}
