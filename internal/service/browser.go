package service

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// Browser opens a URL in an external viewer. The core only depends on this
// single capability.
type Browser interface {
	Open(url string) error
}

// SystemBrowser opens URLs with the platform's default handler, or with an
// explicit command when one is configured.
type SystemBrowser struct {
	// Command overrides the platform launcher, e.g. "firefox".
	Command string
}

// Open launches the URL. The spawned process is not waited on; the launcher
// returns as soon as the handoff succeeds.
func (b *SystemBrowser) Open(url string) error {
	if url == "" {
		return errors.New("cannot open empty url")
	}

	name, args := b.launcher()
	args = append(args, url)
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

func (b *SystemBrowser) launcher() (string, []string) {
	if b.Command != "" {
		return b.Command, nil
	}
	switch runtime.GOOS {
	case "windows":
		return "cmd", []string{"/c", "start"}
	case "darwin":
		return "open", nil
	default:
		return "xdg-open", nil
	}
}
