package tone

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Source identifies where a loaded profile came from.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceDefault  Source = "default"
)

// Loader resolves the session tone profile.
type Loader struct {
	// Primary is the user-provided profile. May be empty.
	Primary string
	// Fallback is a writable location that receives the embedded default.
	Fallback string
}

// Load tries Primary, then Fallback. If neither yields a usable profile the
// embedded default is written to Fallback and returned.
func (l Loader) Load() (*Profile, Source, error) {
	if p, err := loadFile(l.Primary); err == nil {
		slog.Info("Tone: profile loaded", "path", l.Primary, "points", len(p.Points))
		return p, SourcePrimary, nil
	} else if l.Primary != "" {
		slog.Warn("Tone: primary profile unavailable", "path", l.Primary, "error", err)
	}

	if p, err := loadFile(l.Fallback); err == nil {
		slog.Info("Tone: fallback profile loaded", "path", l.Fallback, "points", len(p.Points))
		return p, SourceFallback, nil
	} else if l.Fallback != "" && !os.IsNotExist(err) {
		slog.Warn("Tone: fallback profile unavailable", "path", l.Fallback, "error", err)
	}

	p, _, err := ParseString(DefaultProfileText)
	if err != nil {
		return nil, "", fmt.Errorf("embedded tone profile: %w", err)
	}

	if l.Fallback != "" {
		if err := WriteDefault(l.Fallback); err != nil {
			slog.Warn("Tone: failed to write default profile", "path", l.Fallback, "error", err)
		} else {
			slog.Info("Tone: default profile created", "path", l.Fallback)
		}
	}
	return p, SourceDefault, nil
}

// WriteDefault writes the embedded default profile to path, creating parent directories.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(DefaultProfileText), 0o644)
}

func loadFile(path string) (*Profile, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, _, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}
