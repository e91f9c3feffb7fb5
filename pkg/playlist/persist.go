// ABOUTME: Playlist persistence as a JSON track list
// ABOUTME: Recovers moved files relative to the playlist and skips missing ones
package playlist

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// entry is the on-disk form of a track; length is in seconds
type entry struct {
	Path   string  `json:"path"`
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Album  string  `json:"album"`
	Length float64 `json:"length"`
}

// Save writes the tracks to path as indented JSON
func (p *Playlist) Save(path string) error {
	tracks := p.Tracks()
	if len(tracks) == 0 {
		return fmt.Errorf("playlist is empty")
	}

	entries := make([]entry, len(tracks))
	for i, t := range tracks {
		entries[i] = entry{
			Path:   t.Path,
			Title:  t.Title,
			Artist: t.Artist,
			Album:  t.Album,
			Length: t.Length.Seconds(),
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write playlist: %w", err)
	}

	log.Printf("Saved playlist with %d tracks to %s", len(entries), path)
	return nil
}

// Load reads a playlist file. Entries whose path no longer exists are
// retried relative to the playlist's directory, then skipped.
func Load(path string, opts ...Option) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	base := filepath.Dir(path)
	p := New(opts...)
	for _, e := range entries {
		resolved, ok := resolve(e.Path, base)
		if !ok {
			log.Printf("Skipping missing playlist entry: %s", e.Path)
			continue
		}

		t := Track{
			ID:     uuid.New().String(),
			Path:   resolved,
			Title:  e.Title,
			Artist: e.Artist,
			Album:  e.Album,
			Length: time.Duration(e.Length * float64(time.Second)),
		}
		if t.Title == "" {
			t.Title = filepath.Base(resolved)
		}
		p.Add(t)
	}

	if p.Len() == 0 {
		return nil, fmt.Errorf("no playable tracks in %s", path)
	}
	return p, nil
}

func resolve(path, base string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	if rel := filepath.Join(base, path); isFile(rel) {
		return rel, true
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
