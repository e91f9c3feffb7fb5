// ABOUTME: Track metadata reader
// ABOUTME: Reads ID3/Vorbis/MP4 tags with a filename fallback
package decode

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Tags holds display metadata for a file
type Tags struct {
	Title  string
	Artist string
	Album  string
}

// ReadTags reads embedded tags from path. Missing fields fall back to
// an "Artist - Title" split of the file name.
func ReadTags(path string) Tags {
	t := tagsFromName(path)

	f, err := os.Open(path)
	if err != nil {
		return t
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return t
	}

	if v := strings.TrimSpace(m.Title()); v != "" {
		t.Title = v
	}
	if v := strings.TrimSpace(m.Artist()); v != "" {
		t.Artist = v
	}
	if v := strings.TrimSpace(m.Album()); v != "" {
		t.Album = v
	}
	return t
}

func tagsFromName(path string) Tags {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if artist, title, ok := strings.Cut(name, " - "); ok {
		return Tags{Title: strings.TrimSpace(title), Artist: strings.TrimSpace(artist)}
	}
	return Tags{Title: name}
}
