// Package probe reads format details from stored media.
package probe

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders for image.DecodeConfig
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"mlib/internal/mlib"
)

// Prober dispatches on media type: image headers for images, embedded tags
// for audio, the file extension for everything else.
type Prober struct{}

// New returns a Prober.
func New() *Prober {
	return &Prober{}
}

func (p *Prober) Probe(kind mlib.MediaType, ext string, r io.ReadSeeker) (*mlib.Detail, error) {
	switch kind {
	case mlib.MediaImage:
		return probeImage(ext, r)
	case mlib.MediaAudio:
		return probeAudio(ext, r)
	default:
		return &mlib.Detail{Format: formatFromExt(ext)}, nil
	}
}

func probeImage(ext string, r io.Reader) (*mlib.Detail, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return &mlib.Detail{Format: formatFromExt(ext)}, nil
		}
		return nil, fmt.Errorf("decoding image header: %w", err)
	}
	return &mlib.Detail{
		Format: strings.ToUpper(format),
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func probeAudio(ext string, r io.ReadSeeker) (*mlib.Detail, error) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		// Untagged, truncated and unsupported files all land here; the
		// extension is the best format guess left.
		detail := &mlib.Detail{Format: formatFromExt(ext)}
		if !errors.Is(err, tag.ErrNoTagsFound) {
			detail.Tags = map[string]string{"tag_error": err.Error()}
		}
		return detail, nil
	}

	detail := &mlib.Detail{
		Format: string(m.FileType()),
		Tags:   make(map[string]string),
	}
	if detail.Format == "" || m.FileType() == tag.UnknownFileType {
		detail.Format = formatFromExt(ext)
	}

	set := func(key, value string) {
		if value != "" {
			detail.Tags[key] = value
		}
	}
	set("tag_format", string(m.Format()))
	set("title", m.Title())
	set("artist", m.Artist())
	set("album", m.Album())
	set("album_artist", m.AlbumArtist())
	set("genre", m.Genre())
	if m.Year() > 0 {
		set("year", strconv.Itoa(m.Year()))
	}
	if track, _ := m.Track(); track > 0 {
		set("track", strconv.Itoa(track))
	}
	return detail, nil
}

func formatFromExt(ext string) string {
	return strings.ToUpper(strings.TrimPrefix(ext, "."))
}

var _ mlib.Prober = (*Prober)(nil)
