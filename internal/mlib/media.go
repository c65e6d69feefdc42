package mlib

import (
	"fmt"
	"strings"
	"time"
)

// MediaType is the top-level classification of a media file. The numeric
// values are persisted in the index and must not change.
type MediaType int

const (
	MediaImage MediaType = 1
	MediaText  MediaType = 2
	MediaAudio MediaType = 3
	MediaVideo MediaType = 4
	MediaOther MediaType = 10
)

var mediaTypeNames = map[MediaType]string{
	MediaImage: "Image",
	MediaText:  "Text",
	MediaAudio: "Audio",
	MediaVideo: "Video",
	MediaOther: "Other",
}

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	_, ok := mediaTypeNames[t]
	return ok
}

func (t MediaType) String() string {
	if name, ok := mediaTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MediaType(%d)", int(t))
}

// ParseMediaType accepts a type name (case-insensitive) such as "image".
func ParseMediaType(s string) (MediaType, error) {
	for t, name := range mediaTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMediaType, s)
}

// Media is one ingested file as recorded in the index.
type Media struct {
	ID           int64
	Hash         string
	Filename     string
	Ext          string // original extension, fixed at ingest
	Size         int64
	Caption      string
	AddedAt      time.Time
	Type         MediaType
	SubType      string
	TypeAddition string
	SeriesUUID   string
	SeriesNo     *int64 // nil when unordered or not in a series
	Comment      string
}

// InSeries reports whether the media is attached to a well-formed series.
func (m *Media) InSeries() bool {
	return ValidUUID(m.SeriesUUID)
}

// AddOptions carries the optional attributes of a new media record.
type AddOptions struct {
	SubType      string
	TypeAddition string
	Caption      string
	Comment      string
}

// Updatable media fields. Anything else passed to an update is dropped.
const (
	FieldFilename     = "filename"
	FieldCaption      = "caption"
	FieldType         = "type"
	FieldSubType      = "sub_type"
	FieldTypeAddition = "type_addition"
	FieldComment      = "comment"
)

// UpdatableFields is the allow-list applied by media updates. Identifier,
// hash, timestamps and series linkage are never writable through it.
var UpdatableFields = map[string]bool{
	FieldFilename:     true,
	FieldCaption:      true,
	FieldType:         true,
	FieldSubType:      true,
	FieldTypeAddition: true,
	FieldComment:      true,
}

// FilterUpdate applies the allow-list to fields and normalizes values.
// Unknown names are silently dropped. Text fields accept string or nil
// (nil and "" clear the field); type accepts MediaType, int or a type name.
func FilterUpdate(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if !UpdatableFields[key] {
			continue
		}
		if key == FieldType {
			t, err := coerceMediaType(value)
			if err != nil {
				return nil, err
			}
			out[key] = t
			continue
		}
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		case *string:
			if v == nil {
				out[key] = ""
			} else {
				out[key] = *v
			}
		default:
			return nil, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidValue, key, value)
		}
		if key == FieldFilename && out[key] == "" {
			return nil, fmt.Errorf("%w: filename must not be empty", ErrInvalidValue)
		}
	}
	return out, nil
}

func coerceMediaType(value any) (MediaType, error) {
	var t MediaType
	switch v := value.(type) {
	case MediaType:
		t = v
	case int:
		t = MediaType(v)
	case int64:
		t = MediaType(v)
	case string:
		return ParseMediaType(v)
	default:
		return 0, fmt.Errorf("%w: type must be a media type, got %T", ErrInvalidValue, value)
	}
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMediaType, int(t))
	}
	return t, nil
}

// Series is a named, ordered grouping of media.
type Series struct {
	UUID       string
	Caption    string
	Comment    string
	MediaCount int64
}

// Summary is the denormalized statistics cache kept in catalog metadata.
// It is updated by the operations that change the counts and never
// recomputed from the index.
type Summary struct {
	MediaCount   int64 `json:"media_count"`
	GroupCount   int64 `json:"group_count"`
	SessionCount int64 `json:"session_count"`
	MediaSize    int64 `json:"media_size"` // bytes
}

// Detail holds format information probed from a stored media file.
type Detail struct {
	Format string
	Width  int
	Height int
	Tags   map[string]string
}

// Ordinal returns a pointer to n, for use as a series position.
func Ordinal(n int64) *int64 {
	return &n
}
