package mlib

import (
	"errors"
	"testing"
)

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		in   string
		want MediaType
	}{
		{in: "image", want: MediaImage},
		{in: "TEXT", want: MediaText},
		{in: "Audio", want: MediaAudio},
		{in: "video", want: MediaVideo},
		{in: "other", want: MediaOther},
	}
	for _, tt := range tests {
		got, err := ParseMediaType(tt.in)
		if err != nil {
			t.Fatalf("ParseMediaType(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMediaType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseMediaType("hologram"); !errors.Is(err, ErrInvalidMediaType) {
		t.Errorf("ParseMediaType(hologram) error = %v, want ErrInvalidMediaType", err)
	}
}

func TestMediaType_Values(t *testing.T) {
	// Persisted in the index; must never change.
	want := map[MediaType]int{MediaImage: 1, MediaText: 2, MediaAudio: 3, MediaVideo: 4, MediaOther: 10}
	for kind, n := range want {
		if int(kind) != n {
			t.Errorf("%v = %d, want %d", kind, int(kind), n)
		}
	}
	if MediaType(5).Valid() {
		t.Error("MediaType(5).Valid() = true")
	}
	if got := MediaType(5).String(); got != "MediaType(5)" {
		t.Errorf("String() = %q", got)
	}
}

func TestFilterUpdate(t *testing.T) {
	t.Run("drops unknown and protected fields", func(t *testing.T) {
		got, err := FilterUpdate(map[string]any{
			"caption":   "Sunset",
			"hash":      "ABC",
			"id":        5,
			"series_no": 2,
			"bogus":     true,
		})
		if err != nil {
			t.Fatalf("FilterUpdate() error = %v", err)
		}
		if len(got) != 1 || got["caption"] != "Sunset" {
			t.Errorf("FilterUpdate() = %v, want only caption", got)
		}
	})

	t.Run("nil clears text fields", func(t *testing.T) {
		got, err := FilterUpdate(map[string]any{"comment": nil})
		if err != nil {
			t.Fatalf("FilterUpdate() error = %v", err)
		}
		if got["comment"] != "" {
			t.Errorf("comment = %v, want empty", got["comment"])
		}
	})

	t.Run("type accepts names and numbers", func(t *testing.T) {
		for _, v := range []any{"audio", 3, int64(3), MediaAudio} {
			got, err := FilterUpdate(map[string]any{"type": v})
			if err != nil {
				t.Fatalf("FilterUpdate(type=%v) error = %v", v, err)
			}
			if got["type"] != MediaAudio {
				t.Errorf("FilterUpdate(type=%v) = %v, want Audio", v, got["type"])
			}
		}
	})

	t.Run("rejects bad values", func(t *testing.T) {
		tests := []struct {
			fields map[string]any
			want   error
		}{
			{fields: map[string]any{"caption": 7}, want: ErrInvalidValue},
			{fields: map[string]any{"filename": ""}, want: ErrInvalidValue},
			{fields: map[string]any{"type": 42}, want: ErrInvalidMediaType},
			{fields: map[string]any{"type": 1.5}, want: ErrInvalidValue},
		}
		for _, tt := range tests {
			if _, err := FilterUpdate(tt.fields); !errors.Is(err, tt.want) {
				t.Errorf("FilterUpdate(%v) error = %v, want %v", tt.fields, err, tt.want)
			}
		}
	})
}

func TestUUIDGenerator(t *testing.T) {
	gen := UUIDGenerator{}
	seen := make(map[string]bool)
	for range 20 {
		id := gen.New()
		if !ValidUUID(id) {
			t.Fatalf("New() = %q, not a valid UUID", id)
		}
		if id[14] != '1' {
			t.Errorf("New() = %q, want version 1", id)
		}
		for _, r := range id {
			if r >= 'a' && r <= 'f' {
				t.Fatalf("New() = %q, want uppercase", id)
			}
		}
		if seen[id] {
			t.Fatalf("New() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestValidUUID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", want: true},
		{in: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", want: true},
		{in: "", want: false},
		{in: "not-a-uuid", want: false},
		{in: "6BA7B8109DAD11D180B400C04FD430C8", want: false},
		{in: "{6BA7B810-9DAD-11D1-80B4-00C04FD430C8}", want: false},
	}
	for _, tt := range tests {
		if got := ValidUUID(tt.in); got != tt.want {
			t.Errorf("ValidUUID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
