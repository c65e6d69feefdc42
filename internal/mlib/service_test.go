package mlib_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mlib/internal/mlib"
	"mlib/internal/testutil"
)

type fixture struct {
	svc     *mlib.Service
	content mlib.ContentStore
	summary *testutil.MemorySummary
	logger  *testutil.RecordingLogger
	clock   *testutil.StubClock
	src     string
}

type stubProber struct {
	gotKind mlib.MediaType
	gotExt  string
	gotData string
}

func (p *stubProber) Probe(kind mlib.MediaType, ext string, r io.ReadSeeker) (*mlib.Detail, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.gotKind, p.gotExt, p.gotData = kind, ext, string(data)
	return &mlib.Detail{Format: "STUB"}, nil
}

func newFixture(t *testing.T, prober mlib.Prober) *fixture {
	t.Helper()
	f := &fixture{
		content: testutil.NewTestStore(t),
		summary: &testutil.MemorySummary{},
		logger:  &testutil.RecordingLogger{},
		clock:   testutil.FixedClock(),
		src:     t.TempDir(),
	}
	f.svc = mlib.NewService(testutil.NewTestIndex(t), f.content, f.summary, prober, f.logger, f.clock, testutil.NewStubIDGenerator())
	return f
}

func (f *fixture) add(t *testing.T, name, content string) int64 {
	t.Helper()
	id, err := f.svc.AddMedia(testutil.WriteFile(t, f.src, name, content), mlib.MediaImage, mlib.AddOptions{})
	if err != nil {
		t.Fatalf("AddMedia(%s) error = %v", name, err)
	}
	return id
}

func TestService_AddMedia(t *testing.T) {
	t.Run("records the ingested file", func(t *testing.T) {
		f := newFixture(t, nil)
		path := testutil.WriteFile(t, f.src, "Café.jpg", "pixels")

		id, err := f.svc.AddMedia(path, mlib.MediaImage, mlib.AddOptions{Caption: "Terrace", SubType: "photo"})
		if err != nil {
			t.Fatalf("AddMedia() error = %v", err)
		}

		m, err := f.svc.GetMedia(id)
		if err != nil {
			t.Fatalf("GetMedia() error = %v", err)
		}
		if m.Hash != testutil.ContentHash([]byte("pixels")) {
			t.Errorf("Hash = %q", m.Hash)
		}
		if m.Filename != "Café.jpg" {
			t.Errorf("Filename = %q, want NFC form", m.Filename)
		}
		if m.Ext != ".jpg" || m.Size != 6 {
			t.Errorf("Ext, Size = %q, %d", m.Ext, m.Size)
		}
		if !m.AddedAt.Equal(f.clock.Now()) {
			t.Errorf("AddedAt = %v, want %v", m.AddedAt, f.clock.Now())
		}
		if m.Caption != "Terrace" || m.SubType != "photo" || m.Type != mlib.MediaImage {
			t.Errorf("media = %+v", m)
		}
		if m.SeriesUUID != "" || m.SeriesNo != nil {
			t.Errorf("new media attached to series %q", m.SeriesUUID)
		}

		if got := f.svc.Summary(); got.MediaCount != 1 || got.MediaSize != 6 {
			t.Errorf("Summary() = %+v", got)
		}
		if !f.logger.Contains("INFO media added") {
			t.Errorf("log = %v", f.logger.Entries)
		}

		// The source is left in place.
		if _, err := os.Stat(path); err != nil {
			t.Errorf("source file: %v", err)
		}
	})

	t.Run("rejects unknown media type", func(t *testing.T) {
		f := newFixture(t, nil)
		path := testutil.WriteFile(t, f.src, "a.bin", "x")

		_, err := f.svc.AddMedia(path, mlib.MediaType(7), mlib.AddOptions{})
		if !errors.Is(err, mlib.ErrInvalidMediaType) {
			t.Fatalf("AddMedia() error = %v, want ErrInvalidMediaType", err)
		}
		if ok, _ := f.content.Exists(testutil.ContentHash([]byte("x")), ".bin"); ok {
			t.Error("content stored for rejected media")
		}
	})

	t.Run("rejects duplicate content under another name", func(t *testing.T) {
		f := newFixture(t, nil)
		f.add(t, "a.jpg", "same")

		_, err := f.svc.AddMedia(testutil.WriteFile(t, f.src, "b.png", "same"), mlib.MediaImage, mlib.AddOptions{})
		if !errors.Is(err, mlib.ErrAlreadyExists) {
			t.Fatalf("AddMedia() error = %v, want ErrAlreadyExists", err)
		}
		if got := f.svc.Summary().MediaCount; got != 1 {
			t.Errorf("MediaCount = %d, want 1", got)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.AddMedia(filepath.Join(f.src, "nope.jpg"), mlib.MediaImage, mlib.AddOptions{})
		if !errors.Is(err, mlib.ErrNotExists) {
			t.Fatalf("AddMedia() error = %v, want ErrNotExists", err)
		}
	})

	t.Run("summary failure still returns the id", func(t *testing.T) {
		f := newFixture(t, nil)
		f.summary.FailNext = errors.New("disk full")

		id, err := f.svc.AddMedia(testutil.WriteFile(t, f.src, "a.jpg", "a"), mlib.MediaImage, mlib.AddOptions{})
		if err == nil {
			t.Fatal("AddMedia() error = nil, want summary error")
		}
		if _, gerr := f.svc.GetMedia(id); gerr != nil {
			t.Errorf("GetMedia(%d) error = %v, media should be indexed", id, gerr)
		}
	})

	t.Run("re-adding removed content gets a new id", func(t *testing.T) {
		f := newFixture(t, nil)
		first := f.add(t, "a.jpg", "again")
		if err := f.svc.RemoveMedia(first); err != nil {
			t.Fatalf("RemoveMedia() error = %v", err)
		}

		second := f.add(t, "a.jpg", "again")
		if second == first {
			t.Errorf("id %d reused", second)
		}
	})
}

func TestService_RemoveMedia(t *testing.T) {
	t.Run("deletes file and row", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.add(t, "a.jpg", "abc")
		path, err := f.svc.MediaPath(id)
		if err != nil {
			t.Fatalf("MediaPath() error = %v", err)
		}

		if err := f.svc.RemoveMedia(id); err != nil {
			t.Fatalf("RemoveMedia() error = %v", err)
		}

		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("stored file still present: %v", err)
		}
		if _, err := f.svc.GetMedia(id); !errors.Is(err, mlib.ErrNotFound) {
			t.Errorf("GetMedia() error = %v, want ErrNotFound", err)
		}
		if got := f.svc.Summary(); got.MediaCount != 0 || got.MediaSize != 0 {
			t.Errorf("Summary() = %+v, want zero", got)
		}
	})

	t.Run("missing file is inconsistent and keeps the row", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.add(t, "a.jpg", "abc")
		path, _ := f.svc.MediaPath(id)
		if err := os.Remove(path); err != nil {
			t.Fatalf("removing stored file: %v", err)
		}

		if err := f.svc.RemoveMedia(id); !errors.Is(err, mlib.ErrInconsistent) {
			t.Fatalf("RemoveMedia() error = %v, want ErrInconsistent", err)
		}
		if _, err := f.svc.GetMedia(id); err != nil {
			t.Errorf("GetMedia() error = %v, row should remain", err)
		}
		if got := f.svc.Summary().MediaCount; got != 1 {
			t.Errorf("MediaCount = %d, want 1", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t, nil)
		if err := f.svc.RemoveMedia(99); !errors.Is(err, mlib.ErrNotFound) {
			t.Errorf("RemoveMedia() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("removing a series member updates the count", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.add(t, "a.jpg", "abc")
		uuid, _ := f.svc.CreateSeries("Trip", "")
		if err := f.svc.AttachToSeries(id, uuid, mlib.Ordinal(1)); err != nil {
			t.Fatalf("AttachToSeries() error = %v", err)
		}

		if err := f.svc.RemoveMedia(id); err != nil {
			t.Fatalf("RemoveMedia() error = %v", err)
		}
		s, _ := f.svc.GetSeries(uuid)
		if s.MediaCount != 0 {
			t.Errorf("MediaCount = %d, want 0", s.MediaCount)
		}
	})
}

func TestService_UpdateMedia(t *testing.T) {
	f := newFixture(t, nil)
	id := f.add(t, "a.jpg", "abc")
	before, _ := f.svc.GetMedia(id)

	err := f.svc.UpdateMedia(id, map[string]any{
		"filename": "renamed.jpg",
		"type":     "video",
		"hash":     "FFFF",
		"id":       int64(42),
	})
	if err != nil {
		t.Fatalf("UpdateMedia() error = %v", err)
	}

	m, _ := f.svc.GetMedia(id)
	if m.Filename != "renamed.jpg" || m.Type != mlib.MediaVideo {
		t.Errorf("media = %+v", m)
	}
	if m.ID != before.ID || m.Hash != before.Hash || m.Ext != before.Ext || !m.AddedAt.Equal(before.AddedAt) {
		t.Errorf("protected fields changed: %+v -> %+v", before, m)
	}

	if err := f.svc.UpdateMedia(id, map[string]any{"type": 99}); !errors.Is(err, mlib.ErrInvalidMediaType) {
		t.Errorf("UpdateMedia() error = %v, want ErrInvalidMediaType", err)
	}
	if err := f.svc.UpdateMedia(404, map[string]any{"caption": "x"}); !errors.Is(err, mlib.ErrNotFound) {
		t.Errorf("UpdateMedia() error = %v, want ErrNotFound", err)
	}
}

func TestService_ListMedia(t *testing.T) {
	f := newFixture(t, nil)
	a := f.add(t, "a.jpg", "a")
	f.clock.Advance(time.Minute)
	b := f.add(t, "b.jpg", "b")

	all, err := f.svc.ListMedia()
	if err != nil {
		t.Fatalf("ListMedia() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != a || all[1].ID != b {
		t.Errorf("ListMedia() = %v", all)
	}
	if !all[1].AddedAt.After(all[0].AddedAt) {
		t.Errorf("AddedAt not advanced: %v, %v", all[0].AddedAt, all[1].AddedAt)
	}
}

func TestService_MediaPathAndVerify(t *testing.T) {
	f := newFixture(t, nil)
	keep := f.add(t, "keep.jpg", "keep")
	lost := f.add(t, "lost.jpg", "lost")

	path, err := f.svc.MediaPath(lost)
	if err != nil {
		t.Fatalf("MediaPath() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "lost" {
		t.Fatalf("stored file = %q, %v", data, err)
	}

	missing, err := f.svc.Verify()
	if err != nil || len(missing) != 0 {
		t.Fatalf("Verify() = %v, %v; want none missing", missing, err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing stored file: %v", err)
	}

	if _, err := f.svc.MediaPath(lost); !errors.Is(err, mlib.ErrInconsistent) {
		t.Errorf("MediaPath() error = %v, want ErrInconsistent", err)
	}
	if _, err := f.svc.MediaPath(keep); err != nil {
		t.Errorf("MediaPath(keep) error = %v", err)
	}

	missing, err = f.svc.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(missing) != 1 || missing[0].ID != lost {
		t.Errorf("Verify() = %v, want media %d", missing, lost)
	}
	if !f.logger.Contains("WARN catalog inconsistent missing=1") {
		t.Errorf("log = %v", f.logger.Entries)
	}
}

func TestService_ProbeMedia(t *testing.T) {
	t.Run("passes stored bytes to the prober", func(t *testing.T) {
		p := &stubProber{}
		f := newFixture(t, p)
		id := f.add(t, "a.png", "image-bytes")

		d, err := f.svc.ProbeMedia(id)
		if err != nil {
			t.Fatalf("ProbeMedia() error = %v", err)
		}
		if d.Format != "STUB" {
			t.Errorf("Format = %q", d.Format)
		}
		if p.gotKind != mlib.MediaImage || p.gotExt != ".png" || p.gotData != "image-bytes" {
			t.Errorf("prober got %v %q %q", p.gotKind, p.gotExt, p.gotData)
		}
	})

	t.Run("no prober", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.add(t, "a.png", "x")
		if _, err := f.svc.ProbeMedia(id); err == nil {
			t.Error("ProbeMedia() error = nil, want error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t, &stubProber{})
		id := f.add(t, "a.png", "x")
		path, _ := f.svc.MediaPath(id)
		os.Remove(path)

		if _, err := f.svc.ProbeMedia(id); !errors.Is(err, mlib.ErrInconsistent) {
			t.Errorf("ProbeMedia() error = %v, want ErrInconsistent", err)
		}
	})
}

func TestService_Close(t *testing.T) {
	f := newFixture(t, nil)
	id := f.add(t, "a.jpg", "aaaa")

	if err := f.svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.svc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := f.svc.GetMedia(id); !errors.Is(err, mlib.ErrClosed) {
		t.Errorf("GetMedia() error = %v, want ErrClosed", err)
	}
	if _, err := f.svc.CreateSeries("Trip", ""); !errors.Is(err, mlib.ErrClosed) {
		t.Errorf("CreateSeries() error = %v, want ErrClosed", err)
	}

	src := testutil.WriteFile(t, f.src, "b.jpg", "bbbb")
	if _, err := f.svc.AddMedia(src, mlib.MediaImage, mlib.AddOptions{}); !errors.Is(err, mlib.ErrClosed) {
		t.Errorf("AddMedia() error = %v, want ErrClosed", err)
	}
	stored, err := f.content.Exists(testutil.ContentHash([]byte("bbbb")), ".jpg")
	if err != nil || stored {
		t.Errorf("content stored after Close: %v, %v", stored, err)
	}
}
