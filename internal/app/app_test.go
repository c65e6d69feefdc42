package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mlib/internal/config"
	"mlib/internal/mlib"
	"mlib/internal/testutil"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Snapshot.Encryption = config.EncryptionConfig{Type: "test"}
	cfg.Catalog = config.CatalogConfig{MasterName: "family", LocalName: "laptop"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *MlibApp {
	t.Helper()
	a, err := NewMlibApp(cfg, operation)
	if err != nil {
		t.Fatalf("NewMlibApp() error = %v", err)
	}
	return a
}

// createLibrary creates a catalog in a temp dir and returns its path.
func createLibrary(t *testing.T, cfg *config.Config) string {
	t.Helper()
	a := newTestApp(t, cfg, "Create")
	info, err := a.CreateCatalog(t.TempDir(), "photos")
	if err != nil {
		t.Fatalf("CreateCatalog() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return info.Path
}

func TestNewMlibApp_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Lock.Type = "mutex"

	if _, err := NewMlibApp(cfg, "Info"); err == nil {
		t.Fatal("NewMlibApp() error = nil, want invalid config error")
	}
}

func TestMlibApp_CreateCatalog(t *testing.T) {
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg, "Create")
	defer a.Close()

	info, err := a.CreateCatalog(t.TempDir(), "photos")
	if err != nil {
		t.Fatalf("CreateCatalog() error = %v", err)
	}
	if info.MasterName != "family" || info.LocalName != "laptop" {
		t.Errorf("names = %q/%q, want family/laptop", info.MasterName, info.LocalName)
	}
	if filepath.Base(info.Path) != "photos.mlib" {
		t.Errorf("Path = %q, want photos.mlib", info.Path)
	}
}

func TestMlibApp_OpenLibrary(t *testing.T) {
	cfg := newTestConfig(t)
	path := createLibrary(t, cfg)

	t.Run("no path configured", func(t *testing.T) {
		a := newTestApp(t, cfg, "Info")
		defer a.Close()
		if err := a.OpenLibrary(""); err == nil {
			t.Error("OpenLibrary() error = nil, want error")
		}
	})

	t.Run("falls back to configured library", func(t *testing.T) {
		withLib := *cfg
		withLib.LibraryPath = path
		a := newTestApp(t, &withLib, "Info")
		defer a.Close()
		if err := a.OpenLibrary(""); err != nil {
			t.Fatalf("OpenLibrary() error = %v", err)
		}
		if a.Catalog().Path() != path {
			t.Errorf("Path() = %q, want %q", a.Catalog().Path(), path)
		}
	})

	t.Run("second handle is refused", func(t *testing.T) {
		first := newTestApp(t, cfg, "Info")
		defer first.Close()
		if err := first.OpenLibrary(path); err != nil {
			t.Fatalf("OpenLibrary() error = %v", err)
		}

		second := newTestApp(t, cfg, "Info")
		defer second.Close()
		if err := second.OpenLibrary(path); !errors.Is(err, mlib.ErrLockHeld) {
			t.Errorf("OpenLibrary() error = %v, want ErrLockHeld", err)
		}
	})
}

func TestMlibApp_AddFiles(t *testing.T) {
	cfg := newTestConfig(t)
	path := createLibrary(t, cfg)

	src := t.TempDir()
	testutil.WriteFile(t, src, "a.txt", "alpha")
	testutil.WriteFile(t, src, "b.txt", "beta")
	testutil.WriteFile(t, src, "sub/copy.txt", "alpha")

	a := newTestApp(t, cfg, "AddFiles")
	defer a.Close()
	if err := a.OpenLibrary(path); err != nil {
		t.Fatalf("OpenLibrary() error = %v", err)
	}

	files, err := a.CollectFiles([]string{src}, true)
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("CollectFiles() = %v, want 3 files", files)
	}

	var seen int
	results, err := a.AddFiles(files, mlib.MediaText, mlib.AddOptions{Caption: "notes"}, func(AddResult) { seen++ })
	if err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	if seen != 3 {
		t.Errorf("progress called %d times, want 3", seen)
	}

	var added, dups int
	for _, r := range results {
		switch {
		case r.Err == nil:
			added++
		case r.Duplicate():
			dups++
		default:
			t.Errorf("unexpected error for %s: %v", r.Path, r.Err)
		}
	}
	if added != 2 || dups != 1 {
		t.Errorf("added=%d duplicates=%d, want 2 and 1", added, dups)
	}

	sum := a.Catalog().Summary()
	if sum.MediaCount != 2 || sum.MediaSize != int64(len("alpha")+len("beta")) {
		t.Errorf("Summary() = %+v", sum)
	}
	if a.op.Status != "success" {
		t.Errorf("op.Status = %q, duplicates should not fail the run", a.op.Status)
	}
}

func TestMlibApp_UpdateMedia(t *testing.T) {
	cfg := newTestConfig(t)
	path := createLibrary(t, cfg)
	file := testutil.WriteFile(t, t.TempDir(), "cover.txt", "cover")

	a := newTestApp(t, cfg, "Update")
	defer a.Close()
	if err := a.OpenLibrary(path); err != nil {
		t.Fatalf("OpenLibrary() error = %v", err)
	}
	id, err := a.Catalog().AddMedia(file, mlib.MediaText, mlib.AddOptions{Comment: "draft"})
	if err != nil {
		t.Fatalf("AddMedia() error = %v", err)
	}

	if err := a.UpdateMedia(id, []string{"caption=Front cover", "type=image", "comment=", "hash=ignored"}); err != nil {
		t.Fatalf("UpdateMedia() error = %v", err)
	}

	m, err := a.Catalog().GetMedia(id)
	if err != nil {
		t.Fatalf("GetMedia() error = %v", err)
	}
	if m.Caption != "Front cover" || m.Type != mlib.MediaImage || m.Comment != "" {
		t.Errorf("media = %+v", m)
	}

	if err := a.UpdateMedia(id, []string{"caption"}); err == nil {
		t.Error("UpdateMedia() with bad assignment error = nil, want error")
	}
}

func TestMlibApp_SnapshotRoundTrip(t *testing.T) {
	cfg := newTestConfig(t)
	path := createLibrary(t, cfg)
	out := t.TempDir()
	snap := filepath.Join(out, "index.snap")

	a := newTestApp(t, cfg, "SnapshotExport")
	if err := a.OpenLibrary(path); err != nil {
		t.Fatalf("OpenLibrary() error = %v", err)
	}
	size, err := a.ExportSnapshot(snap)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if size == 0 {
		t.Error("ExportSnapshot() size = 0")
	}
	if _, err := a.ExportSnapshot(snap); !errors.Is(err, mlib.ErrAlreadyExists) {
		t.Errorf("second ExportSnapshot() error = %v, want ErrAlreadyExists", err)
	}
	a.Close()

	data, err := os.ReadFile(snap)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if !strings.HasPrefix(string(data), "MLIBSEAL") {
		t.Error("snapshot is not sealed")
	}

	r := newTestApp(t, cfg, "SnapshotRestore")
	defer r.Close()
	dest := filepath.Join(out, "restored.db")
	if err := r.RestoreSnapshot(snap, dest, "secret"); err != nil {
		t.Fatalf("RestoreSnapshot() error = %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("restored index missing: %v", err)
	}
}

func TestMlibApp_SetupKeys_Disabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Snapshot.Encryption = config.EncryptionConfig{Type: "none"}
	a := newTestApp(t, cfg, "KeysInit")
	defer a.Close()

	if a.SnapshotEncrypted() {
		t.Error("SnapshotEncrypted() = true, want false")
	}
	if err := a.SetupKeys("secret"); err == nil {
		t.Error("SetupKeys() error = nil, want error")
	}
}

func TestMlibApp_Close_LogsOperation(t *testing.T) {
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg, "Verify")
	a.Fail(errors.New("boom"))
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "mlib.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "operation finished\tname=Verify\tstatus=error") {
		t.Errorf("log = %q, want finished record", data)
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"caption=a=b", "comment="})
	if err != nil {
		t.Fatalf("ParseAssignments() error = %v", err)
	}
	if got["caption"] != "a=b" || got["comment"] != "" {
		t.Errorf("ParseAssignments() = %v", got)
	}

	for _, bad := range []string{"caption", "=x"} {
		if _, err := ParseAssignments([]string{bad}); err == nil {
			t.Errorf("ParseAssignments(%q) error = nil, want error", bad)
		}
	}
}

func TestParseOrdinal(t *testing.T) {
	for _, s := range []string{"", "-"} {
		got, err := ParseOrdinal(s)
		if err != nil || got != nil {
			t.Errorf("ParseOrdinal(%q) = %v, %v; want nil, nil", s, got, err)
		}
	}

	got, err := ParseOrdinal("4")
	if err != nil || got == nil || *got != 4 {
		t.Errorf("ParseOrdinal(\"4\") = %v, %v", got, err)
	}

	if _, err := ParseOrdinal("four"); err == nil {
		t.Error("ParseOrdinal(\"four\") error = nil, want error")
	}
}
