package fs

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mlib/internal/mlib"
)

// buildTree creates files (relative paths) under a fresh temp dir.
func buildTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("creating dir: %v", err)
		}
		if err := os.WriteFile(p, []byte(f), 0644); err != nil {
			t.Fatalf("writing %s: %v", f, err)
		}
	}
	return root
}

func joinAll(root string, rel ...string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(root, r)
	}
	return out
}

func TestScanner_Collect(t *testing.T) {
	root := buildTree(t,
		"a.jpg",
		"b.png",
		"notes.tmp",
		".DS_Store",
		"sub/c.jpg",
		"sub/deep/d.jpg",
		"old.mlib/index.db",
	)

	t.Run("flat scan skips subdirectories", func(t *testing.T) {
		got, err := NewScanner(nil).Collect([]string{root}, false)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		want := joinAll(root, "a.jpg", "b.png", "notes.tmp")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Collect() = %v, want %v", got, want)
		}
	})

	t.Run("recursive scan skips catalogs", func(t *testing.T) {
		got, err := NewScanner([]string{"*.tmp"}).Collect([]string{root}, true)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		want := joinAll(root, "a.jpg", "b.png", "sub/c.jpg", "sub/deep/d.jpg")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Collect() = %v, want %v", got, want)
		}
	})

	t.Run("ignored directory is pruned", func(t *testing.T) {
		got, err := NewScanner([]string{"deep/"}).Collect([]string{filepath.Join(root, "sub")}, true)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		want := joinAll(root, "sub/c.jpg")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Collect() = %v, want %v", got, want)
		}
	})

	t.Run("named files are included once", func(t *testing.T) {
		file := filepath.Join(root, "notes.tmp")
		got, err := NewScanner([]string{"*.tmp"}).Collect([]string{file, root, file}, false)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		want := joinAll(root, "notes.tmp", "a.jpg", "b.png")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Collect() = %v, want %v", got, want)
		}
	})
}

func TestScanner_Collect_IgnoreFile(t *testing.T) {
	root := buildTree(t, "a.jpg", "a.xmp", "b.jpg")
	if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("*.xmp\nb.jpg\n"), 0644); err != nil {
		t.Fatalf("writing ignore file: %v", err)
	}

	got, err := NewScanner(nil).Collect([]string{root}, true)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	want := joinAll(root, "a.jpg")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
}

func TestScanner_Collect_Errors(t *testing.T) {
	root := buildTree(t, "a.jpg")

	t.Run("missing path", func(t *testing.T) {
		_, err := NewScanner(nil).Collect([]string{filepath.Join(root, "nope.jpg")}, false)
		if !errors.Is(err, mlib.ErrNotExists) {
			t.Errorf("Collect() error = %v, want ErrNotExists", err)
		}
	})

	t.Run("symlink", func(t *testing.T) {
		link := filepath.Join(root, "link.jpg")
		if err := os.Symlink(filepath.Join(root, "a.jpg"), link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		_, err := NewScanner(nil).Collect([]string{link}, false)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Collect() error = %v, want ErrUnsupported", err)
		}
	})
}
