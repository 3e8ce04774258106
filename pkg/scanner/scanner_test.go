package scanner

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestScanDataset(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "b.wav.annot.csv"))
	touch(t, filepath.Join(root, "b.wav.tb.txt"))
	touch(t, filepath.Join(root, "day2", "a.wav.annot.csv"))
	touch(t, filepath.Join(root, "day2", "a.wav.tb.txt"))
	touch(t, filepath.Join(root, "lonely.wav.annot.csv"))
	touch(t, filepath.Join(root, "notes.txt"))

	items, err := NewDatasetScanner(quietLogger()).ScanDataset(root)
	if err != nil {
		t.Fatalf("ScanDataset: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Stem != "b.wav" || items[0].Dir != root {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Stem != "a.wav" || items[1].Dir != filepath.Join(root, "day2") {
		t.Errorf("items[1] = %+v", items[1])
	}
	for _, it := range items {
		if it.ModTime.IsZero() {
			t.Errorf("%s: ModTime not set", it.Stem)
		}
	}
}

func TestItemFor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := NewDatasetScanner(quietLogger())
	annot := filepath.Join(root, "a.wav.annot.csv")
	touch(t, annot)

	if _, ok := s.ItemFor(annot); ok {
		t.Fatal("ItemFor returned a pair before the timebins file exists")
	}
	touch(t, filepath.Join(root, "a.wav.tb.txt"))
	item, ok := s.ItemFor(filepath.Join(root, "a.wav.tb.txt"))
	if !ok {
		t.Fatal("ItemFor did not find the completed pair")
	}
	if item.AnnotPath != annot {
		t.Errorf("AnnotPath = %q, want %q", item.AnnotPath, annot)
	}
	if _, ok := s.ItemFor(filepath.Join(root, "readme.md")); ok {
		t.Error("ItemFor accepted an irrelevant file")
	}
}

func TestScanDataset_SuffixesAreCaseSensitive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "b.wav.ANNOT.CSV"))
	touch(t, filepath.Join(root, "b.wav.TB.TXT"))
	touch(t, filepath.Join(root, "c.wav.annot.csv"))
	touch(t, filepath.Join(root, "c.wav.TB.TXT"))

	s := NewDatasetScanner(quietLogger())
	items, err := s.ScanDataset(root)
	if err != nil {
		t.Fatalf("ScanDataset: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want none: %+v", len(items), items[0])
	}
	if _, ok := s.ItemFor(filepath.Join(root, "b.wav.ANNOT.CSV")); ok {
		t.Error("ItemFor paired upper-case suffixes")
	}

	touch(t, filepath.Join(root, "c.wav.tb.txt"))
	items, err = s.ScanDataset(root)
	if err != nil {
		t.Fatalf("ScanDataset: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	for _, p := range []string{items[0].AnnotPath, items[0].TimebinsPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("item path %s: %v", p, err)
		}
	}
}
