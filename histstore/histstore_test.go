package histstore

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/framegrace/texelhist/histbuf"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	hb := newBuffer(t, 8, 6)
	hb.Push(histbuf.CellsFromStringStyled("Hello ", histbuf.Color{Mode: histbuf.ColorModeStandard, Value: 2}, histbuf.DefaultBG, histbuf.AttrBold), false)
	hb.Push(histbuf.CellsFromString("World"), true)
	hb.Push(histbuf.CellsFromStringStyled("X", histbuf.Color{Mode: histbuf.ColorMode256, Value: 196}, histbuf.Color{Mode: histbuf.ColorModeRGB, R: 10, G: 20, B: 30}, 0), false)
	hb.Push(histbuf.CellsFromString("世界"), false)

	path := filepath.Join(t.TempDir(), "session.hist")
	if err := Save(path, hb, DefaultStoreConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, DefaultStoreConfig())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Columns() != hb.Columns() || loaded.Capacity() != hb.Capacity() {
		t.Errorf("geometry changed: expected %dx%d, got %dx%d",
			hb.Capacity(), hb.Columns(), loaded.Capacity(), loaded.Columns())
	}
	if loaded.Count() != hb.Count() {
		t.Fatalf("expected %d rows, got %d", hb.Count(), loaded.Count())
	}
	for n := 0; n < hb.Count(); n++ {
		want, _ := hb.Row(n)
		got, _ := loaded.Row(n)
		if got.Continued != want.Continued {
			t.Errorf("Row(%d): continued flag expected %v, got %v", n, want.Continued, got.Continued)
		}
		for c := range want.Cells {
			if got.Cells[c] != want.Cells[c] {
				t.Errorf("Row(%d) cell %d: expected %+v, got %+v", n, c, want.Cells[c], got.Cells[c])
			}
		}
	}
	if exportANSI(t, loaded) != exportANSI(t, hb) {
		t.Error("ANSI export differs after round trip")
	}
}

func TestSaveLoad_EmptyBuffer(t *testing.T) {
	hb := newBuffer(t, 5, 10)
	path := filepath.Join(t.TempDir(), "empty.hist")
	if err := Save(path, hb, DefaultStoreConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, DefaultStoreConfig())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 0 || loaded.Capacity() != 5 || loaded.Columns() != 10 {
		t.Errorf("expected empty 5x10 buffer, got count=%d capacity=%d columns=%d",
			loaded.Count(), loaded.Capacity(), loaded.Columns())
	}
}

func TestSaveLoad_PreservesRingOrder(t *testing.T) {
	hb := newBuffer(t, 3, 8)
	for _, s := range []string{"L1", "L2", "L3", "L4", "L5"} {
		hb.Push(histbuf.CellsFromString(s), false)
	}

	path := filepath.Join(t.TempDir(), "ring.hist")
	if err := Save(path, hb, DefaultStoreConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, DefaultStoreConfig())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := exportText(t, loaded); got != "L3\nL4\nL5\n" {
		t.Errorf("expected chronological content preserved, got %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hist"), DefaultStoreConfig())
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoad_RejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.hist")
	if err := os.WriteFile(path, []byte("this is not a snapshot, not even close"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path, DefaultStoreConfig())
	if err == nil || !strings.Contains(err.Error(), "invalid magic") {
		t.Errorf("expected an invalid magic error, got %v", err)
	}
}

func TestLoad_RejectsUnsupportedVersion(t *testing.T) {
	header := make([]byte, headerSize)
	copy(header[0:8], snapshotMagic)
	binary.LittleEndian.PutUint32(header[8:12], 99)
	binary.LittleEndian.PutUint32(header[16:20], 4)
	binary.LittleEndian.PutUint32(header[20:24], 4)
	binary.LittleEndian.PutUint32(header[24:28], 0)

	path := filepath.Join(t.TempDir(), "future.hist")
	if err := os.WriteFile(path, header, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path, DefaultStoreConfig())
	if err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Errorf("expected an unsupported version error, got %v", err)
	}
}

func TestLoad_TruncatedKeepsCompleteRows(t *testing.T) {
	hb := newBuffer(t, 6, 4)
	for _, s := range []string{"aaaa", "bbbb", "cccc"} {
		hb.Push(histbuf.CellsFromString(s), false)
	}

	path := filepath.Join(t.TempDir(), "cut.hist")
	if err := Save(path, hb, DefaultStoreConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Chop the file mid-way through the third row record.
	recordSize := int64(1 + 4*cellSize)
	if err := os.Truncate(path, int64(headerSize)+2*recordSize+5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	loaded, err := Load(path, DefaultStoreConfig())
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if loaded == nil {
		t.Fatal("expected the complete rows back alongside ErrTruncated")
	}
	if got := exportText(t, loaded); got != "aaaa\nbbbb\n" {
		t.Errorf("expected the two complete rows, got %q", got)
	}
}

// Helper to create a buffer or fail the test
func newBuffer(t *testing.T, rows, cols int) *histbuf.HistoryBuffer {
	t.Helper()
	hb, err := histbuf.New(rows, cols)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", rows, cols, err)
	}
	return hb
}

// Helper to collect the plain-text export
func exportText(t *testing.T, hb *histbuf.HistoryBuffer) string {
	t.Helper()
	var sb strings.Builder
	if err := hb.ExportText(func(s string) error { sb.WriteString(s); return nil }); err != nil {
		t.Fatalf("ExportText: %v", err)
	}
	return sb.String()
}

// Helper to collect the ANSI export
func exportANSI(t *testing.T, hb *histbuf.HistoryBuffer) string {
	t.Helper()
	var sb strings.Builder
	if err := hb.ExportANSI(func(s string) error { sb.WriteString(s); return nil }); err != nil {
		t.Fatalf("ExportANSI: %v", err)
	}
	return sb.String()
}
