package capture

import (
	"strings"
	"testing"

	"github.com/framegrace/texelhist/histbuf"
)

func TestLineWriter_PlainLines(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	w.Write([]byte("hello\nworld\n"))

	if hb.Count() != 2 {
		t.Fatalf("expected 2 rows, got %d", hb.Count())
	}
	if got := textOf(t, hb); got != "hello\nworld\n" {
		t.Errorf("expected %q, got %q", "hello\nworld\n", got)
	}
}

func TestLineWriter_SoftWrapMarksContinuation(t *testing.T) {
	hb, w := newWriter(t, 10, 5)
	w.Write([]byte("abcdefgh\n"))

	if hb.Count() != 2 {
		t.Fatalf("expected 2 rows, got %d", hb.Count())
	}
	row, _ := hb.Row(0)
	if !row.Continued {
		t.Error("wrapped tail row should be continued")
	}
	row, _ = hb.Row(1)
	if row.Continued {
		t.Error("line head row should not be continued")
	}
	if got := textOf(t, hb); got != "abcdefgh\n" {
		t.Errorf("expected the export to rejoin the line, got %q", got)
	}
}

// Styled input should survive capture and export unchanged when the
// styling is already minimal.
func TestLineWriter_SGRRoundTrip(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	in := "\x1b[31mred\x1b[0m ok\n"
	w.Write([]byte(in))

	var sb strings.Builder
	if err := hb.ExportANSI(func(s string) error { sb.WriteString(s); return nil }); err != nil {
		t.Fatalf("ExportANSI: %v", err)
	}
	if sb.String() != in {
		t.Errorf("expected %q, got %q", in, sb.String())
	}
}

func TestLineWriter_ExtendedColors(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	w.Write([]byte("\x1b[92mG\x1b[0m\n"))
	w.Write([]byte("\x1b[38;5;196mX\x1b[0m\n"))
	w.Write([]byte("\x1b[48;2;1;2;3mY\x1b[0m\n"))

	row, _ := hb.Row(2)
	want := histbuf.Color{Mode: histbuf.ColorModeStandard, Value: 10}
	if row.Cells[0].FG != want {
		t.Errorf("bright green: expected %+v, got %+v", want, row.Cells[0].FG)
	}
	row, _ = hb.Row(1)
	want = histbuf.Color{Mode: histbuf.ColorMode256, Value: 196}
	if row.Cells[0].FG != want {
		t.Errorf("256-color: expected %+v, got %+v", want, row.Cells[0].FG)
	}
	row, _ = hb.Row(0)
	want = histbuf.Color{Mode: histbuf.ColorModeRGB, R: 1, G: 2, B: 3}
	if row.Cells[0].BG != want {
		t.Errorf("rgb: expected %+v, got %+v", want, row.Cells[0].BG)
	}
}

func TestLineWriter_CarriageReturnOverwrites(t *testing.T) {
	hb, w := newWriter(t, 10, 8)
	w.Write([]byte("12345\rab\n"))

	if got := textOf(t, hb); got != "ab345\n" {
		t.Errorf("expected %q, got %q", "ab345\n", got)
	}
}

func TestLineWriter_Backspace(t *testing.T) {
	hb, w := newWriter(t, 10, 8)
	w.Write([]byte("abc\bX\n"))

	if got := textOf(t, hb); got != "abX\n" {
		t.Errorf("expected %q, got %q", "abX\n", got)
	}
}

func TestLineWriter_TabAdvances(t *testing.T) {
	hb, w := newWriter(t, 10, 12)
	w.Write([]byte("a\tb\n"))

	if got := textOf(t, hb); got != "a       b\n" {
		t.Errorf("expected tab to advance to column 8, got %q", got)
	}
}

func TestLineWriter_UTF8SplitAcrossWrites(t *testing.T) {
	hb, w := newWriter(t, 10, 10)
	// 世 is E4 B8 96; split it over two writes.
	w.Write([]byte{0xE4, 0xB8})
	w.Write([]byte{0x96, '\n'})

	row, _ := hb.Row(0)
	if row.Cells[0].Rune != '世' || !row.Cells[0].Wide {
		t.Errorf("expected reassembled wide rune, got %+v", row.Cells[0])
	}
}

func TestLineWriter_WideRuneWrapsAsUnit(t *testing.T) {
	hb, w := newWriter(t, 10, 3)
	w.Write([]byte("ab世\n"))

	if hb.Count() != 2 {
		t.Fatalf("expected 2 rows, got %d", hb.Count())
	}
	row, _ := hb.Row(0)
	if row.Cells[0].Rune != '世' || !row.Continued {
		t.Errorf("expected the wide rune to start the continuation row, got %+v", row)
	}
	// The seam leaves a blank on the wrapped row; joined text keeps it.
	if got := textOf(t, hb); got != "ab 世\n" {
		t.Errorf("expected %q, got %q", "ab 世\n", got)
	}
}

func TestLineWriter_IgnoresUnknownSequences(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	w.Write([]byte("\x1b[2J\x1b[10;10Hhello\x1b]0;title\x07 there\x1bM\n"))

	if got := textOf(t, hb); got != "hello there\n" {
		t.Errorf("expected control sequences swallowed, got %q", got)
	}
}

func TestLineWriter_OSCTerminatedByST(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	w.Write([]byte("\x1b]0;title\x1b\\x\n"))

	if got := textOf(t, hb); got != "x\n" {
		t.Errorf("expected %q, got %q", "x\n", got)
	}
}

func TestLineWriter_FlushCommitsPartialLine(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	w.Write([]byte("no newline"))

	if hb.Count() != 0 {
		t.Fatalf("partial line should not be committed yet, got %d rows", hb.Count())
	}
	w.Flush()
	if got := textOf(t, hb); got != "no newline\n" {
		t.Errorf("expected %q, got %q", "no newline\n", got)
	}

	// A second flush must not add another row.
	w.Flush()
	if hb.Count() != 1 {
		t.Errorf("expected repeated flush to be a no-op, got %d rows", hb.Count())
	}
}

func TestLineWriter_SetBufferFlushesAndRedirects(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	w.Write([]byte("tail"))

	nb, err := histbuf.New(10, 30)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.SetBuffer(nb)

	if got := textOf(t, hb); got != "tail\n" {
		t.Errorf("expected pending row flushed to the old buffer, got %q", got)
	}
	w.Write([]byte("fresh\n"))
	if got := textOf(t, nb); got != "fresh\n" {
		t.Errorf("expected new writes in the new buffer, got %q", got)
	}
	if hb.Count() != 1 {
		t.Errorf("old buffer should not grow after SetBuffer, got %d rows", hb.Count())
	}
}

func TestLineWriter_ResizeWidthKeepsPendingRow(t *testing.T) {
	_, w := newWriter(t, 10, 20)
	w.Write([]byte("first line\npending"))

	// A rewrap-then-flush ordering would strand "pending" in the old
	// buffer; ResizeWidth must carry it into the new one.
	if err := w.ResizeWidth(30); err != nil {
		t.Fatalf("ResizeWidth: %v", err)
	}

	nb := w.Buffer()
	if nb.Columns() != 30 {
		t.Fatalf("expected 30 columns after resize, got %d", nb.Columns())
	}
	if got := textOf(t, nb); got != "first line\npending\n" {
		t.Errorf("expected pending row to survive the resize, got %q", got)
	}

	w.Write([]byte("after\n"))
	if got := textOf(t, nb); got != "first line\npending\nafter\n" {
		t.Errorf("expected new writes appended, got %q", got)
	}
}

func TestLineWriter_ResizeWidthSameWidthIsNoOp(t *testing.T) {
	hb, w := newWriter(t, 10, 20)
	w.Write([]byte("part"))

	if err := w.ResizeWidth(20); err != nil {
		t.Fatalf("ResizeWidth: %v", err)
	}
	if w.Buffer() != hb {
		t.Error("same-width resize should keep the buffer")
	}
	// The partial row stays pending, not committed
	if hb.Count() != 0 {
		t.Errorf("expected no committed rows, got %d", hb.Count())
	}

	if err := w.ResizeWidth(0); err == nil {
		t.Error("expected an error for zero columns")
	}
	if w.Buffer() != hb {
		t.Error("failed resize should keep the buffer")
	}
}

// Helper to build a buffer and writer pair
func newWriter(t *testing.T, rows, cols int) (*histbuf.HistoryBuffer, *LineWriter) {
	t.Helper()
	hb, err := histbuf.New(rows, cols)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", rows, cols, err)
	}
	return hb, NewLineWriter(hb, DefaultConfig())
}

// Helper to collect the plain-text export
func textOf(t *testing.T, hb *histbuf.HistoryBuffer) string {
	t.Helper()
	var sb strings.Builder
	if err := hb.ExportText(func(s string) error { sb.WriteString(s); return nil }); err != nil {
		t.Fatalf("ExportText: %v", err)
	}
	return sb.String()
}
