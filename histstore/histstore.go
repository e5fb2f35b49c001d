// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: histstore/histstore.go
// Summary: Binary snapshot persistence for history buffers.
// Usage: Recorders save on exit; viewers load and rewrap.
//
// File format (TXHBSNAP, version 1):
//
//	Header (32 bytes):
//	  Magic: "TXHBSNAP" (8 bytes)
//	  Version: uint32 (4 bytes)
//	  Flags: uint32 (4 bytes)
//	  Columns: uint32 (4 bytes)
//	  Capacity: uint32 (4 bytes)
//	  RowCount: uint32 (4 bytes)
//	  Reserved: 4 bytes
//
//	Row Data (RowCount records):
//	  Continued: 1 byte
//	  Cells: Columns * 16 bytes each
//
// Rows are fixed width, so every record has the same size and no offset
// index is needed; any row's position is plain arithmetic.

package histstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/framegrace/texelhist/histbuf"
)

const (
	snapshotMagic   = "TXHBSNAP"
	snapshotVersion = 1
	headerSize      = 32 // magic(8) + version(4) + flags(4) + columns(4) + capacity(4) + rowCount(4) + reserved(4)
	cellSize        = 16 // rune(4) + fg(5) + bg(5) + attr(2)

	// attrWideBit marks wide cells on disk. The in-memory Attribute uses
	// the low bits only, so the top bit is free for the codec.
	attrWideBit = 1 << 15
)

// ErrTruncated reports that a snapshot ended mid-row. The loaded buffer
// holds every complete row; callers may treat this as a warning.
var ErrTruncated = errors.New("histstore: snapshot truncated")

// StoreConfig holds configuration for snapshot I/O.
type StoreConfig struct {
	// BufferSize is the bufio buffer size for reads and writes.
	// Default: 64 KiB
	BufferSize int

	// Sync forces an fsync before close when saving.
	Sync bool
}

// DefaultStoreConfig returns sensible defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		BufferSize: 64 * 1024,
		Sync:       false,
	}
}

// Save writes a snapshot of hb to path, replacing any existing file.
func Save(path string, hb *histbuf.HistoryBuffer, config StoreConfig) error {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultStoreConfig().BufferSize
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriterSize(file, config.BufferSize)
	if err := writeHeader(w, hb); err != nil {
		return err
	}

	cellBuf := make([]byte, cellSize)
	for off := 0; off < hb.Count(); off++ {
		row := hb.SourceRow(off)
		if err := writeRow(w, row, cellBuf); err != nil {
			return fmt.Errorf("failed to write row %d: %w", off, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if config.Sync {
		if err := file.Sync(); err != nil {
			return fmt.Errorf("failed to sync snapshot: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot into a fresh buffer with the saved geometry.
// A truncated row section yields the complete rows plus ErrTruncated;
// the buffer is still usable.
func Load(path string, config StoreConfig) (*histbuf.HistoryBuffer, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultStoreConfig().BufferSize
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	r := bufio.NewReaderSize(file, config.BufferSize)
	columns, capacity, rowCount, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	hb, err := histbuf.New(capacity, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild buffer: %w", err)
	}

	rowBuf := make([]byte, 1+columns*cellSize)
	cells := make([]histbuf.Cell, columns)
	for i := 0; i < rowCount; i++ {
		if _, err := io.ReadFull(r, rowBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return hb, ErrTruncated
			}
			return nil, fmt.Errorf("failed to read row %d: %w", i, err)
		}
		continued := rowBuf[0] != 0
		for c := 0; c < columns; c++ {
			cells[c] = decodeCell(rowBuf[1+c*cellSize:])
		}
		hb.Push(cells, continued)
	}
	return hb, nil
}

func writeHeader(w *bufio.Writer, hb *histbuf.HistoryBuffer) error {
	header := make([]byte, headerSize)
	copy(header[0:8], snapshotMagic)
	binary.LittleEndian.PutUint32(header[8:12], snapshotVersion)
	binary.LittleEndian.PutUint32(header[12:16], 0) // flags
	binary.LittleEndian.PutUint32(header[16:20], uint32(hb.Columns()))
	binary.LittleEndian.PutUint32(header[20:24], uint32(hb.Capacity()))
	binary.LittleEndian.PutUint32(header[24:28], uint32(hb.Count()))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

func readHeader(r io.Reader) (columns, capacity, rowCount int, err error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	magic := string(header[0:8])
	if magic != snapshotMagic {
		return 0, 0, 0, fmt.Errorf("invalid magic: %q (expected %q)", magic, snapshotMagic)
	}
	version := binary.LittleEndian.Uint32(header[8:12])
	if version != snapshotVersion {
		return 0, 0, 0, fmt.Errorf("unsupported version: %d", version)
	}
	columns = int(binary.LittleEndian.Uint32(header[16:20]))
	capacity = int(binary.LittleEndian.Uint32(header[20:24]))
	rowCount = int(binary.LittleEndian.Uint32(header[24:28]))
	if columns <= 0 || capacity <= 0 || rowCount < 0 || rowCount > capacity {
		return 0, 0, 0, fmt.Errorf("corrupt header: columns=%d capacity=%d rows=%d", columns, capacity, rowCount)
	}
	return columns, capacity, rowCount, nil
}

func writeRow(w *bufio.Writer, row histbuf.Row, cellBuf []byte) error {
	flag := byte(0)
	if row.Continued {
		flag = 1
	}
	if err := w.WriteByte(flag); err != nil {
		return err
	}
	for _, cell := range row.Cells {
		encodeCell(cell, cellBuf)
		if _, err := w.Write(cellBuf); err != nil {
			return err
		}
	}
	return nil
}

// encodeCell encodes a Cell to the buffer.
// Format: rune(4) + fg_mode(1) + fg_value(4) + bg_mode(1) + bg_value(4) + attr(2)
func encodeCell(cell histbuf.Cell, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(cell.Rune))
	buf[4] = byte(cell.FG.Mode)
	binary.LittleEndian.PutUint32(buf[5:9], encodeColorValue(cell.FG))
	buf[9] = byte(cell.BG.Mode)
	binary.LittleEndian.PutUint32(buf[10:14], encodeColorValue(cell.BG))
	attr := uint16(cell.Attr)
	if cell.Wide {
		attr |= attrWideBit
	}
	binary.LittleEndian.PutUint16(buf[14:16], attr)
}

// decodeCell decodes a Cell from the buffer.
func decodeCell(buf []byte) histbuf.Cell {
	cell := histbuf.Cell{}
	cell.Rune = rune(binary.LittleEndian.Uint32(buf[0:4]))
	fgMode := histbuf.ColorMode(buf[4])
	cell.FG = decodeColorValue(fgMode, binary.LittleEndian.Uint32(buf[5:9]))
	bgMode := histbuf.ColorMode(buf[9])
	cell.BG = decodeColorValue(bgMode, binary.LittleEndian.Uint32(buf[10:14]))
	attr := binary.LittleEndian.Uint16(buf[14:16])
	cell.Wide = attr&attrWideBit != 0
	cell.Attr = histbuf.Attribute(attr &^ attrWideBit)
	return cell
}

// encodeColorValue encodes a Color's value into a uint32.
func encodeColorValue(c histbuf.Color) uint32 {
	if c.Mode == histbuf.ColorModeRGB {
		return (uint32(c.R) << 16) | (uint32(c.G) << 8) | uint32(c.B)
	}
	return uint32(c.Value)
}

// decodeColorValue decodes a Color from mode and value.
func decodeColorValue(mode histbuf.ColorMode, value uint32) histbuf.Color {
	if mode == histbuf.ColorModeRGB {
		return histbuf.Color{
			Mode: histbuf.ColorModeRGB,
			R:    uint8((value >> 16) & 0xFF),
			G:    uint8((value >> 8) & 0xFF),
			B:    uint8(value & 0xFF),
		}
	}
	return histbuf.Color{
		Mode:  mode,
		Value: uint8(value & 0xFF),
	}
}
