// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/histrec/main.go
// Summary: Records a shell session's scrollback to a snapshot file.
//
// histrec runs a command under a pty, mirrors its output to the user,
// tees it into a history buffer, and writes a snapshot on exit. A
// terminal resize rewraps the recorded history to the new width.

package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/framegrace/texelhist/capture"
	"github.com/framegrace/texelhist/histbuf"
	"github.com/framegrace/texelhist/histstore"
)

func main() {
	out := flag.String("o", "history.txhb", "snapshot output path")
	rows := flag.Int("rows", histbuf.DefaultCapacity, "history rows to keep")
	flag.Parse()

	if err := run(*out, *rows, flag.Args()); err != nil {
		log.Fatalf("histrec: %v", err)
	}
}

func run(out string, rows int, args []string) error {
	if len(args) == 0 {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		args = []string{shell}
	}

	width, height, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil {
		width, height = histbuf.DefaultColumns, 24
	}

	hb, err := histbuf.New(rows, width)
	if err != nil {
		return err
	}
	// The capture writer is single-writer; the resize goroutine swaps
	// its buffer, so both sides take the same lock.
	var mu sync.Mutex
	writer := capture.NewLineWriter(hb, capture.DefaultConfig())
	tee := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return writer.Write(p)
	})

	cmd := exec.Command(args[0], args[1:]...)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(height),
		Cols: uint16(width),
	})
	if err != nil {
		return err
	}
	defer ptmx.Close()

	// Propagate terminal resizes to the pty and rewrap the history.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			w, h, err := term.GetSize(int(os.Stdin.Fd()))
			if err != nil {
				continue
			}
			pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
			mu.Lock()
			writer.ResizeWidth(w)
			mu.Unlock()
		}
	}()
	defer signal.Stop(winch)

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	go io.Copy(ptmx, os.Stdin)
	io.Copy(io.MultiWriter(os.Stdout, tee), ptmx)
	cmd.Wait()

	mu.Lock()
	writer.Flush()
	hb = writer.Buffer()
	mu.Unlock()
	term.Restore(int(os.Stdin.Fd()), oldState)

	if err := histstore.Save(out, hb, histstore.DefaultStoreConfig()); err != nil {
		return err
	}
	log.Printf("histrec: saved %d rows to %s", hb.Count(), out)
	return nil
}

// writerFunc adapts a function to io.Writer.
type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
