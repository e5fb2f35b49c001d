// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/histview/main.go
// Summary: Interactive viewer for history snapshots.

package main

import (
	"bufio"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/framegrace/texelhist/histstore"
	"github.com/framegrace/texelhist/internal/viewer"
)

func main() {
	style := flag.String("style", "catppuccin-mocha", "highlight style")
	index := flag.String("index", "", "search index path (default: user cache)")
	dump := flag.Bool("dump", false, "print the snapshot as ANSI text and exit")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: histview [flags] <snapshot>")
	}

	hb, err := histstore.Load(flag.Arg(0), histstore.DefaultStoreConfig())
	if err != nil {
		if !errors.Is(err, histstore.ErrTruncated) {
			log.Fatalf("histview: %v", err)
		}
		log.Printf("histview: snapshot truncated, showing %d recovered rows", hb.Count())
	}

	if *dump {
		w := bufio.NewWriter(os.Stdout)
		err := hb.ExportANSI(func(fragment string) error {
			_, err := w.WriteString(fragment)
			return err
		})
		if err == nil {
			err = w.Flush()
		}
		if err != nil {
			log.Fatalf("histview: %v", err)
		}
		return
	}

	cfg := viewer.DefaultConfig()
	cfg.HighlightStyle = *style
	cfg.IndexPath = *index
	if err := viewer.Run(hb, cfg); err != nil {
		log.Fatalf("histview: %v", err)
	}
}
