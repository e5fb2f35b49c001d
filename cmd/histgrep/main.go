// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/histgrep/main.go
// Summary: Full-text search over a history snapshot.

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/framegrace/texelhist/histindex"
	"github.com/framegrace/texelhist/histstore"
)

func main() {
	limit := flag.Int("n", 20, "maximum matches to print")
	indexPath := flag.String("index", "", "index database path (default: next to the snapshot)")
	verbose := flag.Bool("v", false, "log index batch metrics")
	flag.Parse()

	if flag.NArg() != 2 {
		log.Fatalf("usage: histgrep [flags] <snapshot> <query>")
	}
	snapshot, query := flag.Arg(0), flag.Arg(1)

	hb, err := histstore.Load(snapshot, histstore.DefaultStoreConfig())
	if err != nil && !errors.Is(err, histstore.ErrTruncated) {
		log.Fatalf("histgrep: %v", err)
	}

	path := *indexPath
	if path == "" {
		path = snapshot + ".idx"
	}
	cfg := histindex.DefaultIndexConfig()
	if *verbose {
		cfg.Observer = histindex.NewBatchLogger(log.Default())
	}

	idx, err := histindex.Open(path, cfg)
	if err != nil {
		log.Fatalf("histgrep: %v", err)
	}
	defer idx.Close()

	if err := idx.IndexBuffer(hb); err != nil {
		log.Fatalf("histgrep: %v", err)
	}

	results, err := idx.Search(query, *limit)
	if err != nil {
		log.Fatalf("histgrep: %v", err)
	}
	if len(results) == 0 {
		fmt.Fprintf(os.Stderr, "histgrep: no matches for %q in %s\n", query, filepath.Base(snapshot))
		os.Exit(1)
	}
	for _, r := range results {
		fmt.Printf("%d:%s\n", r.LineNum, r.Content)
	}
}
