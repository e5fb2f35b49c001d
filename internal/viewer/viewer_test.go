// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewer

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestDrawStatus_MultibyteText(t *testing.T) {
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("failed to init simulation screen: %v", err)
	}
	defer s.Fini()
	s.SetSize(20, 2)

	drawStatus(s, 1, 20, "日本語 query")
	s.Show()

	// Byte-wise indexing would shred the multibyte runes into mojibake.
	// Wide runes take two columns each.
	want := map[int]rune{0: '日', 2: '本', 4: '語', 6: ' ', 7: 'q'}
	for x, r := range want {
		got, _, _, _ := s.GetContent(x, 1)
		if got != r {
			t.Errorf("cell %d: expected %q, got %q", x, r, got)
		}
	}
}

func TestDrawStatus_PadsAndTruncates(t *testing.T) {
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("failed to init simulation screen: %v", err)
	}
	defer s.Fini()
	s.SetSize(4, 1)

	drawStatus(s, 0, 4, "abcdef")
	s.Show()
	for i, want := range []rune{'a', 'b', 'c', 'd'} {
		got, _, _, _ := s.GetContent(i, 0)
		if got != want {
			t.Errorf("cell %d: expected %q, got %q", i, want, got)
		}
	}

	drawStatus(s, 0, 4, "x")
	s.Show()
	got, _, _, _ := s.GetContent(1, 0)
	if got != ' ' {
		t.Errorf("expected padding space after short status, got %q", got)
	}
}
