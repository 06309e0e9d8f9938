package study

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClipKeepsRunesIntact(t *testing.T) {
	// Offset so the cap lands inside a 3-byte rune.
	long := "ab" + strings.Repeat("光", summaryContentLimit)
	got := clip(long, summaryContentLimit)
	if len(got) > summaryContentLimit {
		t.Fatalf("clipped to %d bytes, cap is %d", len(got), summaryContentLimit)
	}
	if !utf8.ValidString(got) {
		t.Fatal("clipped content contains a split rune")
	}
}

func TestClipUnderLimitUnchanged(t *testing.T) {
	if got := clip("short text", cardsContentLimit); got != "short text" {
		t.Fatalf("got %q", got)
	}
}
