package lz77

import (
	"bytes"
	"testing"
)

func collect(input []byte) []Match {
	f := NewFinder(input, 0)
	var out []Match
	f.FindAll(func(m Match) { out = append(out, m) })
	return out
}

func TestNoMatchesInRandomishShortInput(t *testing.T) {
	input := []byte("abcdefg")
	ms := collect(input)
	if len(ms) != 0 {
		t.Fatalf("expected no matches, got %v", ms)
	}
}

func TestRepeatedByteProducesMaxMatches(t *testing.T) {
	input := bytes.Repeat([]byte{'x'}, 65536)
	ms := collect(input)
	if len(ms) == 0 {
		t.Fatal("expected matches")
	}
	for _, m := range ms {
		if m.Length > MaxMatch {
			t.Fatalf("match length %d exceeds MaxMatch", m.Length)
		}
		if m.Distance != 1 {
			t.Fatalf("expected distance=1 back-reference, got %d", m.Distance)
		}
	}
	// Reconstruct covered length from literals + matches and check it
	// accounts for (close to) the whole buffer.
	covered := 0
	pos := 0
	for _, m := range ms {
		if m.Position < pos {
			t.Fatalf("match position %d precedes cursor %d", m.Position, pos)
		}
		covered += m.Position - pos
		covered += m.Length
		pos = m.Position + m.Length
	}
	if covered < len(input)-MaxMatch {
		t.Fatalf("covered %d of %d bytes", covered, len(input))
	}
}

func TestMatchesAreOrderedAndInBounds(t *testing.T) {
	input := []byte("the quick brown fox the quick brown fox jumps over the quick brown fox")
	ms := collect(input)
	lastPos := -1
	for _, m := range ms {
		if m.Position <= lastPos {
			t.Fatalf("matches not strictly increasing in position: %v", ms)
		}
		lastPos = m.Position
		if m.Length < MinMatch || m.Length > MaxMatch {
			t.Fatalf("length %d out of range", m.Length)
		}
		if m.Distance < 1 || m.Distance > MaxDistance {
			t.Fatalf("distance %d out of range", m.Distance)
		}
		if m.Distance > m.Position {
			t.Fatalf("match at %d references before start of buffer (distance %d)", m.Position, m.Distance)
		}
	}
	if len(ms) == 0 {
		t.Fatal("expected at least one match in repetitive text")
	}
}

func TestEmptyAndTinyInputs(t *testing.T) {
	for _, input := range [][]byte{{}, {1}, {1, 2}} {
		ms := collect(input)
		if len(ms) != 0 {
			t.Fatalf("input %v: expected no matches, got %v", input, ms)
		}
	}
}
