package charstream

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func drain(s *Stream) string {
	var out []rune
	for {
		r, ok := s.Advance()
		if !ok {
			return string(out)
		}
		out = append(out, r)
	}
}

func TestCarriageReturnsDropped(t *testing.T) {
	s := New("a\r\nb\r\n\rc")
	if diff := cmp.Diff("a\nb\nc", drain(s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidUTF8Replaced(t *testing.T) {
	s := New("a\xffb")
	if diff := cmp.Diff("a\uFFFDb", drain(s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	for _, input := range []string{"xyz", "\nq", "é"} {
		a, b := New(input), New(input)
		for i := 0; i < 5; i++ {
			a.Peek()
		}
		ra, oka := a.Advance()
		rb, okb := b.Advance()
		if ra != rb || oka != okb {
			t.Errorf("%q: peek+advance = %q,%v; advance = %q,%v", input, ra, oka, rb, okb)
		}
	}
}

func TestPeekAtBounds(t *testing.T) {
	s := New("abc")
	if _, ok := s.PeekAt(-1); ok {
		t.Fatal("PeekAt(-1) at start should report no value")
	}
	s.Advance()
	tests := []struct {
		offset int
		want   rune
		ok     bool
	}{
		{-2, 0, false},
		{-1, 'a', true},
		{0, 'b', true},
		{1, 'c', true},
		{2, 0, false},
		{1 << 30, 0, false},
		{-(1 << 30), 0, false},
	}
	for _, tt := range tests {
		got, ok := s.PeekAt(tt.offset)
		if got != tt.want || ok != tt.ok {
			t.Errorf("PeekAt(%d) = %q,%v; want %q,%v", tt.offset, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAdvanceAtEnd(t *testing.T) {
	s := New("a")
	s.Advance()
	if _, ok := s.Advance(); ok {
		t.Fatal("Advance past end should report no value")
	}
	if s.Offset() != 1 {
		t.Errorf("cursor moved past end: %d", s.Offset())
	}
}

func TestReadWhile(t *testing.T) {
	s := New("abc1")
	eof, got := s.ReadWhile(func(r rune) bool { return r >= 'a' && r <= 'z' })
	if eof {
		t.Error("stopped on '1', not end of input")
	}
	if diff := cmp.Diff("abc", string(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if r, _ := s.Peek(); r != '1' {
		t.Errorf("cursor on %q, want '1'", r)
	}

	eof, got = s.ReadWhile(func(rune) bool { return true })
	if !eof || string(got) != "1" {
		t.Errorf("ReadWhile to end = %v,%q", eof, string(got))
	}
}

func TestSkipHorizontalWhitespace(t *testing.T) {
	s := New(" \t \nx")
	s.SkipHorizontalWhitespace()
	if r, _ := s.Peek(); r != '\n' {
		t.Errorf("stopped on %q, want newline", r)
	}
}

func TestPositions(t *testing.T) {
	s := New("ab\ncd")
	want := []Position{{1, 1}, {1, 2}, {1, 3}, {2, 1}, {2, 2}, {2, 3}}
	var got []Position
	for {
		got = append(got, s.Pos())
		if _, ok := s.Advance(); !ok {
			break
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSplice(t *testing.T) {
	s := New("AB;")
	s.Advance()
	s.Advance()
	at := Position{Line: 1, Col: 1}
	s.Splice("xy", at, 1)
	if !s.InSplice() {
		t.Fatal("expected to be inside spliced text")
	}
	if diff := cmp.Diff(at, s.Pos()); diff != "" {
		t.Errorf("spliced position mismatch (-want +got):\n%s", diff)
	}
	s.Advance()
	s.Splice("z", Position{Line: 9, Col: 9}, 2)
	if diff := cmp.Diff(at, s.Pos()); diff != "" {
		t.Errorf("nested splice should keep outer position (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("zy;", drain(s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if s.InSplice() {
		t.Error("splice should be consumed")
	}
	if diff := cmp.Diff(Position{Line: 1, Col: 4}, s.Pos()); diff != "" {
		t.Errorf("source position mismatch (-want +got):\n%s", diff)
	}
}

func TestSinceKeepsConsumedTextAcrossSplice(t *testing.T) {
	s := New("abcdef")
	_, head := s.ReadWhile(func(r rune) bool { return r != 'd' })
	s.Splice("123", Position{1, 4}, 1)
	if diff := cmp.Diff("abc", string(head)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	start := s.Offset()
	s.Advance()
	s.Advance()
	if diff := cmp.Diff("12", s.Since(start)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("3def", drain(s)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSpliceDepth(t *testing.T) {
	s := New("A;")
	s.Advance()
	if s.Depth() != 0 {
		t.Fatalf("source text at depth %d", s.Depth())
	}
	at := Position{Line: 1, Col: 1}
	s.Splice("B C", at, 1)
	s.Advance()
	s.Splice("x", at, 2)

	var got []int
	for {
		got = append(got, s.Depth())
		if _, ok := s.Advance(); !ok {
			break
		}
	}
	// x, " ", C, ;, end
	if diff := cmp.Diff([]int{2, 1, 1, 0, 0}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSpliceAtEndOfOuterSplice(t *testing.T) {
	s := New(";")
	at := Position{Line: 1, Col: 1}
	s.Splice("A", at, 1)
	s.Advance()
	// The outer splice is used up; the new one is not nested in it.
	s.Splice("B", at, 5)
	if s.Depth() != 5 {
		t.Errorf("Depth = %d, want 5", s.Depth())
	}
	s.Advance()
	if s.Depth() != 0 {
		t.Errorf("Depth after splices = %d, want 0", s.Depth())
	}
}

func TestSlice(t *testing.T) {
	s := New("abcdef")
	s.Advance()
	s.Advance()
	s.Advance()
	tests := []struct {
		from, to int
		want     string
	}{
		{0, 3, "abc"},
		{1, 2, "b"},
		{2, 2, ""},
		{2, 1, ""},
		{-1, 2, ""},
		{0, 4, ""},
	}
	for _, tt := range tests {
		if got := s.Slice(tt.from, tt.to); got != tt.want {
			t.Errorf("Slice(%d, %d) = %q, want %q", tt.from, tt.to, got, tt.want)
		}
	}
}
