package charstream

// Position is a 1-based line and column in the original source text.
type Position struct {
	Line int
	Col  int
}

// Stream is a peekable rune buffer over one source file. Carriage returns
// are dropped on construction so that '\n' is the only line terminator.
type Stream struct {
	buf  []rune
	pos  int
	line int
	col  int

	// spliced counts the runes starting at pos that were inserted by
	// Splice rather than read from the source.
	spliced  int
	spliceAt Position

	// regions holds the live splices, innermost last. An inner splice
	// always ends at or before the one enclosing it.
	regions []region
}

type region struct {
	end   int
	depth int
}

func New(text string) *Stream {
	buf := make([]rune, 0, len(text))
	for _, r := range text {
		if r != '\r' {
			buf = append(buf, r)
		}
	}
	return &Stream{buf: buf, line: 1, col: 1}
}

// Peek returns the rune under the cursor without consuming it.
func (s *Stream) Peek() (rune, bool) {
	return s.PeekAt(0)
}

// PeekAt returns the rune at cursor+offset. Negative offsets look back.
// Positions outside the buffer report false.
func (s *Stream) PeekAt(offset int) (rune, bool) {
	p := s.pos + offset
	if p < 0 || p >= len(s.buf) {
		return 0, false
	}
	return s.buf[p], true
}

// Advance consumes and returns the rune under the cursor.
func (s *Stream) Advance() (rune, bool) {
	if s.pos >= len(s.buf) {
		return 0, false
	}
	r := s.buf[s.pos]
	s.pos++
	if s.spliced > 0 {
		s.spliced--
		return r, true
	}
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r, true
}

// ReadWhile consumes runes while pred holds. The cursor is left on the
// first rune that failed pred. eof reports that the input ran out first.
func (s *Stream) ReadWhile(pred func(rune) bool) (eof bool, consumed []rune) {
	start := s.pos
	for {
		r, ok := s.Peek()
		if !ok {
			return true, s.buf[start:s.pos:s.pos]
		}
		if !pred(r) {
			return false, s.buf[start:s.pos:s.pos]
		}
		s.Advance()
	}
}

func (s *Stream) SkipHorizontalWhitespace() {
	s.ReadWhile(IsHorizontalSpace)
}

// Splice inserts text ahead of the cursor. The inserted runes do not move
// the source position: until they are consumed Pos reports at, or the
// position of the outermost splice when splices nest. depth is recorded
// for the inserted text and reported by Depth while the cursor is inside it.
func (s *Stream) Splice(text string, at Position, depth int) {
	runes := []rune(text)
	n := 0
	for _, r := range runes {
		if r != '\r' {
			runes[n] = r
			n++
		}
	}
	runes = runes[:n]
	if n == 0 {
		return
	}
	if s.spliced == 0 {
		s.spliceAt = at
	}
	s.buf = append(s.buf, runes...)
	copy(s.buf[s.pos+n:], s.buf[s.pos:len(s.buf)-n])
	copy(s.buf[s.pos:], runes)
	s.spliced += n

	s.dropFinished()
	for i := range s.regions {
		s.regions[i].end += n
	}
	s.regions = append(s.regions, region{end: s.pos + n, depth: depth})
}

// Depth is the depth given to the splice the cursor is in, or 0 when the
// next rune comes from the source itself.
func (s *Stream) Depth() int {
	s.dropFinished()
	if len(s.regions) == 0 {
		return 0
	}
	return s.regions[len(s.regions)-1].depth
}

func (s *Stream) dropFinished() {
	for len(s.regions) > 0 && s.regions[len(s.regions)-1].end <= s.pos {
		s.regions = s.regions[:len(s.regions)-1]
	}
}

// InSplice reports whether the next rune came from Splice.
func (s *Stream) InSplice() bool {
	return s.spliced > 0
}

// Pos is the source position of the next rune.
func (s *Stream) Pos() Position {
	if s.spliced > 0 {
		return s.spliceAt
	}
	return Position{Line: s.line, Col: s.col}
}

// Offset is the cursor index into the buffer, for use with Since.
func (s *Stream) Offset() int {
	return s.pos
}

// Since returns the text consumed between offset and the cursor.
func (s *Stream) Since(offset int) string {
	return s.Slice(offset, s.pos)
}

// Slice returns the buffer text between two offsets, spliced runes
// included. Offsets outside [0, cursor] yield "".
func (s *Stream) Slice(from, to int) string {
	if from < 0 || from > to || to > s.pos {
		return ""
	}
	return string(s.buf[from:to])
}

func IsHorizontalSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
