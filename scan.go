/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dmlex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PJB3005/dmlex/internal/charstream"
	"github.com/PJB3005/dmlex/internal/preprocessor"
)

// scanLine emits the tokens of the rest of the current line, up to and
// including its Newline.
func (l *Lexer) scanLine() error {
	s := l.cur.s
	for {
		s.SkipHorizontalWhitespace()
		pos, start := s.Pos(), s.Offset()
		r, ok := s.Peek()
		if !ok {
			return nil
		}
		next, _ := s.PeekAt(1)

		var err error
		switch {
		case r == '\n':
			s.Advance()
			l.emit(Newline, pos, start, "")
			return nil
		case r == '/' && next == '/':
			s.ReadWhile(func(r rune) bool { return r != '\n' })
		case r == '/' && next == '*':
			err = l.blockComment(pos)
		case r == '"':
			err = l.stringLiteral(pos, start)
		case isDigit(r) || r == '.' && isDigit(next):
			err = l.number(pos, start)
		case preprocessor.IsIdentStart(r):
			err = l.identifier(pos, start)
		case r == '{':
			s.Advance()
			l.emit(BraceOpen, pos, start, "")
		case r == '}':
			s.Advance()
			l.emit(BraceClose, pos, start, "")
		case r == ';':
			s.Advance()
			l.emit(Semicolon, pos, start, "")
		default:
			msg := fmt.Sprintf("unexpected character %q", r)
			if r == '#' && preprocessor.IsDirectivePrefix(l.restOfLine()) {
				msg = "'#' must be first item on line"
			}
			s.Advance()
			l.diag(SeverityError, UnexpectedCharacter, pos, msg)
		}
		if err != nil {
			return err
		}
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func (l *Lexer) restOfLine() string {
	var b strings.Builder
	for i := 0; ; i++ {
		r, ok := l.cur.s.PeekAt(i)
		if !ok || r == '\n' {
			return b.String()
		}
		b.WriteRune(r)
	}
}

// blockComment skips a /* */ comment, which may span lines and nest.
func (l *Lexer) blockComment(pos charstream.Position) error {
	s := l.cur.s
	s.Advance()
	s.Advance()
	for depth := 1; depth > 0; {
		r, ok := s.Advance()
		if !ok {
			return l.errorAt(UnterminatedComment, pos, "unterminated block comment")
		}
		next, _ := s.Peek()
		switch {
		case r == '*' && next == '/':
			s.Advance()
			depth--
		case r == '/' && next == '*':
			s.Advance()
			depth++
		}
	}
	return nil
}

// stringLiteral scans a double-quoted string. Strings end on the line they
// start on. \n \t \r \" \' and \\ are decoded; other escapes are kept as
// written.
func (l *Lexer) stringLiteral(pos charstream.Position, start int) error {
	s := l.cur.s
	s.Advance()
	var b strings.Builder
	for {
		r, ok := s.Advance()
		if !ok || r == '\n' {
			return l.errorAt(UnterminatedString, pos, "unterminated string literal")
		}
		switch r {
		case '"':
			l.emit(StringLiteral, pos, start, b.String())
			return nil
		case '\\':
			esc, ok := s.Advance()
			if !ok || esc == '\n' {
				return l.errorAt(UnterminatedString, pos, "unterminated string literal")
			}
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '"', '\'', '\\':
				b.WriteRune(esc)
			default:
				b.WriteRune('\\')
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

// number scans digits and dots greedily plus an optional exponent, and
// parses the result as a float32.
func (l *Lexer) number(pos charstream.Position, start int) error {
	s := l.cur.s
	s.ReadWhile(func(r rune) bool { return isDigit(r) || r == '.' })
	if r, _ := s.Peek(); r == 'e' || r == 'E' {
		n1, _ := s.PeekAt(1)
		n2, _ := s.PeekAt(2)
		if isDigit(n1) || (n1 == '+' || n1 == '-') && isDigit(n2) {
			s.Advance()
			if !isDigit(n1) {
				s.Advance()
			}
			s.ReadWhile(isDigit)
		}
	}
	text := s.Since(start)
	f, err := strconv.ParseFloat(text, 32)
	if err != nil {
		return l.errorAt(MalformedNumber, pos, fmt.Sprintf("malformed number %q", text))
	}
	l.emit(NumberLiteral, pos, start, "").Number = float32(f)
	return nil
}

// identifier scans a name and either expands it as a macro or emits it as
// a Word.
func (l *Lexer) identifier(pos charstream.Position, start int) error {
	s := l.cur.s
	depth := s.Depth()
	_, text := s.ReadWhile(preprocessor.IsIdentPart)
	name := string(text)
	if m, ok := l.pp.Lookup(name); ok {
		expanded, err := l.expand(m, pos, depth)
		if err != nil || expanded {
			return err
		}
	}
	l.emit(Word, pos, start, name)
	return nil
}

// expand splices the replacement text of m into the stream. Function-like
// macros expand only when an argument list follows directly; otherwise the
// name stays a Word. depth is the nesting level the name was read at; a
// replacement nested deeper than the configured bound is reported as
// recursion.
func (l *Lexer) expand(m preprocessor.Macro, at charstream.Position, depth int) (bool, error) {
	s := l.cur.s
	text := m.Body
	if m.FuncLike() {
		args, n, ok := l.peekArgs()
		if !ok {
			return false, nil
		}
		for i := 0; i < n; i++ {
			s.Advance()
		}
		text = m.Apply(args)
	}
	if depth+1 > l.maxExpansions() {
		return false, l.errorAt(MacroRecursion, at, "recursive macro invocation of "+m.Name)
	}
	if text != "" {
		// The trailing space keeps the replacement from gluing onto
		// whatever follows the invocation.
		s.Splice(text+" ", at, depth+1)
	}
	return true, nil
}

// peekArgs looks for a parenthesized argument list at the cursor without
// consuming it. It returns the trimmed arguments split on top-level commas
// and the number of runes the list spans. The list must close on the
// current line.
func (l *Lexer) peekArgs() (args []string, n int, ok bool) {
	s := l.cur.s
	if r, _ := s.Peek(); r != '(' {
		return nil, 0, false
	}
	var cur strings.Builder
	depth, inString := 0, false
	for i := 0; ; i++ {
		r, more := s.PeekAt(i)
		if !more || r == '\n' {
			return nil, 0, false
		}
		if inString {
			cur.WriteRune(r)
			if r == '\\' {
				if esc, more := s.PeekAt(i + 1); more && esc != '\n' {
					cur.WriteRune(esc)
					i++
				}
			} else if r == '"' {
				inString = false
			}
			continue
		}
		switch {
		case r == '"':
			inString = true
			cur.WriteRune(r)
		case r == '(':
			depth++
			if depth > 1 {
				cur.WriteRune(r)
			}
		case r == ')':
			depth--
			if depth == 0 {
				return append(args, strings.TrimSpace(cur.String())), i + 1, true
			}
			cur.WriteRune(r)
		case r == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
}
