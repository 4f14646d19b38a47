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
	"path/filepath"
	"strings"

	"github.com/PJB3005/dmlex/internal/charstream"
	"github.com/PJB3005/dmlex/internal/preprocessor"
)

// Lexer tokenizes a translation unit: a root file plus everything it pulls
// in with #include. A Lexer may be reused for several translation units but
// not concurrently; each Lex call starts from a clean macro table.
type Lexer struct {
	opts Options
	fsys FileSystem

	pp       *preprocessor.Preprocessor
	files    fileTable
	cur      *frame
	stack    []*frame
	tokens   []Token
	diags    []Diagnostic
	trailing map[string]string
}

// frame is the lexing state of one open file. Suspended frames on the
// include stack keep their stream, and with it the cursor and line counter,
// so resuming continues exactly after the #include line. mark is the
// offset just past the last token emitted from the file.
type frame struct {
	file   *File
	s      *charstream.Stream
	indent int
	cond   *preprocessor.CondStack
	mark   int
}

func New(opts ...Option) *Lexer {
	l := &Lexer{fsys: osFileSystem{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lex tokenizes the file at path and everything it includes.
func Lex(path string, opts ...Option) (*Result, error) {
	return New(opts...).Lex(path)
}

// LexString tokenizes src as if it were the contents of the file name.
// Includes are resolved relative to name.
func LexString(name, src string, opts ...Option) (*Result, error) {
	return New(opts...).LexString(name, src)
}

func (l *Lexer) Lex(path string) (*Result, error) {
	path = filepath.Clean(path)
	data, err := l.fsys.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: Io, File: path, Msg: "reading source", Err: err}
	}
	return l.LexString(path, string(data))
}

func (l *Lexer) LexString(name, src string) (*Result, error) {
	if err := l.opts.Validate(); err != nil {
		return nil, err
	}
	l.reset()
	l.cur = l.newFrame(filepath.Clean(name), src)
	if err := l.run(); err != nil {
		return nil, err
	}
	return &Result{Tokens: l.tokens, Diagnostics: l.diags, Files: l.files.order, Trailing: l.trailing}, nil
}

func (l *Lexer) reset() {
	l.pp = preprocessor.New(l.opts.IncludeDirs...)
	for name, value := range l.opts.Defines {
		l.pp.DefineObject(name, value)
	}
	l.files = fileTable{}
	l.cur = nil
	l.stack = nil
	l.tokens = nil
	l.diags = nil
	l.trailing = map[string]string{}
}

func (l *Lexer) newFrame(path, src string) *frame {
	return &frame{
		file: l.files.intern(path),
		s:    charstream.New(src),
		cond: preprocessor.NewCondStack(),
	}
}

func (l *Lexer) maxExpansions() int {
	if l.opts.MaxExpansions > 0 {
		return l.opts.MaxExpansions
	}
	return DefaultMaxExpansions
}

// ---------------- Driver ----------------

func (l *Lexer) run() error {
	for {
		if _, ok := l.cur.s.Peek(); ok {
			if err := l.lexLine(); err != nil {
				return err
			}
			continue
		}
		if err := l.endFile(); err != nil {
			return err
		}
		if len(l.stack) == 0 {
			return nil
		}
		l.cur = l.stack[len(l.stack)-1]
		l.stack = l.stack[:len(l.stack)-1]
	}
}

// endFile checks the exhausted file for open conditionals, keeps the text
// after its last token and closes its indentation.
func (l *Lexer) endFile() error {
	f := l.cur
	if f.cond.Depth() != 0 {
		return &Error{Kind: Directive, File: f.file.Path, Line: f.cond.UnclosedLine(), Col: 1,
			Msg: "unclosed #ifdef or #ifndef"}
	}
	l.trailing[f.file.Path] = f.s.Since(f.mark)
	pos := f.s.Pos()
	for ; f.indent > 0; f.indent-- {
		l.synthesize(Deindent, pos)
	}
	return nil
}

// lexLine handles one logical line, including its terminating newline.
func (l *Lexer) lexLine() error {
	s := l.cur.s
	_, lead := s.ReadWhile(charstream.IsHorizontalSpace)
	pos := s.Pos()
	r, _ := s.Peek()
	if r == '#' {
		return l.directive(pos)
	}
	if !l.cur.cond.Active() {
		s.ReadWhile(func(r rune) bool { return r != '\n' })
		s.Advance()
		return nil
	}
	if !l.blankLine() {
		l.indentation(lead, pos)
	}
	return l.scanLine()
}

func (l *Lexer) blankLine() bool {
	r, ok := l.cur.s.Peek()
	if !ok || r == '\n' {
		return true
	}
	next, _ := l.cur.s.PeekAt(1)
	return r == '/' && next == '/'
}

// indentation compares the leading whitespace of a line with the previous
// level and emits the Indent/Deindent tokens for the difference. Leading
// spaces are reported and the previous level is kept.
func (l *Lexer) indentation(lead []rune, pos charstream.Position) {
	level := len(lead)
	for i, r := range lead {
		if r == ' ' {
			l.diag(SeverityError, MalformedIndentation, charstream.Position{Line: pos.Line, Col: i + 1},
				"indentation must use tabs only")
			level = l.cur.indent
			break
		}
	}
	for ; l.cur.indent < level; l.cur.indent++ {
		l.synthesize(Indent, pos)
	}
	for ; l.cur.indent > level; l.cur.indent-- {
		l.synthesize(Deindent, pos)
	}
}

// ---------------- Directives ----------------

// readDirectiveLine consumes the rest of the line and any backslash
// continuation lines, joined with a space, and the final newline.
func (l *Lexer) readDirectiveLine() string {
	s := l.cur.s
	var b strings.Builder
	for {
		_, text := s.ReadWhile(func(r rune) bool { return r != '\n' })
		s.Advance()
		line := string(text)
		if !preprocessor.LineContinues(line) {
			b.WriteString(line)
			return b.String()
		}
		b.WriteString(preprocessor.StripLineContinuation(line))
		b.WriteByte(' ')
		if _, ok := s.Peek(); !ok {
			return b.String()
		}
	}
}

func (l *Lexer) directive(pos charstream.Position) error {
	line := preprocessor.StripComments(l.readDirectiveLine())
	cond := l.cur.cond
	if !cond.Active() && !preprocessor.IsConditional(preprocessor.DirectiveName(line)) {
		return nil
	}
	d, err := preprocessor.ParseDirective(line)
	if err != nil {
		return l.errorAt(Directive, pos, err.Error())
	}

	switch d.Cmd {
	case "include":
		return l.include(d, pos)

	case "define":
		var redefined bool
		if d.Params != nil {
			redefined = l.pp.DefineFunc(d.Name, d.Params, d.Body)
		} else {
			redefined = l.pp.DefineObject(d.Name, d.Body)
		}
		if redefined {
			l.diag(SeverityWarning, Directive, pos, "redefinition of macro "+d.Name)
		}

	case "undef":
		l.pp.Undefine(d.Name)

	case "ifdef":
		cond.Push(l.pp.IsDefined(d.Name), pos.Line)

	case "ifndef":
		cond.Push(!l.pp.IsDefined(d.Name), pos.Line)

	case "if":
		cond.Push(l.pp.EvalCondition(d.Arg), pos.Line)

	case "elif":
		err = cond.Elif(l.pp.EvalCondition(d.Arg))

	case "else":
		err = cond.Else()

	case "endif":
		err = cond.Pop()

	case "error":
		return l.errorAt(Directive, pos, "#error "+d.Arg)

	case "warn":
		l.diag(SeverityWarning, Directive, pos, "#warn "+d.Arg)
	}
	if err != nil {
		return l.errorAt(Directive, pos, err.Error())
	}
	return nil
}

// ---------------- Include stack ----------------

// include suspends the current file and makes the included file active. The
// chain of open files is checked so a file can never include itself,
// directly or through other files.
func (l *Lexer) include(d preprocessor.Directive, pos charstream.Position) error {
	data, resolved, err := l.pp.ReadInclude(l.fsys, d.Path, l.cur.file.Path, d.Angled)
	if err != nil {
		return &Error{Kind: Io, File: l.cur.file.Path, Line: pos.Line, Col: pos.Col,
			Msg: fmt.Sprintf("include %q", d.Path), Err: err}
	}
	open := append(append([]*frame(nil), l.stack...), l.cur)
	for i, f := range open {
		if f.file.Path != resolved {
			continue
		}
		chain := make([]string, 0, len(open)-i+1)
		for _, g := range open[i:] {
			chain = append(chain, g.file.Path)
		}
		chain = append(chain, resolved)
		return l.errorAt(IncludeCycle, pos, "include cycle: "+strings.Join(chain, " -> "))
	}
	l.stack = append(l.stack, l.cur)
	l.cur = l.newFrame(resolved, string(data))
	return nil
}

// ---------------- Emission ----------------

// emit appends a token scanned from start to the cursor. The text between
// the file's previous token and start becomes its Leading text.
func (l *Lexer) emit(kind Kind, pos charstream.Position, start int, value string) *Token {
	f := l.cur
	l.tokens = append(l.tokens, Token{
		File:    f.file,
		Line:    pos.Line,
		Col:     pos.Col,
		Kind:    kind,
		Value:   value,
		Leading: f.s.Slice(f.mark, start),
		Lexeme:  f.s.Since(start),
	})
	f.mark = f.s.Offset()
	return &l.tokens[len(l.tokens)-1]
}

// synthesize appends an Indent or Deindent, which cover no text.
func (l *Lexer) synthesize(kind Kind, pos charstream.Position) {
	l.tokens = append(l.tokens, Token{File: l.cur.file, Line: pos.Line, Col: pos.Col, Kind: kind})
}

func (l *Lexer) errorAt(kind ErrorKind, pos charstream.Position, msg string) *Error {
	return &Error{Kind: kind, File: l.cur.file.Path, Line: pos.Line, Col: pos.Col, Msg: msg}
}

func (l *Lexer) diag(sev Severity, kind ErrorKind, pos charstream.Position, msg string) {
	l.diags = append(l.diags, Diagnostic{Severity: sev, Error: l.errorAt(kind, pos, msg)})
}
