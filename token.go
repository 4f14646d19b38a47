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
)

// Kind is the closed set of token types. Keywords are not distinguished
// from identifiers here; both lex as Word.
type Kind uint8

const (
	Word Kind = iota
	StringLiteral
	NumberLiteral
	Indent
	Deindent
	Newline
	Semicolon
	BraceOpen
	BraceClose
)

var kindNames = [...]string{
	Word:          "Word",
	StringLiteral: "StringLiteral",
	NumberLiteral: "NumberLiteral",
	Indent:        "Indent",
	Deindent:      "Deindent",
	Newline:       "Newline",
	Semicolon:     "Semicolon",
	BraceOpen:     "BraceOpen",
	BraceClose:    "BraceClose",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// File identifies a source file. One File is allocated per path per lex
// run and every token of that file points at it.
type File struct {
	Path string
}

type fileTable struct {
	byPath map[string]*File
	order  []*File
}

func (ft *fileTable) intern(path string) *File {
	if f, ok := ft.byPath[path]; ok {
		return f
	}
	if ft.byPath == nil {
		ft.byPath = map[string]*File{}
	}
	f := &File{Path: path}
	ft.byPath[path] = f
	ft.order = append(ft.order, f)
	return f
}

// Token is one lexed token. Value holds the text of a Word or the decoded
// contents of a StringLiteral; Number holds the value of a NumberLiteral.
// Lexeme is the text the token was scanned from and Leading the whitespace,
// comments and directive lines between it and the previous token of the
// same file. Both are empty for Indent and Deindent.
type Token struct {
	File    *File
	Line    int
	Col     int
	Kind    Kind
	Value   string
	Number  float32
	Leading string
	Lexeme  string
}

// Pos formats the token position as path:line:col.
func (t Token) Pos() string {
	path := "<unknown>"
	if t.File != nil {
		path = t.File.Path
	}
	return fmt.Sprintf("%s:%d:%d", path, t.Line, t.Col)
}

func (t Token) String() string {
	switch t.Kind {
	case Word, StringLiteral:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
	case NumberLiteral:
		return fmt.Sprintf("%s(%s)", t.Kind, strconv.FormatFloat(float64(t.Number), 'g', -1, 32))
	default:
		return t.Kind.String()
	}
}

// Result is the output of a successful lex.
type Result struct {
	Tokens      []Token
	Diagnostics []Diagnostic
	// Files lists every file that was read, root first, in the order they
	// were first opened.
	Files []*File
	// Trailing holds, per file path, the text after the file's last token.
	Trailing map[string]string
}

// ByFile groups the token stream by originating file, keeping each file's
// tokens in stream order.
func (r *Result) ByFile() map[string][]Token {
	out := make(map[string][]Token, len(r.Files))
	for _, tok := range r.Tokens {
		out[tok.File.Path] = append(out[tok.File.Path], tok)
	}
	return out
}

// SourceText rebuilds the text of the file at path from its tokens, with
// carriage returns removed. Macro replacement text appears as lexed, after
// the invocation it replaced; a file read more than once repeats.
func (r *Result) SourceText(path string) string {
	var sb strings.Builder
	for _, tok := range r.Tokens {
		if tok.File.Path == path {
			sb.WriteString(tok.Leading)
			sb.WriteString(tok.Lexeme)
		}
	}
	sb.WriteString(r.Trailing[path])
	return sb.String()
}
