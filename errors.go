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
)

// ErrorKind classifies lexer errors. An ErrorKind is itself an error so that
// callers can write errors.Is(err, dmlex.IncludeCycle).
type ErrorKind int

const (
	Io ErrorKind = iota
	IncludeCycle
	MacroRecursion
	UnterminatedComment
	UnterminatedString
	MalformedNumber
	UnexpectedCharacter
	MalformedIndentation
	// Directive covers malformed or unbalanced preprocessor directives,
	// #error, and the messages of #warn.
	Directive
)

var errorKindNames = [...]string{
	Io:                   "io error",
	IncludeCycle:         "include cycle",
	MacroRecursion:       "macro recursion",
	UnterminatedComment:  "unterminated comment",
	UnterminatedString:   "unterminated string",
	MalformedNumber:      "malformed number",
	UnexpectedCharacter:  "unexpected character",
	MalformedIndentation: "malformed indentation",
	Directive:            "directive error",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

func (k ErrorKind) Error() string {
	return k.String()
}

// Fatal reports whether errors of this kind abort the lex. The others are
// recorded as diagnostics and scanning continues.
func (k ErrorKind) Fatal() bool {
	switch k {
	case UnexpectedCharacter, MalformedIndentation:
		return false
	default:
		return true
	}
}

// Error is a positioned lexer error. Line and Col are 1-based; both are 0
// when the error is not tied to a place in a file, such as a missing root
// file.
type Error struct {
	Kind ErrorKind
	File string
	Line int
	Col  int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	switch {
	case e.File == "":
		return msg
	case e.Line == 0:
		return fmt.Sprintf("%s: %s", e.File, msg)
	default:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a problem that did not stop the lex.
type Diagnostic struct {
	Severity Severity
	*Error
}

func (d Diagnostic) String() string {
	return d.Severity.String() + ": " + d.Error.Error()
}
