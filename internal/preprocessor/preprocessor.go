package preprocessor

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------- Preprocessor ----------------

// Preprocessor holds the macro table of one lex run and the include search
// path. It is not safe for concurrent use.
type Preprocessor struct {
	IncludeDirs []string
	macros      map[string]Macro
}

// Macro is an object-like macro when Params is nil, function-like otherwise.
type Macro struct {
	Name   string
	Params []string
	Body   string
}

func (m Macro) FuncLike() bool {
	return m.Params != nil
}

// Apply binds args to the macro parameters and returns the replacement
// text. Missing arguments bind to the empty string, extra ones are dropped.
func (m Macro) Apply(args []string) string {
	if !m.FuncLike() {
		return m.Body
	}
	argMap := make(map[string]string, len(m.Params))
	for i, p := range m.Params {
		if i < len(args) {
			argMap[p] = args[i]
		} else {
			argMap[p] = ""
		}
	}
	return replaceIdents(m.Body, argMap)
}

func New(includeDirs ...string) *Preprocessor {
	return &Preprocessor{
		IncludeDirs: includeDirs,
		macros:      map[string]Macro{},
	}
}

// DefineObject defines an object-like macro and reports whether an existing
// definition was replaced.
func (p *Preprocessor) DefineObject(name, value string) bool {
	_, redefined := p.macros[name]
	p.macros[name] = Macro{Name: name, Body: value}
	return redefined
}

// DefineFunc defines a function-like macro and reports whether an existing
// definition was replaced.
func (p *Preprocessor) DefineFunc(name string, params []string, body string) bool {
	if params == nil {
		params = []string{}
	}
	_, redefined := p.macros[name]
	p.macros[name] = Macro{Name: name, Params: params, Body: body}
	return redefined
}

// Undefine removes a macro. Unknown names are ignored.
func (p *Preprocessor) Undefine(name string) {
	delete(p.macros, name)
}

func (p *Preprocessor) IsDefined(name string) bool {
	_, ok := p.macros[name]
	return ok
}

func (p *Preprocessor) Lookup(name string) (Macro, bool) {
	m, ok := p.macros[name]
	return m, ok
}

// EvalCondition evaluates the argument of #if and #elif. Supported forms are
// defined(NAME), defined NAME, NAME (defined with a value other than empty
// or "0"), integer literals, and any of these negated with '!'.
func (p *Preprocessor) EvalCondition(expr string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false
	}
	if strings.HasPrefix(expr, "!") {
		return !p.EvalCondition(expr[1:])
	}
	if m := reDefined.FindStringSubmatch(expr); len(m) == 3 {
		return p.IsDefined(m[1] + m[2])
	}
	if m, ok := p.macros[expr]; ok {
		v := strings.TrimSpace(m.Body)
		return v != "" && v != "0"
	}
	if n, err := strconv.ParseInt(expr, 0, 64); err == nil {
		return n != 0
	}
	return false
}

var reDefined = regexp.MustCompile(`^defined\s*(?:\(\s*([_\pL][_\pL\pN]*)\s*\)|\s([_\pL][_\pL\pN]*))$`)

func replaceIdents(s string, repl map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		if ch == '"' || ch == '\'' {
			quote := ch
			b.WriteByte(ch)
			i++
			for i < len(s) {
				ch = s[i]
				b.WriteByte(ch)
				i++
				if ch == '\\' && i < len(s) {
					b.WriteByte(s[i])
					i++
					continue
				}
				if ch == quote {
					break
				}
			}
			continue
		}
		if ch == '/' && i+1 < len(s) && s[i+1] == '/' {
			b.WriteString(s[i:])
			break
		}
		if ch == '/' && i+1 < len(s) && s[i+1] == '*' {
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				b.WriteString(s[i:])
				break
			}
			b.WriteString(s[i : i+2+end+2])
			i += 2 + end + 2
			continue
		}
		if r, w := utf8.DecodeRuneInString(s[i:]); IsIdentStart(r) {
			j := i + w
			for j < len(s) {
				r, w = utf8.DecodeRuneInString(s[j:])
				if !IsIdentPart(r) {
					break
				}
				j += w
			}
			name := s[i:j]
			if val, ok := repl[name]; ok {
				b.WriteString(val)
			} else {
				b.WriteString(name)
			}
			i = j
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

func IsIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func IsIdentPart(r rune) bool {
	return IsIdentStart(r) || unicode.IsDigit(r)
}

// ---------------- Directive parsing ----------------

// Directive is one parsed preprocessor line.
type Directive struct {
	Cmd string
	Arg string

	// #include
	Path   string
	Angled bool

	// #define, #undef, #ifdef, #ifndef
	Name   string
	Params []string
	Body   string
}

// ParseDirective parses a directive line. line must start with '#';
// surrounding whitespace is ignored.
func ParseDirective(line string) (Directive, error) {
	trim := strings.TrimSpace(line)
	if !strings.HasPrefix(trim, "#") {
		return Directive{}, fmt.Errorf("not a directive: %q", trim)
	}
	fields := splitDirective(trim)
	d := Directive{Cmd: fields.cmd, Arg: fields.arg}

	switch fields.cmd {
	case "include":
		path, angled, ok := parseIncludeArg(fields.arg)
		if !ok {
			return d, fmt.Errorf("bad #include syntax: %q", trim)
		}
		d.Path, d.Angled = path, angled

	case "define":
		name, params, body, ok := parseDefineDirective(fields.arg)
		if !ok {
			return d, fmt.Errorf("bad #define: %q", trim)
		}
		d.Name, d.Params, d.Body = name, params, body

	case "undef", "ifdef", "ifndef":
		name := strings.TrimSpace(fields.arg)
		if !IsIdent(name) {
			return d, fmt.Errorf("bad #%s: %q", fields.cmd, trim)
		}
		d.Name = name

	case "if", "elif":
		if fields.arg == "" {
			return d, fmt.Errorf("#%s with no expression", fields.cmd)
		}

	case "else", "endif", "error", "warn":

	case "":
		// A lone '#' is the null directive.

	default:
		return d, fmt.Errorf("unknown directive %q", fields.cmd)
	}
	return d, nil
}

// DirectiveName returns the command word of a directive line, or "" when
// line does not start with '#'.
func DirectiveName(line string) string {
	trim := strings.TrimSpace(line)
	if !strings.HasPrefix(trim, "#") {
		return ""
	}
	return splitDirective(trim).cmd
}

// IsConditional reports whether cmd must be honoured inside a skipped
// conditional region.
func IsConditional(cmd string) bool {
	switch cmd {
	case "ifdef", "ifndef", "if", "elif", "else", "endif":
		return true
	default:
		return false
	}
}

// IsDirectivePrefix reports whether s starts with '#' and a known directive
// name.
func IsDirectivePrefix(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	cmd := strings.Fields(s[1:])
	if len(cmd) == 0 {
		return false
	}
	switch cmd[0] {
	case "include", "define", "undef", "ifdef", "ifndef", "if", "elif", "else", "endif", "error", "warn":
		return true
	default:
		return false
	}
}

// LineContinues reports whether s ends in a backslash continuation.
func LineContinues(s string) bool {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t'
	})
	return i >= 0 && s[i] == '\\'
}

func StripLineContinuation(s string) string {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t'
	})
	if i >= 0 && s[i] == '\\' {
		return strings.TrimRight(s[:i], " \t")
	}
	return s
}

// StripComments removes // and /* */ comments that sit outside string
// literals from a directive line.
func StripComments(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == '"' || ch == '\'' {
			j := i + 1
			for j < len(line) && line[j] != ch {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(line) {
				b.WriteString(line[i:])
				break
			}
			b.WriteString(line[i : j+1])
			i = j
			continue
		}
		if ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			break
		}
		if ch == '/' && i+1 < len(line) && line[i+1] == '*' {
			end := strings.Index(line[i+2:], "*/")
			if end < 0 {
				break
			}
			b.WriteByte(' ')
			i += 2 + end + 1
			continue
		}
		b.WriteByte(ch)
	}
	return strings.TrimRight(b.String(), " \t")
}

type directiveFields struct {
	cmd string
	arg string
}

func splitDirective(trim string) directiveFields {
	// trim begins with '#'
	trim = strings.TrimSpace(trim[1:])
	if trim == "" {
		return directiveFields{}
	}
	sp := strings.Fields(trim)
	cmd := sp[0]
	arg := strings.TrimSpace(trim[len(cmd):])
	return directiveFields{cmd: cmd, arg: arg}
}

func parseIncludeArg(arg string) (path string, angled bool, ok bool) {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 3 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return arg[1 : len(arg)-1], false, true
	}
	if len(arg) >= 3 && arg[0] == '<' && arg[len(arg)-1] == '>' {
		return arg[1 : len(arg)-1], true, true
	}
	return "", false, false
}

func parseDefineDirective(arg string) (name string, params []string, body string, ok bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", nil, "", false
	}

	name = identPrefix(arg)
	if name == "" {
		return "", nil, "", false
	}
	rest := arg[len(name):]

	// function-like only if '(' immediately follows name
	if strings.HasPrefix(rest, "(") {
		j := strings.Index(rest, ")")
		if j < 0 {
			return "", nil, "", false
		}
		paramStr := rest[1:j]
		body = trimLeftSpaceTab(rest[j+1:])
		if strings.TrimSpace(paramStr) == "" {
			return name, []string{}, body, true
		}
		raw := strings.Split(paramStr, ",")
		params = make([]string, 0, len(raw))
		for _, r := range raw {
			param := strings.TrimSpace(r)
			if !IsIdent(param) {
				return "", nil, "", false
			}
			params = append(params, param)
		}
		return name, params, body, true
	}

	// object-like: NAME body...
	body = trimLeftSpaceTab(rest)
	return name, nil, body, true
}

func identPrefix(s string) string {
	r, w := utf8.DecodeRuneInString(s)
	if !IsIdentStart(r) {
		return ""
	}
	i := w
	for i < len(s) {
		r, w = utf8.DecodeRuneInString(s[i:])
		if !IsIdentPart(r) {
			break
		}
		i += w
	}
	return s[:i]
}

// IsIdent reports whether s is a single identifier.
func IsIdent(s string) bool {
	return s != "" && identPrefix(s) == s
}

func trimLeftSpaceTab(s string) string {
	return strings.TrimLeft(s, " \t")
}

// ParseDefine splits a command-line NAME=VALUE definition. A bare NAME is
// defined as "1".
func ParseDefine(s string) (name, value string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "1"
}

// ---------------- Include resolution ----------------

// FileReader is the file access the preprocessor needs. fstest.MapFS and
// the lexer's OS file system both satisfy it.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// ReadInclude resolves path and returns the contents of the first file found
// along with its cleaned path. Quoted includes look in the including file's
// directory and then the include dirs; angled includes only in the include
// dirs.
func (p *Preprocessor) ReadInclude(fsys FileReader, path string, includingFile string, angled bool) ([]byte, string, error) {
	for _, cand := range p.candidates(path, includingFile, angled) {
		bs, err := fsys.ReadFile(cand)
		if err == nil {
			return bs, cand, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, cand, err
		}
	}
	return nil, "", fmt.Errorf("cannot resolve include %q: %w", path, fs.ErrNotExist)
}

func (p *Preprocessor) candidates(path string, includingFile string, angled bool) []string {
	if filepath.IsAbs(path) {
		return []string{filepath.Clean(path)}
	}
	var out []string
	if !angled && includingFile != "" {
		out = append(out, filepath.Join(filepath.Dir(includingFile), path))
	}
	for _, dir := range p.IncludeDirs {
		out = append(out, filepath.Join(dir, path))
	}
	return out
}
