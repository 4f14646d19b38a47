package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/PJB3005/dmlex"
	"github.com/PJB3005/dmlex/internal/preprocessor"
)

const (
	colorRed     = "\x1B[31m"
	colorMagenta = "\x1B[35m"
	colorReset   = "\033[0m"
)

var (
	errUsage  = errors.New("usage: dmlex [flags] <file.dm>")
	errFailed = errors.New("lexing failed")
)

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// formatMsg renders an error as "(file:line:col) msgtype: **** msg ****".
func formatMsg(e *dmlex.Error, msgtype, color string) string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString("(")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf(":%d:%d", e.Line, e.Col))
		}
		sb.WriteString(") ")
	}
	if color != "" {
		sb.WriteString(fmt.Sprintf("%s%s%s: **** ", color, msgtype, colorReset))
	} else {
		sb.WriteString(msgtype + ": **** ")
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	sb.WriteString(msg)
	sb.WriteString(" ****")
	return sb.String()
}

// loadOptions reads the explicit config file, or dmlex.yaml next to the
// root file when there is one.
func loadOptions(configPath, root string) (dmlex.Options, error) {
	if configPath == "" {
		candidate := filepath.Join(filepath.Dir(root), dmlex.ConfigFileName)
		if _, err := os.Stat(candidate); err != nil {
			return dmlex.Options{}, nil
		}
		configPath = candidate
	}
	return dmlex.LoadConfig(configPath)
}

func writeTokens(w io.Writer, res *dmlex.Result, byFile bool) error {
	bw := bufio.NewWriter(w)
	if byFile {
		groups := res.ByFile()
		for _, f := range res.Files {
			fmt.Fprintf(bw, "== %s ==\n", f.Path)
			for _, tok := range groups[f.Path] {
				fmt.Fprintf(bw, "%d:%d\t%s\n", tok.Line, tok.Col, tok)
			}
		}
	} else {
		for _, tok := range res.Tokens {
			fmt.Fprintf(bw, "%s\t%s\n", tok.Pos(), tok)
		}
	}
	return bw.Flush()
}

func run(args []string, stdout, stderr io.Writer, color bool) error {
	flags := flag.NewFlagSet("dmlex", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var includes, defines stringList
	configPath := flags.String("config", "", "read options from `file` (default: "+dmlex.ConfigFileName+" next to the source file)")
	flags.Var(&includes, "I", "search `dir` for includes (repeatable)")
	flags.Var(&defines, "D", "predefine macro `NAME[=VALUE]` (repeatable)")
	outPath := flags.String("o", "", "write tokens to `file` instead of stdout")
	byFile := flags.Bool("by-file", false, "group tokens by source file")
	flags.Usage = func() {
		fmt.Fprintln(stderr, errUsage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return errUsage
	}
	root := flags.Arg(0)

	opts, err := loadOptions(*configPath, root)
	if err != nil {
		return err
	}
	cli := dmlex.Options{IncludeDirs: includes}
	if len(defines) > 0 {
		cli.Defines = make(map[string]string, len(defines))
		for _, d := range defines {
			name, value := preprocessor.ParseDefine(d)
			cli.Defines[name] = value
		}
	}
	opts = opts.Merge(cli)

	paint := func(c string) string {
		if color {
			return c
		}
		return ""
	}

	res, err := dmlex.Lex(root, dmlex.WithOptions(opts))
	if err != nil {
		var lexErr *dmlex.Error
		if !errors.As(err, &lexErr) {
			return err
		}
		fmt.Fprintln(stderr, formatMsg(lexErr, "fatal error", paint(colorRed)))
		return errFailed
	}
	for _, d := range res.Diagnostics {
		c := colorRed
		if d.Severity == dmlex.SeverityWarning {
			c = colorMagenta
		}
		fmt.Fprintln(stderr, formatMsg(d.Error, d.Severity.String(), paint(c)))
	}

	if *outPath == "" {
		return writeTokens(stdout, res, *byFile)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := writeTokens(f, res, *byFile); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("dmlex: ")

	color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if err := run(os.Args[1:], os.Stdout, os.Stderr, color); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, errUsage):
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
