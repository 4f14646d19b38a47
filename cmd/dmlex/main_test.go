package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.dm": "#define X 1\nfoo X\n",
	})
	src := filepath.Join(dir, "main.dm")
	var stdout, stderr bytes.Buffer
	if err := run([]string{src}, &stdout, &stderr, false); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	want := src + ":2:1\tWord(\"foo\")\n" +
		src + ":2:5\tNumberLiteral(1)\n" +
		src + ":2:6\tNewline\n"
	if diff := cmp.Diff(want, stdout.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if stderr.Len() != 0 {
		t.Errorf("unexpected stderr: %s", stderr.String())
	}
}

func TestRunDiagnostics(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.dm": " x\n#warn old\n",
	})
	src := filepath.Join(dir, "main.dm")
	var stdout, stderr bytes.Buffer
	if err := run([]string{src}, &stdout, &stderr, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "(" + src + ":1:1) error: **** indentation must use tabs only ****\n" +
		"(" + src + ":2:1) warning: **** #warn old ****\n"
	if diff := cmp.Diff(want, stderr.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	stderr.Reset()
	if err := run([]string{src}, &stdout, &stderr, true); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr.String(), colorRed+"error"+colorReset) ||
		!strings.Contains(stderr.String(), colorMagenta+"warning"+colorReset) {
		t.Errorf("colored output missing escapes: %q", stderr.String())
	}
}

func TestRunFatal(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.dm": "ok\n\"abc\n",
	})
	src := filepath.Join(dir, "main.dm")
	var stdout, stderr bytes.Buffer
	err := run([]string{src}, &stdout, &stderr, false)
	if !errors.Is(err, errFailed) {
		t.Fatalf("got %v, want errFailed", err)
	}
	want := "(" + src + ":2:1) fatal error: **** unterminated string literal ****\n"
	if diff := cmp.Diff(want, stderr.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if stdout.Len() != 0 {
		t.Errorf("fatal error still wrote tokens: %s", stdout.String())
	}
}

func TestRunConfigAndFlags(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.dm":       "#include <lib.dm>\nA B\n",
		"inc/lib.dm":    "#define C 3\n",
		"dmlex.yaml":    "defines:\n  A: \"1\"\n  B: \"1\"\n",
		"other.yaml":    "defines:\n  A: \"9\"\n",
		"vendor/lib.dm": "#define C 4\n",
	})
	src := filepath.Join(dir, "main.dm")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			"config next to source",
			[]string{"-I", filepath.Join(dir, "inc"), src},
			"NumberLiteral(1) NumberLiteral(1)",
		},
		{
			"flags override config",
			[]string{"-I", filepath.Join(dir, "inc"), "-D", "B=C", src},
			"NumberLiteral(1) NumberLiteral(3)",
		},
		{
			"explicit config",
			[]string{"-config", filepath.Join(dir, "other.yaml"), "-I", filepath.Join(dir, "vendor"), "-D", "B=C", src},
			"NumberLiteral(9) NumberLiteral(4)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(tt.args, &stdout, &stderr, false); err != nil {
				t.Fatalf("run: %v\n%s", err, stderr.String())
			}
			var got []string
			for _, line := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
				if _, tok, ok := strings.Cut(line, "\t"); ok && tok != "Newline" {
					got = append(got, tok)
				}
			}
			if diff := cmp.Diff(tt.want, strings.Join(got, " ")); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunByFileToOutput(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.dm": "#include \"a.dm\"\nm\n",
		"a.dm":    "a\n",
	})
	src := filepath.Join(dir, "main.dm")
	out := filepath.Join(dir, "tokens.txt")
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-by-file", "-o", out, src}, &stdout, &stderr, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("-o still wrote to stdout: %s", stdout.String())
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "== " + src + " ==\n" +
		"2:1\tWord(\"m\")\n" +
		"2:2\tNewline\n" +
		"== " + filepath.Join(dir, "a.dm") + " ==\n" +
		"1:1\tWord(\"a\")\n" +
		"1:2\tNewline\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(nil, &stdout, &stderr, false); !errors.Is(err, errUsage) {
		t.Errorf("no arguments: got %v", err)
	}
	if err := run([]string{"-bogus", "x.dm"}, &stdout, &stderr, false); err == nil {
		t.Error("unknown flag accepted")
	}
	if err := run([]string{"missing.dm"}, &stdout, &stderr, false); !errors.Is(err, errFailed) {
		t.Errorf("missing file: got %v", err)
	}
}
