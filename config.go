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
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PJB3005/dmlex/internal/preprocessor"
)

// DefaultMaxExpansions bounds how deeply macro replacements may nest: a
// macro found in the replacement text of another is one level deeper.
const DefaultMaxExpansions = 100

// ConfigFileName is the configuration file the command-line tool looks for
// next to the root source file.
const ConfigFileName = "dmlex.yaml"

// Options is the lexer configuration, as read from dmlex.yaml:
//
//	include_dirs:
//	  - code/includes
//	defines:
//	  DEBUG: "1"
//	max_expansions: 200
type Options struct {
	// IncludeDirs are searched in order, after the including file's own
	// directory for #include "path" and alone for #include <path>.
	IncludeDirs []string `yaml:"include_dirs,omitempty"`

	// Defines are object-like macros in effect before the root file is read.
	Defines map[string]string `yaml:"defines,omitempty"`

	// MaxExpansions overrides DefaultMaxExpansions when positive.
	MaxExpansions int `yaml:"max_expansions,omitempty"`
}

// LoadConfig reads and validates a yaml configuration file.
func LoadConfig(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading config: %w", err)
	}
	opts, err := ParseConfig(data)
	if err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

func ParseConfig(data []byte) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) Validate() error {
	if o.MaxExpansions < 0 {
		return fmt.Errorf("max_expansions must not be negative, got %d", o.MaxExpansions)
	}
	for i, dir := range o.IncludeDirs {
		if dir == "" {
			return fmt.Errorf("include_dirs[%d] is empty", i)
		}
	}
	for name, value := range o.Defines {
		if !preprocessor.IsIdent(name) {
			return fmt.Errorf("defines: invalid macro name %q", name)
		}
		if strings.ContainsRune(value, '\n') {
			return fmt.Errorf("defines: value of %s spans lines", name)
		}
	}
	return nil
}

// Merge returns o overlaid with other: include dirs are appended, defines
// from other win, and a positive MaxExpansions in other replaces o's.
func (o Options) Merge(other Options) Options {
	out := Options{
		IncludeDirs:   append(append([]string(nil), o.IncludeDirs...), other.IncludeDirs...),
		MaxExpansions: o.MaxExpansions,
	}
	if len(o.Defines)+len(other.Defines) > 0 {
		out.Defines = make(map[string]string, len(o.Defines)+len(other.Defines))
		for k, v := range o.Defines {
			out.Defines[k] = v
		}
		for k, v := range other.Defines {
			out.Defines[k] = v
		}
	}
	if other.MaxExpansions > 0 {
		out.MaxExpansions = other.MaxExpansions
	}
	return out
}

// FileSystem is the read-only file access the lexer uses for the root file
// and every include. fstest.MapFS satisfies it.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

type osFileSystem struct{}

func (osFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Option configures a Lexer.
type Option func(*Lexer)

func WithOptions(o Options) Option {
	return func(l *Lexer) {
		l.opts = l.opts.Merge(o)
	}
}

func WithIncludeDirs(dirs ...string) Option {
	return WithOptions(Options{IncludeDirs: dirs})
}

func WithDefines(defines map[string]string) Option {
	return WithOptions(Options{Defines: defines})
}

func WithMaxExpansions(n int) Option {
	return WithOptions(Options{MaxExpansions: n})
}

func WithFileSystem(fsys FileSystem) Option {
	return func(l *Lexer) {
		l.fsys = fsys
	}
}
