package options

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// Store holds every declared option for one workspace, keyed by name.
type Store struct {
	opts map[string]*Option
}

// NewStore returns an empty option store; declare options into it with
// Declare before any Set call touches them.
func NewStore() *Store {
	return &Store{opts: map[string]*Option{}}
}

// Declare registers opt at its default, always recording SourceDefault,
// even when opt.Default is nil. Declaring a name twice replaces the
// prior declaration.
func (s *Store) Declare(opt Option) {
	cp := opt
	cp.Current = opt.Default
	cp.Source = SourceDefault
	s.opts[opt.Name] = &cp
}

// Get returns the named option and whether it was declared.
func (s *Store) Get(name string) (*Option, bool) {
	o, ok := s.opts[name]
	return o, ok
}

// Set applies v to the named option at src, same ranking rules as
// Option.Set; returns an error if the name was never declared.
func (s *Store) Set(name string, v any, src Source) error {
	o, ok := s.opts[name]
	if !ok {
		return fmt.Errorf("unknown option %q", name)
	}
	return o.Set(v, src)
}

// Names returns every declared option name, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.opts))
	for n := range s.opts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplyEnvironment sets env.* options from a process environment list
// (the "os.Environ()-shaped" slice of "KEY=VALUE" strings), the
// SourceEnvironment-ranked counterpart to applying -Dfoo commandline
// overrides. Only variables matching a declared "env.NAME" option are
// consulted; everything else in the environment is ignored.
func (s *Store) ApplyEnvironment(environ []string) {
	for _, kv := range environ {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := "env." + parts[0]
		if _, ok := s.opts[name]; !ok {
			continue
		}
		_ = s.Set(name, parts[1], SourceEnvironment)
	}
}

// BindCommandline registers a -Dname=value-style repeated pflag on fs
// (mirroring meson's CLI); no per-option long flags such as --prefix or
// --libdir are registered. Call ParseCommandline
// after fs.Parse to push the collected values into the store at
// SourceCommandline.
type commandlineFlags struct {
	defines *[]string
}

func BindCommandline(fs *pflag.FlagSet) *commandlineFlags {
	return &commandlineFlags{
		defines: fs.StringArrayP("define", "D", nil, "set a build option, e.g. -Dfoo=bar"),
	}
}

// ParseCommandline applies every -Dname=value collected by
// BindCommandline's flags into s at SourceCommandline.
func (s *Store) ParseCommandline(fs *pflag.FlagSet, cl *commandlineFlags) error {
	if cl.defines == nil {
		return nil
	}
	for _, d := range *cl.defines {
		name, val, ok := strings.Cut(d, "=")
		if !ok {
			return fmt.Errorf("-D%s: expected name=value", d)
		}
		if err := s.Set(name, val, SourceCommandline); err != nil {
			return err
		}
	}
	return nil
}
