// Package workspace ties together the VM heap, diagnostics store,
// toolchain registry, option store and project state into the single
// value a configuration run threads through every call — never a
// package-level global, so multiple workspaces (e.g. a subproject
// reload during tests) never share state by accident.
package workspace

import (
	"github.com/sirupsen/logrus"

	"github.com/lattis-muon/muon-go/internal/diag"
	"github.com/lattis-muon/muon-go/internal/lang"
	"github.com/lattis-muon/muon-go/internal/options"
	"github.com/lattis-muon/muon-go/internal/toolchain"
)

// Machine distinguishes the build machine from the host machine in a
// cross-compilation setup; toolchains, args and targets are all kept
// per-machine.
type Machine int

const (
	MachineHost Machine = iota
	MachineBuild
	machineCount
)

func (m Machine) String() string {
	if m == MachineBuild {
		return "build"
	}
	return "host"
}

// Target is one declared build target: an executable, library, or
// custom command, with the sources and arguments that produced it.
type Target struct {
	Name     string
	Machine  Machine
	Language toolchain.Language
	Sources  []string
	Args     []string
	LinkWith []string
	IsShared bool
	Outputs  []string
}

// Test is one declared test() invocation: a named command to run as
// part of the project's test suite, with its own args and environment.
type Test struct {
	Name    string
	Command []string
	Args    []string
	Env     []string
	Suite   []string
}

// Project holds everything scoped to one (sub)project: its toolchain
// selections per machine, accumulated compile/link arguments, declared
// targets and tests, and subproject metadata.
type Project struct {
	Name       string
	Version    string
	SourceRoot string
	BuildRoot  string

	Toolchains map[Machine]map[toolchain.Language]toolchain.Toolchain
	Linkers    map[Machine]map[toolchain.Language]toolchain.Toolchain
	Archivers  map[Machine]toolchain.Toolchain

	GlobalArgs  map[Machine]map[toolchain.Language][]string
	ProjectArgs map[Machine]map[toolchain.Language][]string
	TargetArgs  map[string][]string

	Targets []*Target
	Tests   []*Test

	Subprojects map[string]*Project
}

func newProject(name string) *Project {
	return &Project{
		Name:        name,
		Toolchains:  map[Machine]map[toolchain.Language]toolchain.Toolchain{},
		Linkers:     map[Machine]map[toolchain.Language]toolchain.Toolchain{},
		Archivers:   map[Machine]toolchain.Toolchain{},
		GlobalArgs:  map[Machine]map[toolchain.Language][]string{},
		ProjectArgs: map[Machine]map[toolchain.Language][]string{},
		TargetArgs:  map[string][]string{},
		Subprojects: map[string]*Project{},
	}
}

// Workspace is the single threaded value a configuration run carries
// through scope: VM object heap and native registry, diagnostics,
// toolchain registry and detector, declared options, the project tree,
// and the logger every package logs through.
type Workspace struct {
	Log *logrus.Logger

	Heap      *lang.Heap
	Natives   *lang.Registry
	Diags     *diag.Store
	Registry  *toolchain.Registry
	Cache     *toolchain.Cache
	Options   *options.Store
	Detectors map[Machine]*toolchain.Detector

	Root *Project
}

// Config bundles the knobs New needs: where the compiler-check cache
// lives on disk and whether warnings should be promoted to errors.
type Config struct {
	CachePath string
	Werror    bool
	Log       *logrus.Logger
	Environ   []string
}

// New builds a workspace ready for a configuration run: an empty VM
// heap and native registry, an empty diagnostics store, the built-in
// toolchain registry, a loaded (or fresh) compiler-check cache, and a
// root project scope.
func New(projectName string, cfg Config) *Workspace {
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	cache := toolchain.OpenCache(cfg.CachePath)
	reg := toolchain.NewRegistry()

	w := &Workspace{
		Log:      log,
		Heap:     lang.NewHeap(),
		Natives:  lang.NewRegistry(),
		Diags:    diag.NewStore(cfg.Werror),
		Registry: reg,
		Cache:    cache,
		Options:  options.NewStore(),
		Root:     newProject(projectName),
	}
	w.Detectors = map[Machine]*toolchain.Detector{
		MachineHost: {Registry: reg, Cache: cache, Log: log, Env: environAsMap(cfg.Environ)},
	}
	w.declareBuiltinOptions()
	w.Options.ApplyEnvironment(cfg.Environ)
	return w
}

func environAsMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}

// declareBuiltinOptions registers the handful of options every project
// carries regardless of its own meson_options.txt/options-block: the
// standard directory layout and build-type knobs.
func (w *Workspace) declareBuiltinOptions() {
	w.Options.Declare(options.Option{Name: "prefix", Type: options.TypeString, Default: "/usr/local"})
	w.Options.Declare(options.Option{Name: "libdir", Type: options.TypeString, Default: "lib"})
	w.Options.Declare(options.Option{Name: "bindir", Type: options.TypeString, Default: "bin"})
	w.Options.Declare(options.Option{Name: "includedir", Type: options.TypeString, Default: "include"})
	w.Options.Declare(options.Option{Name: "buildtype", Type: options.TypeCombo,
		Choices: []string{"plain", "debug", "debugoptimized", "release", "minsize"}, Default: "debug"})
	w.Options.Declare(options.Option{Name: "warning_level", Type: options.TypeCombo,
		Choices: []string{"0", "1", "2", "3", "everything"}, Default: "1"})
	w.Options.Declare(options.Option{Name: "werror", Type: options.TypeBool, Default: false})
	w.Options.Declare(options.Option{Name: "default_library", Type: options.TypeCombo,
		Choices: []string{"shared", "static", "both"}, Default: "shared"})
}

// NewSubproject creates and registers a child project scope under
// parent, the way a subproject() call nests a wrap's build inside the
// outer project's scope.
func (p *Project) NewSubproject(name string) *Project {
	sub := newProject(name)
	p.Subprojects[name] = sub
	return sub
}
