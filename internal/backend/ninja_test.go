package backend

import (
	"strings"
	"testing"

	"github.com/lattis-muon/muon-go/internal/toolchain"
	"github.com/lattis-muon/muon-go/internal/workspace"
)

func fixtureProject() *workspace.Project {
	proj := &workspace.Project{
		Name: "demo",
		Toolchains: map[workspace.Machine]map[toolchain.Language]toolchain.Toolchain{
			workspace.MachineHost: {
				toolchain.LangC: {Entry: toolchain.Entry{ID: "gcc"}, Argv: []string{"gcc"}, Version: "13.2.0"},
			},
		},
		Linkers: map[workspace.Machine]map[toolchain.Language]toolchain.Toolchain{
			workspace.MachineHost: {
				toolchain.LangC: {Entry: toolchain.Entry{ID: "gcc"}, Argv: []string{"gcc"}, Version: "13.2.0"},
			},
		},
		Archivers:   map[workspace.Machine]toolchain.Toolchain{},
		GlobalArgs:  map[workspace.Machine]map[toolchain.Language][]string{},
		ProjectArgs: map[workspace.Machine]map[toolchain.Language][]string{},
		TargetArgs:  map[string][]string{},
		Subprojects: map[string]*workspace.Project{},
	}
	proj.Targets = []*workspace.Target{
		{
			Name:     "app",
			Machine:  workspace.MachineHost,
			Language: toolchain.LangC,
			Sources:  []string{"main.c"},
			IsShared: false,
		},
	}
	return proj
}

func TestWriteNinjaProducesExpectedRules(t *testing.T) {
	proj := fixtureProject()
	var buf strings.Builder
	if err := WriteNinja(&buf, "muon", "muon.build", proj); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"ninja_required_version = 1.7.1",
		"rule HOST_C_COMPILER",
		"deps = gcc",
		"rule HOST_C_LINKER",
		"rule CUSTOM_COMMAND",
		"rule REGENERATE_BUILD",
		"build build.ninja: REGENERATE_BUILD",
		"build app.p/main.c.o: HOST_C_COMPILER main.c",
		"build app: phony",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n---\n%s", want, out)
		}
	}
}

func TestWriteNinjaArchiveTarget(t *testing.T) {
	proj := fixtureProject()
	proj.Targets[0].IsShared = false
	proj.Linkers[workspace.MachineHost] = map[toolchain.Language]toolchain.Toolchain{}
	proj.Archivers[workspace.MachineHost] = toolchain.Toolchain{Entry: toolchain.Entry{ID: "ar"}, Argv: []string{"ar"}}

	var buf strings.Builder
	if err := WriteNinja(&buf, "muon", "muon.build", proj); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "rule HOST_STATIC_LINKER") {
		t.Errorf("expected a static linker rule:\n%s", out)
	}
	if !strings.Contains(out, "build libapp.a: HOST_STATIC_LINKER app.p/main.c.o") {
		t.Errorf("expected an archive build line:\n%s", out)
	}
}

func TestEscapeNinja(t *testing.T) {
	cases := map[string]string{
		"foo bar":  `foo$ bar`,
		"a:b":      `a$:b`,
		"$x":       `$$x`,
		"plain":    "plain",
	}
	for in, want := range cases {
		if got := escapeNinja(in); got != want {
			t.Errorf("escapeNinja(%q) = %q, want %q", in, got, want)
		}
	}
}
