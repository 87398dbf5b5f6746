package workspace

import "testing"

func TestNewDeclaresBuiltinOptions(t *testing.T) {
	w := New("demo", Config{Environ: []string{"PATH=/bin"}})

	prefix, ok := w.Options.Get("prefix")
	if !ok {
		t.Fatal("prefix option not declared")
	}
	if prefix.Current != "/usr/local" {
		t.Fatalf("prefix default = %v", prefix.Current)
	}

	buildtype, ok := w.Options.Get("buildtype")
	if !ok {
		t.Fatal("buildtype option not declared")
	}
	if buildtype.Current != "debug" {
		t.Fatalf("buildtype default = %v", buildtype.Current)
	}

	if w.Root.Name != "demo" {
		t.Fatalf("root project name = %q", w.Root.Name)
	}
	if w.Detectors[MachineHost] == nil {
		t.Fatal("expected a host detector to be wired")
	}
}

func TestNewSubprojectNesting(t *testing.T) {
	w := New("demo", Config{})
	sub := w.Root.NewSubproject("libfoo")

	if sub.Name != "libfoo" {
		t.Fatalf("subproject name = %q", sub.Name)
	}
	if w.Root.Subprojects["libfoo"] != sub {
		t.Fatal("subproject not registered on parent")
	}
	if sub.Subprojects == nil || sub.TargetArgs == nil {
		t.Fatal("subproject maps not initialized")
	}
}

func TestMachineString(t *testing.T) {
	if MachineHost.String() != "host" {
		t.Fatalf("MachineHost.String() = %q", MachineHost.String())
	}
	if MachineBuild.String() != "build" {
		t.Fatalf("MachineBuild.String() = %q", MachineBuild.String())
	}
}
