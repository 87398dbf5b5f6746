package backend

import (
	"strings"
	"testing"

	"github.com/lattis-muon/muon-go/internal/workspace"
)

func TestDefaultInstallDirStaticArchive(t *testing.T) {
	proj := fixtureProject()
	tgt := proj.Targets[0]
	got := DefaultInstallDir("/usr/local", "lib", "bin", tgt)
	if got != "/usr/local/lib" {
		t.Fatalf("install dir = %q", got)
	}
}

func TestDefaultInstallDirShared(t *testing.T) {
	tgt := &workspace.Target{Name: "foo", IsShared: true}
	got := DefaultInstallDir("/usr/local", "lib", "bin", tgt)
	if got != "/usr/local/lib" {
		t.Fatalf("install dir = %q", got)
	}
}

func TestCollectAndWriteInstallTargets(t *testing.T) {
	proj := fixtureProject()
	targets := CollectInstallTargets(proj, "/usr/local", "lib", "bin")
	if len(targets) != 1 {
		t.Fatalf("expected 1 install target, got %d", len(targets))
	}
	if targets[0].Src != "libapp.a" {
		t.Fatalf("src = %q", targets[0].Src)
	}
	if targets[0].Dest != "/usr/local/lib/libapp.a" {
		t.Fatalf("dest = %q", targets[0].Dest)
	}

	var buf strings.Builder
	if err := WriteInstallManifest(&buf, targets); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "libapp.a\t/usr/local/lib/libapp.a\t\n" {
		t.Fatalf("manifest = %q", buf.String())
	}
}
