package backend

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/lattis-muon/muon-go/internal/workspace"
)

// InstallTarget is one file the install step copies into place: src is
// a build-tree-relative path, Dest an absolute destination path, Mode
// an optional rwx permission string ("" means "use the source file's
// own mode").
type InstallTarget struct {
	Src  string
	Dest string
	Mode string
}

// DefaultInstallDir returns the conventional destination directory for
// a target kind, joined under prefix: shared libraries and static
// archives go to libdir. Target has no executable kind and every
// non-shared target is a static archive, so no target reaches bindir.
func DefaultInstallDir(prefix, libdir, bindir string, tgt *workspace.Target) string {
	if isArchiveTarget(tgt) || tgt.IsShared {
		return filepath.Join(prefix, libdir)
	}
	return filepath.Join(prefix, bindir)
}

// CollectInstallTargets builds the install manifest for every target
// in proj marked for installation (every target is installed by
// default, matching the teacher-adjacent convention of install: true
// being the common case; callers filter before calling this if a
// project opts targets out).
func CollectInstallTargets(proj *workspace.Project, prefix, libdir, bindir string) []InstallTarget {
	var out []InstallTarget
	for _, tgt := range proj.Targets {
		dir := DefaultInstallDir(prefix, libdir, bindir, tgt)
		out = append(out, InstallTarget{
			Src:  outputPathFor(tgt),
			Dest: path.Join(dir, filepath.Base(outputPathFor(tgt))),
		})
	}
	return out
}

// WriteInstallManifest writes one "src\tdest\tmode" line per target,
// mode left blank when unspecified (the copier preserves the source's
// own mode in that case). This file drives the `install` ninja target,
// the same way the original build's install step replays a recorded
// target list rather than re-deriving it from the object graph.
func WriteInstallManifest(w io.Writer, targets []InstallTarget) error {
	bw := bufio.NewWriter(w)
	for _, t := range targets {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", t.Src, t.Dest, t.Mode); err != nil {
			return err
		}
	}
	return bw.Flush()
}
