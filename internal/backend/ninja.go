// Package backend turns a configured workspace project tree into the
// on-disk build description: a ninja manifest (build.ninja), a
// compile_commands.json compilation database, and an install manifest.
package backend

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lattis-muon/muon-go/internal/toolchain"
	"github.com/lattis-muon/muon-go/internal/workspace"
)

// ninjaRequiredVersion is written into every generated manifest; it
// documents the minimum feature set the manifest assumes (pools,
// deps=, restat), not a version this module itself enforces.
const ninjaRequiredVersion = "1.7.1"

// WriteNinja emits a complete build.ninja for proj to w: header,
// per-language compiler/linker rules, the self-regenerating build.ninja
// rule, and a build statement per target.
func WriteNinja(w io.Writer, argv0, setupManifestPath string, proj *workspace.Project) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# This is the build file for project %q\n", proj.Name)
	fmt.Fprintf(bw, "# It is autogenerated; edits will be overwritten on reconfigure.\n")
	fmt.Fprintf(bw, "ninja_required_version = %s\n\n", ninjaRequiredVersion)

	for _, lang := range sortedLanguages(proj) {
		for m := range proj.Toolchains {
			comp, ok := proj.Toolchains[m][lang]
			if !ok {
				continue
			}
			writeCompilerRule(bw, m, lang, comp)
			if link, ok := proj.Linkers[m][lang]; ok {
				writeLinkerRule(bw, m, lang, link)
			}
		}
	}

	for m, ar := range proj.Archivers {
		fmt.Fprintf(bw, "rule %s_STATIC_LINKER\n", strings.ToUpper(m.String()))
		fmt.Fprintf(bw, " command = rm -f $out && %s rcs $out $in\n", strings.Join(ar.Argv, " "))
		fmt.Fprintf(bw, " description = linking static target $out\n\n")
	}

	fmt.Fprintf(bw, "rule CUSTOM_COMMAND\n command = $COMMAND\n description = $DESCRIPTION\n restat = 1\n\n")

	fmt.Fprintf(bw, "rule REGENERATE_BUILD\n command = %s setup --reconfigure %s\n"+
		" description = regenerating build files\n generator = 1\n\n",
		argv0, escapeNinja(setupManifestPath))
	fmt.Fprintf(bw, "build build.ninja: REGENERATE_BUILD %s\n pool = console\n\n", escapeNinja(setupManifestPath))

	fmt.Fprintf(bw, "# targets\n\n")
	for _, tgt := range proj.Targets {
		if err := writeTarget(bw, proj, tgt); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func sortedLanguages(proj *workspace.Project) []toolchain.Language {
	seen := map[toolchain.Language]bool{}
	for _, byLang := range proj.Toolchains {
		for l := range byLang {
			seen[l] = true
		}
	}
	out := make([]toolchain.Language, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func ruleName(m workspace.Machine, l toolchain.Language, suffix string) string {
	return fmt.Sprintf("%s_%s_%s", strings.ToUpper(m.String()), strings.ToUpper(l.String()), suffix)
}

func writeCompilerRule(bw *bufio.Writer, m workspace.Machine, l toolchain.Language, comp toolchain.Toolchain) {
	exe := strings.Join(comp.Argv, " ")
	deps := depsStyle(comp)

	fmt.Fprintf(bw, "rule %s\n", ruleName(m, l, "COMPILER"))
	if deps != "" {
		fmt.Fprintf(bw, " command = %s $ARGS -MD -MQ $out -MF $DEPFILE -o $out -c $in\n", exe)
		fmt.Fprintf(bw, " deps = %s\n depfile = $DEPFILE\n", deps)
	} else {
		fmt.Fprintf(bw, " command = %s $ARGS -o $out -c $in\n", exe)
	}
	fmt.Fprintf(bw, " description = compiling %s $out\n\n", l)
}

func writeLinkerRule(bw *bufio.Writer, m workspace.Machine, l toolchain.Language, link toolchain.Toolchain) {
	exe := strings.Join(link.Argv, " ")
	fmt.Fprintf(bw, "rule %s\n", ruleName(m, l, "LINKER"))
	fmt.Fprintf(bw, " command = %s $ARGS -o $out $in $LINK_ARGS\n", exe)
	fmt.Fprintf(bw, " description = linking target $out\n\n")
}

// depsStyle reports the ninja-manifest `deps =` value for a detected
// compiler entry, or "" if it has none (the only two styles ninja's
// own deps-log machinery understands are gcc and msvc).
func depsStyle(comp toolchain.Toolchain) string {
	switch comp.Entry.ID {
	case "gcc", "gcc-cpp", "clang", "clang-cpp":
		return "gcc"
	default:
		return ""
	}
}

func writeTarget(bw *bufio.Writer, proj *workspace.Project, tgt *workspace.Target) error {
	comp, ok := proj.Toolchains[tgt.Machine][tgt.Language]
	if !ok {
		return fmt.Errorf("target %s: no %s compiler selected for machine %s", tgt.Name, tgt.Language, tgt.Machine)
	}

	var objs []string
	args := strings.Join(collectArgs(proj, tgt), " ")
	for _, src := range tgt.Sources {
		obj := objectPathFor(tgt, src)
		objs = append(objs, escapeNinja(obj))
		fmt.Fprintf(bw, "build %s: %s %s\n", escapeNinja(obj), ruleName(tgt.Machine, tgt.Language, "COMPILER"), escapeNinja(src))
		fmt.Fprintf(bw, " ARGS = %s\n", args)
		fmt.Fprintf(bw, " DEPFILE = %s.d\n\n", obj)
	}

	out := outputPathFor(tgt)
	if tgt.IsShared || len(tgt.LinkWith) > 0 || !isArchiveTarget(tgt) {
		if link, ok := proj.Linkers[tgt.Machine][tgt.Language]; ok {
			_ = link
			fmt.Fprintf(bw, "build %s: %s %s", escapeNinja(out), ruleName(tgt.Machine, tgt.Language, "LINKER"), strings.Join(objs, " "))
			for _, dep := range tgt.LinkWith {
				fmt.Fprintf(bw, " %s", escapeNinja(dep))
			}
			fmt.Fprintln(bw)
			fmt.Fprintf(bw, " LINK_ARGS = %s\n\n", strings.Join(tgt.LinkWith, " "))
		}
	} else {
		fmt.Fprintf(bw, "build %s: %s_STATIC_LINKER %s\n\n", escapeNinja(out), strings.ToUpper(tgt.Machine.String()), strings.Join(objs, " "))
	}
	fmt.Fprintf(bw, "build %s: phony %s\n\n", escapeNinja(tgt.Name), escapeNinja(out))
	return nil
}

func isArchiveTarget(tgt *workspace.Target) bool { return !tgt.IsShared }

func collectArgs(proj *workspace.Project, tgt *workspace.Target) []string {
	var out []string
	out = append(out, proj.GlobalArgs[tgt.Machine][tgt.Language]...)
	out = append(out, proj.ProjectArgs[tgt.Machine][tgt.Language]...)
	out = append(out, proj.TargetArgs[tgt.Name]...)
	out = append(out, tgt.Args...)
	return out
}

func objectPathFor(tgt *workspace.Target, src string) string {
	return filepath.Join(tgt.Name+".p", src+".o")
}

func outputPathFor(tgt *workspace.Target) string {
	if len(tgt.Outputs) > 0 {
		return tgt.Outputs[0]
	}
	if tgt.IsShared {
		return tgt.Name + ".so"
	}
	if isArchiveTarget(tgt) {
		return "lib" + tgt.Name + ".a"
	}
	return tgt.Name
}

// escapeNinja escapes the three characters the manifest grammar treats
// specially when they appear inside a path: space, colon, and `$`
// itself.
func escapeNinja(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', ':', '$':
			b.WriteByte('$')
		}
		b.WriteRune(r)
	}
	return b.String()
}
