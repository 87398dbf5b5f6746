package backend

import (
	"encoding/json"
	"io"

	"github.com/lattis-muon/muon-go/internal/workspace"
)

// compileCommand is one compile_commands.json entry, the de facto
// clangd/clang-tidy compilation database format.
type compileCommand struct {
	Directory string `json:"directory"`
	File      string `json:"file"`
	Arguments []string `json:"arguments"`
	Output    string `json:"output,omitempty"`
}

// WriteCompileCommands emits a compile_commands.json entry for every
// compilable source in every target of proj, rooted at buildDir.
func WriteCompileCommands(w io.Writer, buildDir string, proj *workspace.Project) error {
	var entries []compileCommand
	for _, tgt := range proj.Targets {
		comp, ok := proj.Toolchains[tgt.Machine][tgt.Language]
		if !ok {
			continue
		}
		args := collectArgs(proj, tgt)
		for _, src := range tgt.Sources {
			obj := objectPathFor(tgt, src)
			argv := append([]string{}, comp.Argv...)
			argv = append(argv, args...)
			argv = append(argv, "-o", obj, "-c", src)
			entries = append(entries, compileCommand{
				Directory: buildDir,
				File:      src,
				Arguments: argv,
				Output:    obj,
			})
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
