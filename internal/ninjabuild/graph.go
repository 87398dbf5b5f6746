package ninjabuild

import (
	"fmt"
	"os"
	"strings"
)

// edgeFlag is the per-edge bitset tracked during dirty analysis and
// scheduling.
type edgeFlag uint8

const (
	edgeWork edgeFlag = 1 << iota
	edgeHash
	edgeDirtyIn
	edgeDirtyOut
	edgeCycle
	edgeDeps
)

// mtimeState is the tri-valued modification-time state of a Node: a
// file's mtime is either not yet probed, confirmed missing, or known.
type mtimeState int

const (
	mtimeUnknown mtimeState = iota
	mtimeMissing
	mtimeKnown
)

// Node is a file referenced by the build graph; it may or may not exist
// on disk at any given point.
type Node struct {
	Path string

	state mtimeState
	mtime int64 // nanoseconds since epoch, valid when state == mtimeKnown

	// LogMtime and Hash are the mtime and command hash last recorded for
	// this node in the build log, used by dirty analysis.
	LogMtime int64
	Hash     uint64

	OutEdge *Edge
	useEdges []*Edge

	// LogID is this node's sequential id in .ninja_deps, or -1 if the
	// node has never been recorded there.
	LogID int32

	Dirty   bool
	visited bool
}

// Stat refreshes n's mtime state from the filesystem.
func (n *Node) Stat() error {
	fi, err := os.Stat(n.Path)
	if err != nil {
		if os.IsNotExist(err) {
			n.state = mtimeMissing
			return nil
		}
		return err
	}
	n.state = mtimeKnown
	n.mtime = fi.ModTime().UnixNano()
	return nil
}

// Exists reports whether n's last Stat found the file present.
func (n *Node) Exists() bool { return n.state == mtimeKnown }

// Edge is a single rule application: a set of inputs, a set of outputs,
// a rule, and the environment bindings are resolved against.
type Edge struct {
	Rule *Rule
	Pool *Pool
	Env  *BindingEnv

	Inputs  []*Node
	Outputs []*Node

	ImplicitDeps  int
	ImplicitOuts  int
	OrderOnlyDeps int
	Validations   []*Node

	flags       edgeFlag
	commandHash uint64
	nblock      int
	nprune      int
}

// ExplicitInputs returns the inputs named directly on the build line,
// excluding implicit and order-only dependencies.
func (e *Edge) ExplicitInputs() []*Node {
	n := len(e.Inputs) - e.ImplicitDeps - e.OrderOnlyDeps
	if n < 0 {
		n = 0
	}
	return e.Inputs[:n]
}

// ImplicitInputs returns the `|`-separated implicit dependencies.
func (e *Edge) ImplicitInputs() []*Node {
	start := len(e.Inputs) - e.ImplicitDeps - e.OrderOnlyDeps
	end := len(e.Inputs) - e.OrderOnlyDeps
	return e.Inputs[start:end]
}

// OrderOnlyInputs returns the `||`-separated order-only dependencies.
func (e *Edge) OrderOnlyInputs() []*Node {
	return e.Inputs[len(e.Inputs)-e.OrderOnlyDeps:]
}

// ExplicitOutputs returns the outputs named directly on the build line.
func (e *Edge) ExplicitOutputs() []*Node {
	return e.Outputs[:len(e.Outputs)-e.ImplicitOuts]
}

// IsPhony reports whether the edge uses the built-in no-op rule.
func (e *Edge) IsPhony() bool { return e.Rule != nil && e.Rule.Name == "phony" }

func joinPaths(nodes []*Node, sep string) string {
	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = n.Path
	}
	return strings.Join(paths, sep)
}

// edgeEnv adapts an Edge to the Env interface so EvalString.Evaluate can
// resolve $in/$out and recurse into other rule-level bindings.
type edgeEnv struct{ edge *Edge }

func (w edgeEnv) LookupVariable(name string) string {
	switch name {
	case "in":
		return joinPaths(w.edge.ExplicitInputs(), " ")
	case "in_newline":
		return joinPaths(w.edge.ExplicitInputs(), "\n")
	case "out":
		return joinPaths(w.edge.ExplicitOutputs(), " ")
	}
	if w.edge.Rule != nil {
		if b := w.edge.Rule.GetBinding(name); b != nil {
			return b.Evaluate(w)
		}
	}
	return w.edge.Env.LookupVariable(name)
}

// GetBinding resolves a rule-level or edge-level variable the way ninja
// evaluates edge variables: specials first, then the rule's own
// bindings (recursively expanded against this edge), then the edge's
// local environment chain.
func (e *Edge) GetBinding(key string) string {
	return edgeEnv{e}.LookupVariable(key)
}

// Graph holds the complete build description: every node, edge, pool,
// and the root variable scope they were parsed against.
type Graph struct {
	Nodes    map[string]*Node
	Edges    []*Edge
	Pools    map[string]*Pool
	Bindings *BindingEnv
	Defaults []string
}

// NewGraph returns an empty graph with the built-in "phony" and
// "console" pool pre-registered.
func NewGraph() *Graph {
	g := &Graph{
		Nodes:    map[string]*Node{},
		Pools:    map[string]*Pool{"console": NewPool("console", 1)},
		Bindings: NewBindingEnv(nil),
	}
	phony := NewRule("phony")
	cmd := EvalString{}
	phony.Bindings["command"] = &cmd
	g.Bindings.Rules["phony"] = phony
	return g
}

// GetNode returns the node for path, creating it if necessary.
func (g *Graph) GetNode(path string) *Node {
	if n, ok := g.Nodes[path]; ok {
		return n
	}
	n := &Node{Path: path, LogID: -1}
	g.Nodes[path] = n
	return n
}

func (g *Graph) addEdge(rule *Rule) *Edge {
	e := &Edge{Rule: rule}
	g.Edges = append(g.Edges, e)
	return e
}

// addOut records path as one of e's outputs, reporting false (and not
// recording it) if another edge already generates that path.
func (g *Graph) addOut(e *Edge, path string) bool {
	n := g.GetNode(path)
	if n.OutEdge != nil && n.OutEdge != e {
		return false
	}
	n.OutEdge = e
	e.Outputs = append(e.Outputs, n)
	return true
}

func (g *Graph) addIn(e *Edge, path string) {
	n := g.GetNode(path)
	n.useEdges = append(n.useEdges, e)
	e.Inputs = append(e.Inputs, n)
}

// AddImplicitDep registers dep as an extra implicit input of e — used
// for depfile/deps-log derived dependencies discovered after the
// manifest was parsed.
func (g *Graph) AddImplicitDep(e *Edge, path string) {
	n := g.GetNode(path)
	n.useEdges = append(n.useEdges, e)
	insertAt := len(e.Inputs) - e.OrderOnlyDeps
	e.Inputs = append(e.Inputs, nil)
	copy(e.Inputs[insertAt+1:], e.Inputs[insertAt:])
	e.Inputs[insertAt] = n
	e.ImplicitDeps++
}

// HashCommand returns the command-hash ninja uses for dirty comparison:
// murmur3's 64-bit sum over the command string, with the rspfile
// content folded in when present (mirroring upstream ninja's
// HashCommand, which hashes "<command>;rspfile=<content>").
func HashCommand(command, rspfileContent string) uint64 {
	s := command
	if rspfileContent != "" {
		s += ";rspfile=" + rspfileContent
	}
	return murmur3Sum64([]byte(s))
}

// recomputeCommandHash fills in e.commandHash from its current bindings.
func (e *Edge) recomputeCommandHash() uint64 {
	if e.flags&edgeHash != 0 {
		return e.commandHash
	}
	e.commandHash = HashCommand(e.GetBinding("command"), e.GetBinding("rspfile_content"))
	e.flags |= edgeHash
	return e.commandHash
}

// DirtyError reports, deterministically, any fatal structural problem (a
// dependency cycle) encountered while recursing. Ordinary dirtiness is
// recorded on the nodes/edges themselves.
type DirtyError struct {
	Msg string
}

func (e *DirtyError) Error() string { return e.Msg }

// RecomputeDirty performs the recursive dirty analysis described for
// the scheduler: stats nodes lazily, computes command hashes, consults
// the deps/build logs, and marks every node whose generating edge must
// re-run.
func RecomputeDirty(g *Graph, n *Node, deps *DepsLog, blog *BuildLog) error {
	return recomputeDirty(g, n, deps, blog, map[*Edge]bool{})
}

func recomputeDirty(g *Graph, n *Node, deps *DepsLog, blog *BuildLog, stack map[*Edge]bool) error {
	if n.visited {
		return nil
	}
	n.visited = true

	if n.state == mtimeUnknown {
		if err := n.Stat(); err != nil {
			return err
		}
	}

	e := n.OutEdge
	if e == nil {
		// Source file: dirty only in the sense of "missing", which the
		// consuming edge's own analysis will notice.
		return nil
	}
	if stack[e] {
		return &DirtyError{Msg: fmt.Sprintf("dependency cycle involving %q", n.Path)}
	}
	stack[e] = true
	defer delete(stack, e)

	if e.flags&edgeWork != 0 {
		return nil
	}

	// Pull in recorded dependencies (from the deps log or a depfile
	// ingested earlier) as additional implicit inputs before recursing.
	if deps != nil && e.GetBinding("deps") != "" {
		if rec, ok := deps.Get(n.Path); ok {
			for _, dep := range rec.Deps {
				if !edgeHasInput(e, dep) {
					g.AddImplicitDep(e, dep)
				}
			}
		}
	}

	var mostRecentInput *Node
	dirty := false
	for _, in := range e.Inputs {
		if err := recomputeDirty(g, in, deps, blog, stack); err != nil {
			return err
		}
		if in.Dirty {
			dirty = true
		}
		if in.state == mtimeKnown && (mostRecentInput == nil || in.mtime > mostRecentInput.mtime) {
			mostRecentInput = in
		}
	}

	e.recomputeCommandHash()

	rec, haveRecord := blog.Get(outputKey(e))
	restat := e.GetBinding("restat") != ""

	for _, out := range e.Outputs {
		if out.state == mtimeUnknown {
			if err := out.Stat(); err != nil {
				return err
			}
		}
		missing := !out.Exists()
		phonyMissing := e.IsPhony() && len(e.Inputs) == 0 && missing
		newerInput := mostRecentInput != nil && mostRecentInput.mtime > out.mtime && (!restat || !haveRecord)
		noRecord := !haveRecord && e.GetBinding("generator") == ""
		staleRecordMtime := haveRecord && mostRecentInput != nil && rec.Mtime < mostRecentInput.mtime
		hashMismatch := haveRecord && rec.CommandHash != e.commandHash
		outDirty := phonyMissing || missing || newerInput || noRecord || staleRecordMtime || hashMismatch
		if outDirty {
			dirty = true
		}
	}
	if dirty {
		for _, out := range e.Outputs {
			out.Dirty = true
		}
	}
	e.flags |= edgeWork
	return nil
}

func edgeHasInput(e *Edge, path string) bool {
	for _, in := range e.Inputs {
		if in.Path == path {
			return true
		}
	}
	return false
}

// outputKey is the build-log key for an edge: its first explicit output.
func outputKey(e *Edge) string {
	if len(e.Outputs) == 0 {
		return ""
	}
	return e.Outputs[0].Path
}
