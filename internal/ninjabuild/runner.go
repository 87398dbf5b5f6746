package ninjabuild

import (
	"context"
	"fmt"
)

// maxManifestRegenAttempts bounds the "rebuild the manifest, then
// restart dirty analysis" loop so a misbehaving regeneration rule
// cannot spin forever.
const maxManifestRegenAttempts = 100

// RunConfig is everything RunBuild needs beyond the already-parsed
// graph: which targets to build, where the manifest itself lives (so a
// self-regenerating build.ninja can be rebuilt first), and the open
// logs.
type RunConfig struct {
	BaseDir      string
	ManifestPath string
	Targets      []string
	Deps         *DepsLog
	BuildLog     *BuildLog
	Build        BuildConfig
}

// RunBuild performs the full build-phase sequence: dirty analysis over
// the requested targets (or every default target), scheduling, and,
// if the manifest itself is a generated and dirty node, rebuilding it
// and restarting the analysis — up to maxManifestRegenAttempts times.
func RunBuild(ctx context.Context, cfg RunConfig) error {
	for attempt := 0; attempt < maxManifestRegenAttempts; attempt++ {
		graph := NewGraph()
		if err := ParseManifest(graph, cfg.BaseDir, cfg.ManifestPath, ParseOptions{}); err != nil {
			return fmt.Errorf("loading manifest: %w", err)
		}

		roots, err := resolveTargets(graph, cfg.Targets)
		if err != nil {
			return err
		}

		for _, n := range roots {
			if err := RecomputeDirty(graph, n, cfg.Deps, cfg.BuildLog); err != nil {
				return err
			}
		}

		manifestNode, manifestIsGenerated := graph.Nodes[CanonicalizePath(cfg.ManifestPath)]
		needsRegen := manifestIsGenerated && manifestNode.OutEdge != nil && manifestNode.Dirty

		sched := NewScheduler(graph, cfg.Deps, cfg.BuildLog, cfg.Build)
		if needsRegen {
			sched.Plan([]*Node{manifestNode})
		} else {
			sched.Plan(roots)
		}
		if err := sched.Run(ctx); err != nil {
			return err
		}
		if !needsRegen {
			return nil
		}
		// The manifest was rebuilt; loop around and reparse it, in case its
		// own content (and therefore the rest of the graph) changed.
	}
	return fmt.Errorf("manifest regeneration did not converge after %d attempts", maxManifestRegenAttempts)
}

func resolveTargets(graph *Graph, targets []string) ([]*Node, error) {
	if len(targets) == 0 {
		targets = graph.Defaults
	}
	if len(targets) == 0 {
		var roots []*Node
		for _, e := range graph.Edges {
			for _, o := range e.ExplicitOutputs() {
				if len(o.useEdges) == 0 {
					roots = append(roots, o)
				}
			}
		}
		return roots, nil
	}
	nodes := make([]*Node, 0, len(targets))
	for _, t := range targets {
		path := CanonicalizePath(t)
		n, ok := graph.Nodes[path]
		if !ok {
			return nil, fmt.Errorf("unknown target %q", t)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
