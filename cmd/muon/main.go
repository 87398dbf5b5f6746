// Command muon is the embedded build-engine CLI surface: it loads a
// ninja-compatible manifest and drives the scheduler, the same surface
// ninja itself exposes, plus the handful of -t subtools that read
// directly off the build graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lattis-muon/muon-go/internal/ninjabuild"
)

// options mirrors the teacher's cmd/nin/ninja.go options struct: the
// handful of fields readFlags populates before Main dispatches on them.
type options struct {
	inputFile  string
	workingDir string
	tool       string
	dbgExplain bool
	keepDepfile bool
	keepRsp    bool
	dupbuildErr bool
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: muon [options] [targets...]

options:
  -C DIR      change to DIR before doing anything else
  -d MODE     enable debugging (explain, keepdepfile, keeprsp)
  -f FILE     specify input build file (default: build.ninja)
  -j N        run N jobs in parallel (0 means guess)
  -k N        keep going until N jobs fail (0 means infinity)
  -n          dry run
  -t TOOL     run a subtool (clean, commands, compdb, graph, query, targets)
  -v          show all command lines while building
  -w FLAG     adjust warnings (dupbuild=err|warn)
  --version   print the version and exit
  --verbose   alias for -v
`)
}

// readFlags parses argv the same way the teacher's readFlags does:
// stdlib flag.*Var registrations for the whole surface, a couple of
// post-parse consistency checks, and -1 to mean "continue running"
// rather than returning one of the fixed exit codes early.
func readFlags(opts *options, cfg *ninjabuild.BuildConfig) int {
	flag.StringVar(&opts.inputFile, "f", "build.ninja", "specify input build file")
	flag.StringVar(&opts.workingDir, "C", "", "change to DIR before doing anything else")
	flag.IntVar(&cfg.MaxJobs, "j", 0, "run N jobs in parallel (0 means guess)")
	flag.IntVar(&cfg.MaxFail, "k", 1, "keep going until N jobs fail (0 means infinity)")
	flag.BoolVar(&cfg.DryRun, "n", false, "dry run (don't run commands but act like they succeeded)")

	t := flag.String("t", "", "run a subtool (clean, commands, compdb, graph, query, targets)")
	dbg := flag.String("d", "", "enable debugging (explain, keepdepfile, keeprsp)")
	verbose := flag.Bool("v", false, "show all command lines while building")
	flag.BoolVar(verbose, "verbose", false, "show all command lines while building")
	warning := flag.String("w", "", "adjust warnings (dupbuild=err|warn)")
	version := flag.Bool("version", false, "print the muon build-engine version")

	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println(engineVersion)
		return 0
	}
	if *dbg != "" {
		for _, mode := range strings.Split(*dbg, ",") {
			switch mode {
			case "explain":
				cfg.Explain = true
			case "keepdepfile":
				opts.keepDepfile = true
				cfg.KeepDepfile = true
			case "keeprsp":
				opts.keepRsp = true
				cfg.KeepRsp = true
			case "list":
				fmt.Println("debugging modes: explain, keepdepfile, keeprsp")
				return 0
			default:
				fmt.Fprintf(os.Stderr, "muon: unknown debug mode %q\n", mode)
				return 2
			}
		}
	}
	if *warning != "" {
		switch *warning {
		case "dupbuild=err":
			opts.dupbuildErr = true
		case "dupbuild=warn":
			opts.dupbuildErr = false
		default:
			fmt.Fprintf(os.Stderr, "muon: unknown warning flag %q\n", *warning)
			return 2
		}
	}
	if cfg.MaxJobs == 0 {
		cfg.MaxJobs = guessParallelism()
	}
	if cfg.MaxFail == 0 {
		cfg.MaxFail = 1 << 30
	}
	opts.tool = *t
	return -1
}

func guessParallelism() int { return 4 }

// engineVersion is the embedded-engine's own version marker, distinct
// from the surrounding configuration tool's release version.
const engineVersion = "1.0.0-muon"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := ninjabuild.BuildConfig{Log: logrus.StandardLogger()}
	opts := options{}

	exitCode := readFlags(&opts, &cfg)
	if exitCode >= 0 {
		return exitCode
	}

	if opts.workingDir != "" {
		if err := os.Chdir(opts.workingDir); err != nil {
			fmt.Fprintf(os.Stderr, "muon: %v\n", err)
			return 1
		}
	}

	targets := flag.Args()

	switch opts.tool {
	case "":
		return runBuild(opts, cfg, targets)
	case "commands", "query", "targets", "clean", "compdb", "graph":
		return runTool(opts, cfg, targets)
	default:
		fmt.Fprintf(os.Stderr, "muon: unknown tool %q\n", opts.tool)
		return 2
	}
}

func runBuild(opts options, cfg ninjabuild.BuildConfig, targets []string) int {
	baseDir := "."
	deps, err := ninjabuild.OpenDepsLog(".ninja_deps")
	if err != nil {
		fmt.Fprintf(os.Stderr, "muon: opening deps log: %v\n", err)
		return 1
	}
	defer deps.Close()

	blog, err := ninjabuild.OpenBuildLog(".ninja_log", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "muon: opening build log: %v\n", err)
		return 1
	}
	defer blog.Close()

	err = ninjabuild.RunBuild(context.Background(), ninjabuild.RunConfig{
		BaseDir:      baseDir,
		ManifestPath: opts.inputFile,
		Targets:      targets,
		Deps:         deps,
		BuildLog:     blog,
		Build:        cfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "muon: %v\n", err)
		return 1
	}
	return 0
}

// runTool loads the graph (without running anything) and dispatches to
// one of the read-only -t subtools; these exist to let a human or a
// test inspect the same graph the scheduler would build from, per the
// engine's "thin verification surface" scope rather than a full
// standalone CLI product.
func runTool(opts options, cfg ninjabuild.BuildConfig, args []string) int {
	graph := ninjabuild.NewGraph()
	if err := ninjabuild.ParseManifest(graph, ".", opts.inputFile, ninjabuild.ParseOptions{}); err != nil {
		fmt.Fprintf(os.Stderr, "muon: %v\n", err)
		return 1
	}

	switch opts.tool {
	case "targets":
		for path := range graph.Nodes {
			fmt.Println(path)
		}
		return 0
	case "commands":
		for _, e := range graph.Edges {
			if cmd := e.GetBinding("command"); cmd != "" {
				fmt.Println(cmd)
			}
		}
		return 0
	case "query":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "muon: -t query requires a target")
			return 2
		}
		n, ok := graph.Nodes[ninjabuild.CanonicalizePath(args[0])]
		if !ok {
			fmt.Fprintf(os.Stderr, "muon: unknown target %q\n", args[0])
			return 1
		}
		if n.OutEdge == nil {
			fmt.Printf("%s: no incoming edge\n", args[0])
			return 0
		}
		fmt.Printf("%s:\n  input: %s\n", args[0], joinNodes(n.OutEdge.Inputs))
		fmt.Printf("  output: %s\n", joinNodes(n.OutEdge.Outputs))
		return 0
	case "graph", "clean", "compdb":
		// Minimal acknowledgement of these subtools: they read the same
		// graph the scheduler does, but full dot/ninja-clean/compdb
		// emission is out of scope for the embedded engine surface.
		fmt.Fprintf(os.Stderr, "muon: -t %s is not fully implemented\n", opts.tool)
		return 1
	default:
		fmt.Fprintf(os.Stderr, "muon: unknown tool %q\n", opts.tool)
		return 2
	}
}

func joinNodes(nodes []*ninjabuild.Node) string {
	var names []string
	for _, n := range nodes {
		names = append(names, n.Path)
	}
	return strings.Join(names, " ")
}
