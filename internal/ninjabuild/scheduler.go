package ninjabuild

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lattis-muon/muon-go/internal/ninjabuild/depfile"
)

// BuildConfig mirrors the knobs the embedded build-engine CLI surface
// exposes: parallelism, failure tolerance, dry-run, and the depfile/rsp
// retention flags the -d switch controls.
type BuildConfig struct {
	MaxJobs     int
	MaxFail     int
	DryRun      bool
	Explain     bool
	KeepDepfile bool
	KeepRsp     bool
	Log         *logrus.Logger
}

// Scheduler is the cooperative, single-control-thread dispatcher
// described for the build phase: a ready queue gated by pool capacity,
// up to MaxJobs concurrently running child processes, and log/deps
// updates that happen only in the control goroutine.
type Scheduler struct {
	graph *Graph
	deps  *DepsLog
	blog  *BuildLog
	cfg   BuildConfig

	wanted map[*Edge]bool
	done   map[*Edge]bool
	ready  []*Edge

	poolActive map[*Pool]int
	poolQueue  map[*Pool][]*Edge

	commandEdges int
	wantedEdges  int
}

// NewScheduler builds a scheduler over graph, consulting deps/blog for
// dirty analysis bookkeeping already performed by RecomputeDirty.
func NewScheduler(graph *Graph, deps *DepsLog, blog *BuildLog, cfg BuildConfig) *Scheduler {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 1
	}
	if cfg.MaxFail <= 0 {
		cfg.MaxFail = 1
	}
	return &Scheduler{
		graph:      graph,
		deps:       deps,
		blog:       blog,
		cfg:        cfg,
		wanted:     map[*Edge]bool{},
		done:       map[*Edge]bool{},
		poolActive: map[*Pool]int{},
		poolQueue:  map[*Pool][]*Edge{},
	}
}

// Plan marks every edge that must run to produce roots (assuming
// RecomputeDirty has already been run over them) and seeds the ready
// queue with edges that have no un-built producer.
func (s *Scheduler) Plan(roots []*Node) {
	visited := map[*Node]bool{}
	var visit func(n *Node)
	visit = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		e := n.OutEdge
		if e == nil {
			return
		}
		for _, in := range e.Inputs {
			visit(in)
		}
		if s.wanted[e] || !edgeNeedsBuild(e) {
			return
		}
		s.wanted[e] = true
		s.wantedEdges++
		if !e.IsPhony() {
			s.commandEdges++
		}
	}
	for _, n := range roots {
		visit(n)
	}
	for e := range s.wanted {
		producers := 0
		for _, in := range e.Inputs {
			if ie := in.OutEdge; ie != nil && s.wanted[ie] {
				producers++
			}
		}
		e.nblock = producers
		e.nprune = producers
		if producers == 0 {
			s.enqueue(e)
		}
	}
}

func edgeNeedsBuild(e *Edge) bool {
	for _, out := range e.Outputs {
		if out.Dirty {
			return true
		}
	}
	return false
}

// MoreToDo reports whether any wanted edge remains unbuilt in a plan
// that wanted at least one command edge; commandEdges counts every
// non-phony edge Plan marked, and finishing an edge does not lower it.
func (s *Scheduler) MoreToDo() bool {
	return s.wantedEdges > 0 && s.commandEdges > 0
}

func (s *Scheduler) enqueue(e *Edge) {
	s.ready = append(s.ready, e)
}

type jobResult struct {
	edge          *Edge
	err           error
	output        []byte
	startMs       int64
	endMs         int64
	preOutMtimes  map[*Node]int64
}

// Run drains the ready queue to completion (or to a cancellation point:
// SIGINT, or numfail reaching cfg.MaxFail), running up to cfg.MaxJobs
// children concurrently. Log-file appends happen only in this goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	jobCtx := ctx
	ctx, stop := signalCancel(ctx)
	defer stop()

	results := make(chan jobResult)
	running := 0
	numFail := 0
	var firstErr error
	cancelled := false

	for (len(s.ready) > 0 || running > 0) && !cancelled {
		for running < s.cfg.MaxJobs && len(s.ready) > 0 {
			e := s.popReady()
			if e == nil {
				break
			}
			if e.IsPhony() {
				s.finishEdge(e, true)
				continue
			}
			if s.cfg.DryRun {
				if d := e.GetBinding("description"); d != "" {
					fmt.Println(d)
				} else {
					fmt.Println(e.GetBinding("command"))
				}
				s.finishEdge(e, true)
				continue
			}
			running++
			go s.runJob(jobCtx, e, results)
		}
		if running == 0 {
			break
		}
		select {
		case <-ctx.Done():
			cancelled = true
		case r := <-results:
			running--
			if err := s.complete(r); err != nil {
				numFail++
				if firstErr == nil {
					firstErr = err
				}
				if numFail >= s.cfg.MaxFail {
					cancelled = true
				}
			}
		}
	}
	for running > 0 {
		r := <-results
		running--
		if err := s.complete(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if cancelled {
		return fmt.Errorf("build interrupted")
	}
	return nil
}

// popReady pops the front of the ready queue, redirecting pool-gated
// edges to their pool's waiting queue instead of returning them.
func (s *Scheduler) popReady() *Edge {
	for len(s.ready) > 0 {
		e := s.ready[0]
		s.ready = s.ready[1:]
		if p := e.Pool; p != nil && p.Name != "console" && p.Depth > 0 && s.poolActive[p] >= p.Depth {
			s.poolQueue[p] = append(s.poolQueue[p], e)
			continue
		}
		if e.Pool != nil {
			s.poolActive[e.Pool]++
		}
		return e
	}
	return nil
}

func (s *Scheduler) releasePool(e *Edge) {
	p := e.Pool
	if p == nil {
		return
	}
	s.poolActive[p]--
	if len(s.poolQueue[p]) == 0 {
		return
	}
	next := s.poolQueue[p][0]
	s.poolQueue[p] = s.poolQueue[p][1:]
	s.ready = append([]*Edge{next}, s.ready...)
}

func (s *Scheduler) runJob(ctx context.Context, e *Edge, results chan<- jobResult) {
	start := time.Now().UnixMilli()
	pre := map[*Node]int64{}
	for _, out := range e.Outputs {
		out.Stat()
		pre[out] = out.mtime
	}
	for _, out := range e.Outputs {
		if dir := filepath.Dir(out.Path); dir != "." {
			os.MkdirAll(dir, 0o755)
		}
	}
	rspfile := e.GetBinding("rspfile")
	if rspfile != "" {
		os.WriteFile(rspfile, []byte(e.GetBinding("rspfile_content")), 0o644)
	}

	useConsole := e.Pool != nil && e.Pool.Name == "console"
	cmd := createCmd(ctx, e.GetBinding("command"), useConsole)
	var buf bytes.Buffer
	if useConsole {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}
	err := cmd.Run()

	if rspfile != "" && !s.cfg.KeepRsp {
		os.Remove(rspfile)
	}
	results <- jobResult{
		edge:         e,
		err:          err,
		output:       buf.Bytes(),
		startMs:      start,
		endMs:        time.Now().UnixMilli(),
		preOutMtimes: pre,
	}
}

// createCmd wraps a rule's command the same way the standalone build
// executor does: a single `/bin/sh -c` invocation, in its own process
// group except for edges in the console pool.
func createCmd(ctx context.Context, command string, useConsole bool) *exec.Cmd {
	var cmd *exec.Cmd
	if useConsole {
		cmd = exec.Command("/bin/sh", "-c", command)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", command)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: !useConsole}
	return cmd
}

func (s *Scheduler) complete(r jobResult) error {
	e := r.edge
	output := r.output
	useConsole := e.Pool != nil && e.Pool.Name == "console"

	depsType := e.GetBinding("deps")
	if depsType == "msvc" && !useConsole {
		filtered := depfile.ParseMSVCShowIncludes(string(output), e.GetBinding("msvc_deps_prefix"))
		for _, in := range filtered.Includes {
			path := CanonicalizePath(in)
			if !edgeHasInput(e, path) {
				s.graph.AddImplicitDep(e, path)
			}
		}
		output = []byte(filtered.FilteredOutput)
	}
	if !useConsole && len(output) > 0 {
		os.Stdout.Write(output)
	}

	if r.err != nil {
		return fmt.Errorf("%s: %w", outputKey(e), r.err)
	}

	if depsType == "gcc" {
		if path := e.GetBinding("depfile"); path != "" {
			if data, readErr := os.ReadFile(path); readErr == nil {
				if parsed, perr := depfile.ParseGCC(data); perr == nil {
					for _, in := range parsed.Ins {
						c := CanonicalizePath(in)
						if !edgeHasInput(e, c) {
							s.graph.AddImplicitDep(e, c)
						}
					}
				} else if s.cfg.Log != nil {
					s.cfg.Log.Warnf("%s: %v", path, perr)
				}
			}
			if !s.cfg.KeepDepfile {
				os.Remove(path)
			}
		}
	}

	restat := e.GetBinding("restat") != ""
	ranAndChanged := true
	if restat {
		ranAndChanged = false
		for _, out := range e.Outputs {
			out.state = mtimeUnknown
			out.Stat()
			if out.mtime != r.preOutMtimes[out] {
				ranAndChanged = true
			}
		}
	} else {
		for _, out := range e.Outputs {
			out.state = mtimeUnknown
			out.Stat()
		}
	}

	e.recomputeCommandHash()
	if s.blog != nil {
		var mtime int64
		if len(e.Outputs) > 0 {
			mtime = e.Outputs[0].mtime
		}
		s.blog.Record(LogRecord{
			Output:      outputKey(e),
			StartTimeMs: r.startMs,
			EndTimeMs:   r.endMs,
			Mtime:       mtime,
			CommandHash: e.commandHash,
		})
	}
	if s.deps != nil && depsType != "" {
		var recDeps []string
		for _, in := range e.ImplicitInputs() {
			recDeps = append(recDeps, in.Path)
		}
		if len(e.Outputs) > 0 {
			s.deps.WriteDeps(e.Outputs[0].Path, e.Outputs[0].mtime, recDeps)
		}
	}

	s.releasePool(e)
	s.finishEdge(e, ranAndChanged)
	return nil
}

// finishEdge marks e done and propagates readiness (and, when e turned
// out to be a no-op, prunability) to its consumers.
func (s *Scheduler) finishEdge(e *Edge, ranAndChanged bool) {
	if s.done[e] {
		return
	}
	s.done[e] = true
	s.wantedEdges--

	for _, ce := range s.consumersOf(e) {
		ce.nblock--
		if !ranAndChanged {
			ce.nprune--
		}
		if ce.nblock == 0 {
			if ce.nprune == 0 {
				s.finishEdge(ce, false)
			} else {
				s.enqueue(ce)
			}
		}
	}
}

func (s *Scheduler) consumersOf(e *Edge) []*Edge {
	seen := map[*Edge]bool{}
	var out []*Edge
	for _, o := range e.Outputs {
		for _, ce := range o.useEdges {
			if s.wanted[ce] && !s.done[ce] && !seen[ce] {
				seen[ce] = true
				out = append(out, ce)
			}
		}
	}
	return out
}

// signalCancel derives a context that is also cancelled on SIGINT, so a
// build started under ctrl-C stops starting new jobs and lets already
// running ones finish, matching the cancellation policy for maxfail==1.
func signalCancel(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigc:
			cancel()
		case <-done:
		}
	}()
	return ctx, func() {
		close(done)
		signal.Stop(sigc)
		cancel()
	}
}
