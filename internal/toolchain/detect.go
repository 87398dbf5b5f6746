package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Toolchain is a fully detected, ready-to-invoke compiler, linker, or
// archiver: the registry entry that matched, the exact argv prefix used
// to invoke it, and the version string scraped from its probe output.
type Toolchain struct {
	Entry   Entry
	Argv    []string
	Version string
}

// Detector resolves registry entries to installed binaries, consulting
// (and populating) a Cache so repeated runs don't re-spawn every
// candidate compiler on every invocation.
type Detector struct {
	Registry *Registry
	Cache    *Cache
	Log      *logrus.Logger
	// Env supplies explicit overrides, e.g. Env["CC"] = "clang-18"; a
	// present, non-empty key always wins over candidate probing, mirroring the
	// original's "check the option for this component first" step.
	Env map[string]string
	// Timeout bounds each probe subprocess; zero means no timeout.
	Timeout time.Duration
}

// envKeyForLanguage maps a language to the environment variable that
// overrides its compiler, following the familiar CC/CXX convention.
func envKeyForLanguage(l Language) string {
	switch l {
	case LangC:
		return "CC"
	case LangCPP:
		return "CXX"
	case LangObjC:
		return "OBJC"
	case LangObjCPP:
		return "OBJCXX"
	case LangRust:
		return "RUSTC"
	default:
		return ""
	}
}

// DetectCompiler finds the best compiler entry for language l, trying
// an explicit environment override first and otherwise probing every
// registered candidate executable, keeping the highest-scoring match.
func (d *Detector) DetectCompiler(ctx context.Context, l Language) (Toolchain, error) {
	if key := envKeyForLanguage(l); key != "" {
		if override, ok := d.Env[key]; ok && override != "" {
			return d.probeExplicit(ctx, l, strings.Fields(override))
		}
	}

	candidates := d.Registry.ForLanguage(l)
	if len(candidates) == 0 {
		return Toolchain{}, fmt.Errorf("toolchain: no registered compiler for language %s", l)
	}

	var best Toolchain
	var bestScore int64 = -1
	var bestErr error
	for _, entry := range candidates {
		for _, exe := range entry.ExeCandidates {
			argv := append([]string{exe}, entry.VersionArgs...)
			output, err := d.probe(ctx, argv)
			if err != nil {
				bestErr = err
				continue
			}
			score, ok := entry.Detect(output)
			if !ok || score <= bestScore {
				continue
			}
			if d.Log != nil {
				d.Log.Debugf("toolchain: %s new high score %d for %s", entry.ID, score, exe)
			}
			bestScore = score
			best = Toolchain{Entry: entry, Argv: []string{exe}, Version: guessVersion(output)}
		}
	}
	if bestScore < 0 {
		if bestErr != nil {
			return Toolchain{}, fmt.Errorf("toolchain: detecting %s compiler: %w", l, bestErr)
		}
		return Toolchain{}, fmt.Errorf("toolchain: unable to detect %s compiler", l)
	}
	return best, nil
}

// probeExplicit resolves an operator-forced compiler (env.CC-style):
// the candidate is trusted without scoring against other entries, but
// its registry entry is still looked up by marker so its argument
// generators are available; an unrecognized banner falls back to
// whichever entry in the registry supports l, defaulting its generator
// table, matching the original's "unknown" fallback.
func (d *Detector) probeExplicit(ctx context.Context, l Language, argv []string) (Toolchain, error) {
	output, err := d.probe(ctx, append(append([]string{}, argv...), "--version"))
	if err != nil {
		return Toolchain{}, fmt.Errorf("toolchain: probing override %q: %w", argv, err)
	}
	for _, entry := range d.Registry.ForLanguage(l) {
		if score, ok := entry.Detect(output); ok && score > 0 {
			return Toolchain{Entry: entry, Argv: argv, Version: guessVersion(output)}, nil
		}
	}
	candidates := d.Registry.ForLanguage(l)
	if len(candidates) == 0 {
		return Toolchain{}, fmt.Errorf("toolchain: no registered compiler for language %s", l)
	}
	return Toolchain{Entry: candidates[0], Argv: argv, Version: guessVersion(output)}, nil
}

// DetectSubComponent resolves the linker or static linker paired with
// an already-detected compiler, preferring the compiler's own
// LinkerID/StaticLinkerID over independently probing every registered
// entry of that kind.
func (d *Detector) DetectSubComponent(ctx context.Context, compiler Toolchain, kind ComponentKind) (Toolchain, error) {
	id := compiler.Entry.LinkerID
	if kind == KindStaticLinker {
		id = compiler.Entry.StaticLinkerID
	}
	if id != "" {
		if entry, ok := d.Registry.ByID(id); ok {
			if entry.Kind == compiler.Entry.Kind {
				// Compiler-as-linker-driver: reuse the same binary.
				return Toolchain{Entry: entry, Argv: compiler.Argv, Version: compiler.Version}, nil
			}
			return d.probeEntry(ctx, entry)
		}
	}
	for _, entry := range d.Registry.All() {
		if entry.Kind != kind {
			continue
		}
		if tc, err := d.probeEntry(ctx, entry); err == nil {
			return tc, nil
		}
	}
	return Toolchain{}, fmt.Errorf("toolchain: unable to detect %s for %s", kind, compiler.Entry.ID)
}

func (d *Detector) probeEntry(ctx context.Context, entry Entry) (Toolchain, error) {
	for _, exe := range entry.ExeCandidates {
		argv := append([]string{exe}, entry.VersionArgs...)
		output, err := d.probe(ctx, argv)
		if err != nil {
			continue
		}
		if score, ok := entry.Detect(output); ok && score > 0 {
			return Toolchain{Entry: entry, Argv: []string{exe}, Version: guessVersion(output)}, nil
		}
	}
	return Toolchain{}, fmt.Errorf("toolchain: no working candidate for %s", entry.ID)
}

// probe runs argv, consulting and populating the cache by (argv, empty
// source) key so repeat detections across invocations skip the
// subprocess spawn entirely.
func (d *Detector) probe(ctx context.Context, argv []string) (string, error) {
	key := Key(argv, "")
	if d.Cache != nil {
		if e, ok := d.Cache.Lookup(key, ""); ok && e.Works {
			// A previous probe of the same argv stored its output in the
			// entry's Source field with an empty version, so this lookup
			// hits and returns that output without spawning the process.
			return e.Source, nil
		}
	}
	out, err := d.run(ctx, argv)
	if d.Cache != nil {
		d.Cache.Store(key, argv, "", out, err == nil)
	}
	return out, err
}

func (d *Detector) run(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty argv")
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	// Many compilers (clang in particular) write --version to stdout but
	// a nonzero exit when given no input files; a banner in the combined
	// output still counts as "found", so errors aren't returned when the
	// buffer is non-empty.
	if err != nil && buf.Len() == 0 {
		return "", err
	}
	return buf.String(), nil
}

var versionRe = regexp.MustCompile(`[0-9][0-9.]*`)

// guessVersion extracts a dotted version number from free-form banner
// text: the digit-and-dot run with the most dots wins, then the longer
// run, then the earliest, e.g. "gcc (Ubuntu 13.2.0-4) 13.2.0" -> "13.2.0".
func guessVersion(output string) string {
	best, bestDots := "unknown", -1
	for _, run := range versionRe.FindAllString(output, -1) {
		run = strings.TrimRight(run, ".")
		if dots := strings.Count(run, "."); dots > bestDots || (dots == bestDots && len(run) > len(best)) {
			best, bestDots = run, dots
		}
	}
	return best
}

// compareVersions reports -1, 0, or 1 the way strconv-based numeric
// comparison of dotted version strings should, since plain string
// comparison misorders e.g. "9" vs "10".
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
